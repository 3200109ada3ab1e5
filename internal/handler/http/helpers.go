package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

// actorFromRequest returns the actor AuthRequired put on the context. It
// writes the 401 itself when there is none.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (approval.Actor, bool) {
	actor, ok := approval.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return approval.Actor{}, false
	}
	return actor, true
}

// decodeJSON decodes the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Debug("Failed to decode request body", "error", err, "path", r.URL.Path)
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

// getBoolQueryParam gets a bool query parameter with a default value
func getBoolQueryParam(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

// optionalBoolQueryParam is nil when the parameter is absent.
func optionalBoolQueryParam(r *http.Request, key string) *bool {
	if r.URL.Query().Get(key) == "" {
		return nil
	}
	v := getBoolQueryParam(r, key, false)
	return &v
}

func optionalQueryParam(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

// dateRangeQuery reads start_date and end_date. Either may be absent; a
// present one must be YYYY-MM-DD.
func dateRangeQuery(r *http.Request) (start, end *string, err error) {
	start = optionalQueryParam(r, "start_date")
	end = optionalQueryParam(r, "end_date")

	var errs validator.ValidationErrors
	if start != nil {
		if _, ok := validator.IsValidDate(*start); !ok {
			errs.Add("start_date", "start_date must be YYYY-MM-DD")
		}
	}
	if end != nil {
		if _, ok := validator.IsValidDate(*end); !ok {
			errs.Add("end_date", "end_date must be YYYY-MM-DD")
		}
	}
	if err := errs.Err(); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// dayBounds expands optional date strings to UTC day boundaries.
func dayBounds(start, end *string) (*time.Time, *time.Time, error) {
	var s, e string
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	}
	rng, err := daterange.Parse(s, e)
	if err != nil {
		return nil, nil, err
	}

	var from, to *time.Time
	if start != nil {
		from = &rng.Start
	}
	if end != nil {
		to = &rng.End
	}
	return from, to, nil
}
