package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
)

// RequireHR requires an HR-capable actor (hr, owner or system).
func RequireHR(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := approval.ActorFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, "Missing actor")
			return
		}

		if !actor.IsHR() && !actor.IsSystem() {
			response.Forbidden(w, "HR access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireEmployeeOrHR requires the actor to be linked to an employee record
// unless it is HR-capable.
func RequireEmployeeOrHR(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := approval.ActorFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, "Missing actor")
			return
		}

		if actor.EmployeeID == "" && !actor.IsHR() && !actor.IsSystem() {
			response.Forbidden(w, "Employee account required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
