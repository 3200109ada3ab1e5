package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// AuthRequired rejects requests without a valid access token and puts the
// token's actor on the request context.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.Unauthorized(w, "Missing access token")
				return
			}

			claims, err := token.AsMap(r.Context())
			if err != nil {
				response.Unauthorized(w, "Invalid access token")
				return
			}
			tokenType, ok := claims["type"].(string)
			if tokenType != "access" || !ok {
				response.Unauthorized(w, "Invalid access token")
				return
			}

			actor, err := jwt.ActorFromClaims(claims)
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(approval.WithActor(r.Context(), actor)))
		}
		return http.HandlerFunc(hfn)
	}
}
