package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-billing/internal/tenancy"
)

// ClinicClaims is the token payload issued by the clinic login service.
// The user id travels in the standard sub claim.
type ClinicClaims struct {
	ClinicID string `json:"clinicId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ClinicJWT verifies an HMAC-signed bearer token and places the decoded
// caller in the request context.
func ClinicJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, `{"error":"auth disabled"}`, http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := ClinicClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			caller := tenancy.Caller{
				ClinicID: strings.TrimSpace(claims.ClinicID),
				UserID:   strings.TrimSpace(claims.Subject),
				Role:     strings.ToLower(strings.TrimSpace(claims.Role)),
			}
			if !caller.Valid() {
				http.Error(w, `{"error":"token missing clinic or subject"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithCaller(r.Context(), caller)))
		})
	}
}

// RequireClinicParam rejects requests whose {param} path segment names a
// clinic other than the caller's.
func RequireClinicParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := tenancy.CallerFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if chi.URLParam(r, param) != caller.ClinicID {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
