package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-billing/internal/tenancy"
)

func signedClinicToken(t *testing.T, secret string, claims ClinicClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() ClinicClaims {
	return ClinicClaims{
		ClinicID:         "clinic-1",
		Role:             "Provider",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
}

func serveClinicJWT(secret, authHeader string, next http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/billing", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	ClinicJWT(secret)(next).ServeHTTP(rec, req)
	return rec
}

func TestClinicJWTRejects(t *testing.T) {
	noop := func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be called")
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noSubject := validClaims()
	noSubject.Subject = ""
	noClinic := validClaims()
	noClinic.ClinicID = " "

	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"missing secret", "", "Bearer x"},
		{"missing header", "secret", ""},
		{"wrong scheme", "secret", "Basic abc"},
		{"wrong key", "secret", "Bearer " + signedClinicToken(t, "other", validClaims())},
		{"expired", "secret", "Bearer " + signedClinicToken(t, "secret", expired)},
		{"missing subject", "secret", "Bearer " + signedClinicToken(t, "secret", noSubject)},
		{"missing clinic", "secret", "Bearer " + signedClinicToken(t, "secret", noClinic)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveClinicJWT(tt.secret, tt.header, noop)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestClinicJWTRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	rec := serveClinicJWT("secret", "Bearer "+signed, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be called")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestClinicJWTValidToken(t *testing.T) {
	called := false
	rec := serveClinicJWT("secret", "Bearer "+signedClinicToken(t, "secret", validClaims()), func(w http.ResponseWriter, r *http.Request) {
		called = true
		caller, ok := tenancy.CallerFromContext(r.Context())
		if !ok {
			t.Fatalf("expected caller in context")
		}
		want := tenancy.Caller{ClinicID: "clinic-1", UserID: "user-1", Role: "provider"}
		if caller != want {
			t.Fatalf("expected caller %+v, got %+v", want, caller)
		}
	})
	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRequireClinicParam(t *testing.T) {
	caller := tenancy.Caller{ClinicID: "clinic-1", UserID: "user-1", Role: "admin"}

	tests := []struct {
		name     string
		caller   *tenancy.Caller
		clinicID string
		want     int
	}{
		{"matching clinic", &caller, "clinic-1", http.StatusOK},
		{"other clinic", &caller, "clinic-2", http.StatusForbidden},
		{"no caller", nil, "clinic-1", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/clinics/"+tt.clinicID+"/billing", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("clinicID", tt.clinicID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			if tt.caller != nil {
				ctx = tenancy.WithCaller(ctx, *tt.caller)
			}
			rec := httptest.NewRecorder()

			RequireClinicParam("clinicID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req.WithContext(ctx))

			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
