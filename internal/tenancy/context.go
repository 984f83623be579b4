package tenancy

import (
	"context"
	"strings"
)

type ctxKey string

const callerKey ctxKey = "clinic.caller"

// Caller is the identity an upstream authentication step decoded from the
// request. Nothing in this package verifies it.
type Caller struct {
	ClinicID string
	UserID   string
	Role     string
}

// Valid reports whether the caller carries the clinic scope and user id.
func (c Caller) Valid() bool {
	return strings.TrimSpace(c.ClinicID) != "" && strings.TrimSpace(c.UserID) != ""
}

// WithCaller stores the caller in context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext extracts the caller if present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok && caller.Valid()
}

// ClinicIDFromContext extracts the caller's clinic scope if present.
func ClinicIDFromContext(ctx context.Context) (string, bool) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return "", false
	}
	return caller.ClinicID, true
}
