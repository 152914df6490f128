package auth

import (
	"context"
	"errors"
)

// Identity is the caller identity attached to every mutation attempt.
type Identity string

const (
	// IdentityService is the pipeline's own automated identity. Only this
	// identity may mutate product and price data.
	IdentityService Identity = "service"
	// IdentityPublic is any other caller. Read-only.
	IdentityPublic Identity = "public"
)

// Operation names a storage action subject to the gate.
type Operation string

const (
	OpReadProduct        Operation = "product.read"
	OpWriteProduct       Operation = "product.write"
	OpDeleteProduct      Operation = "product.delete"
	OpWritePriceHistory  Operation = "price_history.write"
	OpWriteScrapeFailure Operation = "scrape_failure.write"
)

// ErrPermissionDenied is returned when a non-service identity attempts a
// mutation. Treated as a programming or configuration error in the caller.
var ErrPermissionDenied = errors.New("permission denied: mutation requires service identity")

type ctxKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom extracts the caller identity from the context. Callers that
// never attached one are treated as public.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return IdentityPublic
}

// Authorize reports whether the identity may perform the operation. Reads
// are open to everyone; mutations require the service identity.
func Authorize(id Identity, op Operation) bool {
	switch op {
	case OpReadProduct:
		return true
	case OpWriteProduct, OpDeleteProduct, OpWritePriceHistory, OpWriteScrapeFailure:
		return id == IdentityService
	default:
		return false
	}
}

// Check returns ErrPermissionDenied if the context identity may not perform
// the operation. It is called on every mutating store path before any SQL
// is issued.
func Check(ctx context.Context, op Operation) error {
	if !Authorize(IdentityFrom(ctx), op) {
		return ErrPermissionDenied
	}
	return nil
}
