// Package middlewares contiene los middlewares HTTP de la API.
package middlewares

import (
	"context"

	"github.com/dropDatabas3/hablas/internal/auth"
)

// requestState se comparte por puntero a lo largo del request: logging lee la
// identidad que RequireAuth fija más adentro.
type requestState struct {
	requestID string
	identity  *auth.Identity
}

type stateKey struct{}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	return st
}

func ensureState(ctx context.Context) (context.Context, *requestState) {
	if st := stateFrom(ctx); st != nil {
		return ctx, st
	}
	st := &requestState{}
	return context.WithValue(ctx, stateKey{}, st), st
}

// WithIdentity deja la identidad verificada en ctx.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	ctx, st := ensureState(ctx)
	st.identity = id
	return ctx
}

// GetIdentity devuelve nil si el request no pasó por RequireAuth.
func GetIdentity(ctx context.Context) *auth.Identity {
	if st := stateFrom(ctx); st != nil {
		return st.identity
	}
	return nil
}

func GetRequestID(ctx context.Context) string {
	if st := stateFrom(ctx); st != nil {
		return st.requestID
	}
	return ""
}
