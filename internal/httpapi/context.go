package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is canceled on shutdown so long-lived streams let the server drain.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context that ends event streams. nil resets it.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// streamContext derives a context from r that is also canceled with the base context.
// The returned cancel func must be called when the handler ends.
func streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(serverBaseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
