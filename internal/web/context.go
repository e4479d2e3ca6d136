package web

import (
	"context"
	"net/http"

	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/web/middleware"
)

// withRequestMetadata adds the client IP and User-Agent to ctx for events.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, middleware.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
