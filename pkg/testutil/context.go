package testutil

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pps/internal/platform/middleware"
)

// WithSubject adds an authenticated subject to the request context.
// This simulates what RequireAuth does for a valid token.
func WithSubject(req *http.Request, sub string) *http.Request {
	return req.WithContext(middleware.WithSubject(req.Context(), sub))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithURLParams attaches chi route parameters so a handler can be called
// without going through the router.
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
