package gateway

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain applies middlewares outermost-first: the first argument sees the
// request before the second, and so on down to h.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
