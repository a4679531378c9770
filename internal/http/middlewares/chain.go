package middlewares

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain envuelve h de modo que mws[0] sea el más externo.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := range mws {
		h = mws[len(mws)-1-i](h)
	}
	return h
}

func ChainFunc(fn http.HandlerFunc, mws ...Middleware) http.Handler {
	return Chain(fn, mws...)
}
