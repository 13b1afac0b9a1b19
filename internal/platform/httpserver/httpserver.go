// Package httpserver builds the process HTTP server. Timeouts are tuned for
// the flow engine's traffic: small JSON bodies, long-poll-free handlers, UI
// clients that re-read state frequently over kept-alive connections.
package httpserver

import (
	"net/http"
	"time"
)

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
