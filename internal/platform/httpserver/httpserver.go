package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. Write
// timeout stays above the longest wallet prompt a connect may wait on.
func New(addr string, handler http.Handler, connectTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      connectTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
