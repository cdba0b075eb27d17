package httpserver

import (
	"net/http"
	"time"

	"pps/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New builds the API server. Zero timeouts in cfg fall back to the header
// timeout, so a slow client can never hold a connection open indefinitely.
func New(cfg config.Server, handler http.Handler) *http.Server {
	read, write := cfg.ReadTimeout, cfg.WriteTimeout
	if read <= 0 {
		read = readHeaderTimeout
	}
	if write <= 0 {
		write = readHeaderTimeout
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       read,
		WriteTimeout:      write,
		IdleTimeout:       idleTimeout,
	}
}
