package api

import (
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/restaurant-checkout/pkg/config"
)

// NewServer wraps handler with the timeouts every cmd/api instance runs with.
// PORT, when set by the platform, wins over the configured port.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
