package webclient

import (
	"github.com/raysh454/offerlens/internal/logging"
)

// RegisterDefaultBackends registers nethttp and chromedp. It runs from the
// package init and is safe to call again.
func RegisterDefaultBackends() {
	RegisterBackend(string(BackendNetHTTP), func(cfg Config, logger logging.Logger) (WebClient, error) {
		return NewNetHTTPClient(cfg, logger, nil)
	})

	RegisterBackend(string(BackendChromedp), func(cfg Config, logger logging.Logger) (WebClient, error) {
		return NewChromedpClient(cfg, logger)
	})
}
