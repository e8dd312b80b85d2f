package webclient

import "time"

type Backend string

const (
	BackendNetHTTP  Backend = "nethttp"
	BackendChromedp Backend = "chromedp"
)

// Config selects and tunes a WebClient backend.
type Config struct {
	Backend Backend `yaml:"backend"`

	// Timeout bounds a single request. Zero means 30s.
	Timeout time.Duration `yaml:"timeout"`

	// IdleAfter is how long chromedp waits for the network to go quiet
	// before reading the DOM.
	IdleAfter time.Duration `yaml:"idle_after"`

	// ShowBrowser runs chromedp with a visible window.
	ShowBrowser bool `yaml:"show_browser"`

	// UserAgent, if set, is sent with every request that does not set one.
	UserAgent string `yaml:"user_agent"`
}

func DefaultConfig() Config {
	return Config{
		Backend:   BackendNetHTTP,
		Timeout:   30 * time.Second,
		IdleAfter: 2 * time.Second,
		UserAgent: "offerlens/1.0",
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

func (c Config) idleAfter() time.Duration {
	if c.IdleAfter <= 0 {
		return 2 * time.Second
	}
	return c.IdleAfter
}
