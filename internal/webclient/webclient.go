// Package webclient fetches product data over HTTP. Backends are looked up
// by name so callers can switch between plain net/http and a headless
// browser for script-rendered pages.
package webclient

import (
	"context"
	"errors"
)

type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)
	Close() error
}

var (
	ErrNilRequest         = errors.New("webclient: nil request")
	ErrMethodNotSupported = errors.New("webclient: method not supported")
)
