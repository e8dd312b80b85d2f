package utils

import (
	"errors"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
)

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	DropTrackingParams bool   // remove campaign params (utm_*, gclid, Amazon pf_rd_*, ...)
	StripTrailingSlash bool   // treat /a and /a/ the same (root "/" is kept)
	DefaultScheme      string // assumed for schemeless input; empty means the scheme is required

	// KeepParams, when non-empty, is the only set of query params that survive.
	KeepParams []string
}

// OfferKeyOptions is the policy used to key cached offer results.
var OfferKeyOptions = CanonicalizeOptions{
	DropTrackingParams: true,
	StripTrailingSlash: true,
	DefaultScheme:      "https",
}

var trackingParams = map[string]struct{}{
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
	"ref_": {}, "psc": {}, "th": {}, "smid": {},
}

var trackingPrefixes = []string{"utm_", "pf_rd_", "pd_rd_"}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if _, ok := trackingParams[key]; ok {
		return true
	}
	for _, p := range trackingPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Canonicalize returns a deterministic canonical URL string or an error.
// Host is lowercased and punycoded, default ports, userinfo and fragment are
// dropped, the path is cleaned and query params are sorted.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrEmptyURL}
	}

	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}

	port := u.Port()
	switch {
	case (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443"):
		u.Host = host
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	default:
		u.Host = host
	}

	u.User = nil
	u.Fragment = ""

	cleanPath := path.Clean(u.Path)
	if cleanPath == "." {
		cleanPath = "/"
	}
	if opts.StripTrailingSlash && len(cleanPath) > 1 {
		cleanPath = strings.TrimRight(cleanPath, "/")
	}
	u.Path = cleanPath
	u.RawPath = ""

	u.RawQuery = canonicalQuery(u.Query(), opts)
	return u.String(), nil
}

func canonicalQuery(q url.Values, opts CanonicalizeOptions) string {
	if len(opts.KeepParams) > 0 {
		keep := make(map[string]struct{}, len(opts.KeepParams))
		for _, k := range opts.KeepParams {
			keep[k] = struct{}{}
		}
		for k := range q {
			if _, ok := keep[k]; !ok {
				q.Del(k)
			}
		}
	}
	if opts.DropTrackingParams {
		for k := range q {
			if isTrackingParam(k) {
				q.Del(k)
			}
		}
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := url.Values{}
	for _, k := range keys {
		values := q[k]
		sort.Strings(values)
		for _, v := range values {
			ordered.Add(k, v)
		}
	}
	return ordered.Encode()
}

// OfferKey canonicalizes an offer URL with OfferKeyOptions. Input that cannot
// be canonicalized is keyed by its trimmed form.
func OfferKey(raw string) string {
	key, err := Canonicalize(raw, OfferKeyOptions)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return key
}
