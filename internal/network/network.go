// Package network holds the static catalog of affiliate networks and
// identifies which network an offer URL belongs to.
package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ID identifies an affiliate network.
type ID string

const (
	ClickBank  ID = "clickbank"
	Amazon     ID = "amazon"
	JVZoo      ID = "jvzoo"
	ShareASale ID = "shareasale"
)

// Rule names used as threshold keys.
const (
	RuleMinGravity        = "minGravity"
	RuleMinCommission     = "minCommission"
	RuleMaxRefundRate     = "maxRefundRate"
	RuleMinAvgEarnings    = "minAvgEarnings"
	RuleMinRating         = "minRating"
	RuleMinReviewCount    = "minReviewCount"
	RuleMinConversionRate = "minConversionRate"
)

var ErrNetworkNotSupported = errors.New("network not supported")

// ParseError reports a URL that could not be parsed into scheme and host.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse offer url %q: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errMissingHost = errors.New("missing host")

// RuleSet is the immutable rule set of one network. Thresholds are only
// reachable through accessors so a catalog value can be shared freely.
type RuleSet struct {
	ID     ID
	Name   string
	Domain string
	rules  map[string]float64
}

// NewRuleSet copies rules so later mutation of the argument has no effect.
func NewRuleSet(id ID, name, domain string, rules map[string]float64) RuleSet {
	cp := make(map[string]float64, len(rules))
	for k, v := range rules {
		cp[k] = v
	}
	return RuleSet{ID: id, Name: name, Domain: domain, rules: cp}
}

// Threshold returns the bound for a rule name and whether the network defines it.
func (r RuleSet) Threshold(rule string) (float64, bool) {
	v, ok := r.rules[rule]
	return v, ok
}

// Rules returns a copy of every threshold.
func (r RuleSet) Rules() map[string]float64 {
	cp := make(map[string]float64, len(r.rules))
	for k, v := range r.rules {
		cp[k] = v
	}
	return cp
}

func (r RuleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     ID                 `json:"id"`
		Name   string             `json:"name"`
		Domain string             `json:"domain"`
		Rules  map[string]float64 `json:"rules"`
	}{r.ID, r.Name, r.Domain, r.rules})
}

// Catalog is an ordered list of rule sets. Order is the matching precedence.
type Catalog struct {
	sets []RuleSet
}

// NewCatalog builds a catalog that matches in the given order.
func NewCatalog(sets ...RuleSet) *Catalog {
	return &Catalog{sets: append([]RuleSet(nil), sets...)}
}

// DefaultCatalog returns the four built-in networks in declaration order.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		NewRuleSet(ClickBank, "ClickBank", "clickbank", map[string]float64{
			RuleMinGravity:     20,
			RuleMinCommission:  50,
			RuleMaxRefundRate:  0.15,
			RuleMinAvgEarnings: 25,
		}),
		NewRuleSet(Amazon, "Amazon Associates", "amazon", map[string]float64{
			RuleMinCommission:  3,
			RuleMinRating:      4.0,
			RuleMinReviewCount: 100,
		}),
		NewRuleSet(JVZoo, "JVZoo", "jvzoo", map[string]float64{
			RuleMinCommission:     40,
			RuleMaxRefundRate:     0.10,
			RuleMinConversionRate: 0.02,
		}),
		NewRuleSet(ShareASale, "ShareASale", "shareasale", map[string]float64{
			RuleMinCommission:     10,
			RuleMinConversionRate: 0.01,
			RuleMinAvgEarnings:    15,
		}),
	)
}

// All returns the rule sets in matching order.
func (c *Catalog) All() []RuleSet {
	return append([]RuleSet(nil), c.sets...)
}

// Get looks a rule set up by id.
func (c *Catalog) Get(id ID) (RuleSet, bool) {
	for _, rs := range c.sets {
		if rs.ID == id {
			return rs, true
		}
	}
	return RuleSet{}, false
}

// Identify returns the first rule set whose domain substring occurs in the
// URL's host. Hosts that happen to contain another network's domain match
// that network if it is declared earlier.
func (c *Catalog) Identify(rawURL string) (RuleSet, error) {
	host, err := Host(rawURL)
	if err != nil {
		return RuleSet{}, err
	}
	for _, rs := range c.sets {
		if rs.Domain != "" && strings.Contains(host, strings.ToLower(rs.Domain)) {
			return rs, nil
		}
	}
	return RuleSet{}, fmt.Errorf("%w: host %q", ErrNetworkNotSupported, host)
}

// Host parses rawURL and returns its lowercased, ASCII host without port.
func Host(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &ParseError{URL: rawURL, Err: err}
	}
	if u.Host == "" {
		return "", &ParseError{URL: rawURL, Err: errMissingHost}
	}
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	return host, nil
}
