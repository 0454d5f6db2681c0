// Package resolver produces answer text for research queries.
package resolver

import (
	"context"
	_ "embed"
	"strings"
	"time"
)

// DefaultDelay simulates the time a literature search takes.
const DefaultDelay = 1500 * time.Millisecond

// DefaultKeywords trigger the literature review document.
var DefaultKeywords = []string{"cancer"}

// CancerReview is the canned literature review returned for trigger queries.
//
//go:embed documents/cancer_review.md
var CancerReview string

//go:embed documents/clarify.md
var clarifyTemplate string

// Clarify returns the clarifying-question document for query.
func Clarify(query string) string {
	return strings.ReplaceAll(clarifyTemplate, "{{query}}", query)
}

// Canned answers from built-in documents: queries mentioning a trigger
// keyword get the literature review, everything else a clarifying question.
type Canned struct {
	keywords []string
	delay    time.Duration
}

// CannedOption configures a Canned resolver.
type CannedOption func(*Canned)

// WithKeywords replaces the trigger keywords. Matching is case-insensitive.
func WithKeywords(keywords ...string) CannedOption {
	return func(c *Canned) {
		var out []string
		for _, k := range keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				out = append(out, k)
			}
		}
		if len(out) > 0 {
			c.keywords = out
		}
	}
}

// WithDelay sets the simulated search latency. Zero answers immediately.
func WithDelay(d time.Duration) CannedOption {
	return func(c *Canned) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// NewCanned creates a canned resolver.
func NewCanned(opts ...CannedOption) *Canned {
	c := &Canned{
		keywords: DefaultKeywords,
		delay:    DefaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the resolver name.
func (c *Canned) Name() string {
	return "canned"
}

// Resolve waits for the simulated latency and picks a document.
func (c *Canned) Resolve(ctx context.Context, query string) (string, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if c.matches(query) {
		return CancerReview, nil
	}
	return Clarify(query), nil
}

func (c *Canned) matches(query string) bool {
	q := strings.ToLower(query)
	for _, k := range c.keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}
