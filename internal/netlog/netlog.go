// Package netlog keeps the recent network activity pushed in by the host and
// matches it against the API calls a step is expected to trigger.
package netlog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"indiflow/internal/models"
)

const (
	DefaultCapacity = 500
	DefaultTTL      = 5 * time.Minute
)

// Cache is a bounded, time-ordered window of recent calls. Calls older than
// the TTL are ignored and dropped on the next write.
type Cache struct {
	mu       sync.Mutex
	calls    []models.NetworkCall
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{capacity: capacity, ttl: ttl, now: time.Now}
}

// Add appends call, stamping it with the current time when it has none.
func (c *Cache) Add(call models.NetworkCall) models.NetworkCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	if call.Timestamp.IsZero() {
		call.Timestamp = c.now()
	}
	c.pruneLocked()
	c.calls = append(c.calls, call)
	if over := len(c.calls) - c.capacity; over > 0 {
		c.calls = append(c.calls[:0:0], c.calls[over:]...)
	}
	return call
}

// Between returns live calls with from <= Timestamp <= to, oldest first.
// A zero to means no upper bound.
func (c *Cache) Between(from, to time.Time) []models.NetworkCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.ttl)
	var out []models.NetworkCall
	for _, call := range c.calls {
		if call.Timestamp.Before(cutoff) || call.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && call.Timestamp.After(to) {
			continue
		}
		out = append(out, call)
	}
	return out
}

// Recent returns every live call.
func (c *Cache) Recent() []models.NetworkCall {
	return c.Between(time.Time{}, time.Time{})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *Cache) pruneLocked() {
	cutoff := c.now().Add(-c.ttl)
	i := 0
	for i < len(c.calls) && c.calls[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.calls = append(c.calls[:0:0], c.calls[i:]...)
	}
}

var (
	numericSeg = regexp.MustCompile(`^\d+$`)
	uuidSeg    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexSeg     = regexp.MustCompile(`^[0-9a-fA-F]{12,}$`)
	tokenSeg   = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
)

// URLPattern reduces a request URL to its path with identifier segments
// replaced by :id, so calls for different records share one pattern.
func URLPattern(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	if path == "" {
		path = "/"
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if numericSeg.MatchString(s) || uuidSeg.MatchString(s) || hexSeg.MatchString(s) ||
			(tokenSeg.MatchString(s) && strings.ContainsAny(s, "0123456789")) {
			segs[i] = ":id"
		}
	}
	out := strings.Join(segs, "/")
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// Expect derives the expectation a recorded call establishes.
func Expect(call models.NetworkCall) models.ExpectedAPI {
	return models.ExpectedAPI{
		Method:         strings.ToUpper(call.Method),
		URLPattern:     URLPattern(call.URL),
		ExpectedStatus: call.Status,
	}
}

// Matches reports whether call satisfies the method and URL of exp.
func Matches(exp models.ExpectedAPI, call models.NetworkCall) bool {
	return strings.EqualFold(exp.Method, call.Method) && URLPattern(call.URL) == exp.URLPattern
}

// ValidateAPIs checks every expectation against calls, in order. A call is
// consumed by the first expectation it satisfies.
func ValidateAPIs(expected []models.ExpectedAPI, calls []models.NetworkCall) []models.APIValidationResult {
	used := make([]bool, len(calls))
	out := make([]models.APIValidationResult, 0, len(expected))
	for _, exp := range expected {
		res := models.APIValidationResult{Expected: exp}
		for i, call := range calls {
			if used[i] || !Matches(exp, call) {
				continue
			}
			used[i] = true
			c := call
			res.Call = &c
			res.ActualStatus = call.Status
			if exp.ExpectedStatus == 0 || exp.ExpectedStatus == call.Status {
				res.Matched = true
			} else {
				res.Message = fmt.Sprintf("expected status %d, got %d", exp.ExpectedStatus, call.Status)
			}
			break
		}
		if res.Call == nil {
			res.Message = fmt.Sprintf("no %s %s observed", exp.Method, exp.URLPattern)
		}
		out = append(out, res)
	}
	return out
}

// AllMatched reports whether every result matched.
func AllMatched(results []models.APIValidationResult) bool {
	for _, r := range results {
		if !r.Matched {
			return false
		}
	}
	return true
}
