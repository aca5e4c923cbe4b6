package netlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiflow/internal/models"
)

func TestURLPattern(t *testing.T) {
	cases := map[string]string{
		"https://api.test/users/42/orders?page=2":                       "/users/:id/orders",
		"/api/items/3f2504e0-4f89-11d3-9a0c-0305e82c3301":               "/api/items/:id",
		"https://api.test/v1/blobs/deadbeef0123abcd/":                   "/v1/blobs/:id",
		"https://api.test/v2/search":                                    "/v2/search",
		"https://api.test":                                              "/",
		"https://api.test/session/eyJhbGciOiJIUzI1NiJ9abc123XYZ/refresh": "/session/:id/refresh",
	}
	for in, want := range cases {
		assert.Equal(t, want, URLPattern(in), in)
	}
}

func TestCacheWindowAndCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(3, time.Minute)
	c.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		c.Add(models.NetworkCall{Method: "GET", URL: "/a", Timestamp: now.Add(time.Duration(i) * time.Second)})
	}
	assert.Equal(t, 3, c.Len())
	assert.Len(t, c.Between(now.Add(2*time.Second), time.Time{}), 2)
	assert.Len(t, c.Between(now, now.Add(time.Second)), 1)

	now = now.Add(2 * time.Minute)
	assert.Empty(t, c.Recent(), "expired calls are ignored")
	stamped := c.Add(models.NetworkCall{Method: "POST", URL: "/b"})
	assert.Equal(t, now, stamped.Timestamp)
	assert.Equal(t, 1, c.Len())
}

func TestValidateAPIs(t *testing.T) {
	calls := []models.NetworkCall{
		{Method: "post", URL: "https://api.test/orders/7", Status: 201},
		{Method: "GET", URL: "https://api.test/orders/7/items", Status: 500},
	}
	results := ValidateAPIs([]models.ExpectedAPI{
		{Method: "POST", URLPattern: "/orders/:id", ExpectedStatus: 201},
		{Method: "GET", URLPattern: "/orders/:id/items", ExpectedStatus: 200},
		{Method: "DELETE", URLPattern: "/orders/:id"},
	}, calls)

	require.Len(t, results, 3)
	assert.True(t, results[0].Matched)
	assert.False(t, results[1].Matched)
	assert.Equal(t, 500, results[1].ActualStatus)
	assert.Contains(t, results[1].Message, "expected status 200")
	assert.False(t, results[2].Matched)
	assert.Nil(t, results[2].Call)
	assert.False(t, AllMatched(results))
	assert.True(t, AllMatched(results[:1]))
}

func TestExpectFromCall(t *testing.T) {
	exp := Expect(models.NetworkCall{Method: "put", URL: "https://api.test/users/9?x=1", Status: 204})
	assert.Equal(t, models.ExpectedAPI{Method: "PUT", URLPattern: "/users/:id", ExpectedStatus: 204}, exp)
}
