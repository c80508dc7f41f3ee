package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLimiter_AllowsBurstThenDenies(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:         true,
		EndpointConfigs: []EndpointConfig{{Path: "/f/", Method: "GET", Limit: 60, Window: time.Minute, Burst: 3}},
	})

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("10.0.0.1", fmt.Sprintf("/f/code%d", i), "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 60, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/f/other", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, time.Second, info.RetryAfter)
}

func TestLimiter_Refills(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{
		Enabled:         true,
		EndpointConfigs: []EndpointConfig{{Path: "/f/", Method: "GET", Limit: 60, Window: time.Minute, Burst: 1}},
	})

	allowed, _ := l.Allow("c", "/f/a", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/f/a", "GET")
	require.False(t, allowed)

	clock.Advance(time.Second)

	allowed, _ = l.Allow("c", "/f/a", "GET")
	assert.True(t, allowed)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})

	allowed, _ := l.Allow("a", "/x", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a", "/x", "GET")
	assert.False(t, allowed)

	allowed, _ = l.Allow("b", "/x", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Hour})

	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("a", "/x", "GET")
		assert.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"good": true},
		Blacklist:     map[string]bool{"bad": true},
	})

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("good", "/x", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("bad", "/x", "GET")
	assert.False(t, allowed)
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})

	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("a", "/health", "GET")
		assert.True(t, allowed)
	}
	assert.Zero(t, l.size())
}

func TestLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, IdleTTL: time.Hour})

	l.Allow("a", "/x", "GET")
	clock.Advance(30 * time.Minute)
	l.Allow("b", "/x", "GET")
	require.Equal(t, 2, l.size())

	clock.Advance(45 * time.Minute)
	l.cleanupBuckets()

	assert.Equal(t, 1, l.size())
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("a", "/x", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestLimiter_StopTwice(t *testing.T) {
	l := NewLimiter(nil)
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/f/", Method: "GET", Limit: 30},
		{Path: "/f/special", Method: "GET", Limit: 5},
		{Path: "/api/", Method: "GET", Limit: 100},
		{Path: "/api/files/", Method: "GET", Limit: 60},
	}

	tests := []struct {
		name   string
		path   string
		method string
		want   int
		found  bool
	}{
		{"prefix", "/f/abc", "GET", 30, true},
		{"exact wins", "/f/special", "GET", 5, true},
		{"longest prefix", "/api/files/abc", "GET", 60, true},
		{"method mismatch", "/f/abc", "POST", 0, false},
		{"no match", "/other", "GET", 0, false},
		{"health", "/health", "GET", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if !tt.found {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Limit)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_DEFAULT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1 , ,10.0.0.2")

	cfg := LoadConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)
	assert.Equal(t, map[string]bool{"10.0.0.1": true, "10.0.0.2": true}, cfg.Whitelist)
	assert.NotEmpty(t, cfg.EndpointConfigs)
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	assert.False(t, LoadConfig().Enabled)
}
