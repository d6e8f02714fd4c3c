package api

import (
	"sync"
	"time"
)

const (
	requestsPerWindow = 300
	windowLength      = time.Minute
)

// RateLimiter bounds request rates per client key with a fixed window that
// resets every minute.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientWindow),
	}
}

// Allow reports whether the client may make another request in the current
// window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	window, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &clientWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(window.windowStart) >= windowLength {
		window.count = 1
		window.windowStart = now
		return true
	}

	if window.count >= requestsPerWindow {
		return false
	}

	window.count++
	return true
}

// Cleanup drops client entries idle for several windows. Call periodically
// to keep the map bounded.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, window := range rl.clients {
		if now.Sub(window.windowStart) > 5*windowLength {
			delete(rl.clients, key)
		}
	}
}
