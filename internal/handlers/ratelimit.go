package handlers

import (
	"net"
	"net/http"
	"strings"
)

// RateLimiter guards endpoints that anonymous callers can reach.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(r, scope))
}

// rateLimitKey buckets callers by scope, target video and client address.
func rateLimitKey(r *http.Request, scope string) string {
	parts := make([]string, 0, 3)
	if scope != "" {
		parts = append(parts, scope)
	}
	if id := r.PathValue("id"); id != "" {
		parts = append(parts, id)
	}
	parts = append(parts, clientIP(r))
	return strings.Join(parts, ":")
}

func clientIP(r *http.Request) string {
	// Set by Cloudflare in front of the API.
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
