package videos

import (
	"strings"
	"time"

	"github.com/screengrab/backend/internal/models"
)

// Expiration policy tags accepted from clients.
const (
	Policy24h    = "24h"
	Policy1Week  = "1week"
	Policy1Month = "1month"

	DefaultPolicy = Policy24h
)

// DefaultRetention is how long an expired video is kept before the sweep purges it.
const DefaultRetention = 7 * 24 * time.Hour

// ExpirationDuration maps a policy tag to its share window. Unknown tags get the default window.
func ExpirationDuration(policy string) time.Duration {
	switch policy {
	case Policy1Week:
		return 7 * 24 * time.Hour
	case Policy1Month:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// PolicyOrDefault returns the trimmed tag, or the default when none was supplied.
func PolicyOrDefault(policy string) string {
	policy = strings.TrimSpace(policy)
	if policy == "" {
		return DefaultPolicy
	}
	return policy
}

// IsExpired reports whether the video's share link is no longer valid at now.
// Reads, listings and the sweep all use this predicate.
func IsExpired(video models.Video, now time.Time) bool {
	return video.IsExpired || !now.Before(video.ExpiresAt)
}
