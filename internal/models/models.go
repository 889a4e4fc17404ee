package models

import "time"

// User represents an account created through the identity provider.
type User struct {
	ID         string
	Email      string
	Name       string
	ExternalID string
	CreatedAt  time.Time
}

// Video is a recorded clip shared through an expiring link.
type Video struct {
	ID              string
	UserID          string
	Filename        string
	StorageKey      string
	SizeBytes       int64
	DurationSeconds int64
	ExpirationType  string
	ExpiresAt       time.Time
	IsExpired       bool
	CreatedAt       time.Time
	ViewCount       int64
}

// VideoRequest records a viewer asking for an expired video to be shared again.
type VideoRequest struct {
	ID             string
	VideoID        string
	RequesterEmail *string
	RequestedAt    time.Time
	Fulfilled      bool
}

// Identity is the authenticated caller carried by a session token.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Anonymous reports whether the identity carries no user.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}
