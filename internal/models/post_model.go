package models

import "time"

type ScheduledPost struct {
	ID           string     `json:"id"`
	ScheduleTime time.Time  `json:"scheduleTime"`
	Content      string     `json:"content"`
	Platforms    []Platform `json:"platforms"`
	Status       string     `json:"status"` // pending, scheduled, posted, failed, draft
	Posted       bool       `json:"posted"`
	PostedAt     *time.Time `json:"postedAt"`
}

const (
	PostStatusPending   = "pending"
	PostStatusScheduled = "scheduled"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
	PostStatusDraft     = "draft"
)

// Due reports whether the post should be executed at the given instant.
func (p *ScheduledPost) Due(now time.Time) bool {
	return !p.Posted && !p.ScheduleTime.After(now)
}
