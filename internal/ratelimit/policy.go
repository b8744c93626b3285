package ratelimit

import (
	"time"

	"github.com/postpilotapp/postpilot/internal/models"
)

// Operation channels subject to per-platform limits.
const (
	OperationPost = "post"
	OperationRead = "read"
)

// OperationLimits holds a platform's published hourly quotas.
type OperationLimits struct {
	Posts int
	Reads int
}

// DefaultHourlyLimit applies to unknown platforms or operations.
const DefaultHourlyLimit = 100

// Window is the accounting window the limit tables are expressed in.
const Window = time.Hour

// PlatformLimits is business policy, not mechanism: the per-platform hourly
// quotas enforced in front of any handler that talks to external platforms.
var PlatformLimits = map[models.Platform]OperationLimits{
	models.PlatformInstagram: {Posts: 25, Reads: 200},
	models.PlatformTiktok:    {Posts: 50, Reads: 500},
	models.PlatformYoutube:   {Posts: 10, Reads: 100},
	models.PlatformTwitter:   {Posts: 300, Reads: 1000},
}

// LimitFor returns the hourly quota for a platform and operation.
func LimitFor(platform models.Platform, operation string) int {
	limits, ok := PlatformLimits[platform]
	if !ok {
		return DefaultHourlyLimit
	}
	switch operation {
	case OperationPost:
		return limits.Posts
	case OperationRead:
		return limits.Reads
	default:
		return DefaultHourlyLimit
	}
}

// RefreshIntervals are the advisory minimum intervals between token refreshes
// per platform's published policy. Callers should not invoke a refresh more
// often than this.
var RefreshIntervals = map[models.Platform]time.Duration{
	models.PlatformInstagram: 60 * 24 * time.Hour,
	models.PlatformYoutube:   time.Hour,
	models.PlatformTiktok:    24 * time.Hour,
	models.PlatformTwitter:   7 * 24 * time.Hour,
}
