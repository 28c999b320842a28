package dedup

import (
	"time"

	"github.com/jobs/dedup/internal/models"
)

// Uniqueness controls which fields participate in the dedup key when a
// request asks not to be scheduled twice.
type Uniqueness string

const (
	// UniquenessNone always schedules a new job.
	UniquenessNone Uniqueness = "none"
	// UniquenessHook matches on the fully-qualified name only.
	UniquenessHook Uniqueness = "hook"
	// UniquenessGroup matches on name and group.
	UniquenessGroup Uniqueness = "group"
	// UniquenessArgs matches on name, group and the exact argument map.
	UniquenessArgs Uniqueness = "args"
)

// DefaultPriority is used when a request leaves Priority unset.
const DefaultPriority = 10

// TaskRequest describes one unit of work to schedule. Zero values mean
// "run as soon as possible, in the default group, at default priority,
// with no dedup".
type TaskRequest struct {
	Name       string
	Delay      time.Duration
	Interval   time.Duration // recurring requests only
	Args       models.JSONMap
	Group      string
	Priority   int // 0 means DefaultPriority
	MaxRuns    int // recurring requests only, 0 = unbounded
	Uniqueness Uniqueness
}
