package models

import (
	"time"
)

type Job struct {
	ID           uint64       `gorm:"primaryKey;size:64" json:"id"`
	Name         string       `gorm:"size:255;not null;index:idx_jobs_name_status,priority:1" json:"name"`
	GroupName    string       `gorm:"size:255;not null;index" json:"group"`
	Args         JSONMap      `gorm:"type:json" json:"args"`
	ArgsDigest   string       `gorm:"size:64;index" json:"-"`
	Status       JobStatus    `gorm:"size:16;default:'pending';index:idx_jobs_name_status,priority:2" json:"status"`
	Priority     int          `gorm:"default:10" json:"priority"`
	ScheduleKind ScheduleKind `gorm:"size:16;not null;default:'once'" json:"schedule_kind"`
	// Interval in seconds for interval jobs, zero otherwise.
	IntervalSeconds int64     `gorm:"default:0" json:"interval_seconds"`
	CronExpr        string    `gorm:"size:100" json:"cron_expr,omitempty"`
	NextRunAt       time.Time `gorm:"index" json:"next_run_at"`
	MaxRuns         int       `gorm:"default:0" json:"max_runs"` // 0 = unbounded
	RunCount        int       `gorm:"default:0" json:"run_count"`
	ClaimedBy       string    `gorm:"size:64" json:"-"`
	LastError       string    `gorm:"size:1024" json:"last_error,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// Schedule returns the job's schedule descriptor as a closed variant.
func (j *Job) Schedule() Schedule {
	switch j.ScheduleKind {
	case ScheduleKindInterval:
		return Schedule{Kind: ScheduleKindInterval, Every: time.Duration(j.IntervalSeconds) * time.Second}
	case ScheduleKindCron:
		return Schedule{Kind: ScheduleKindCron, Expr: j.CronExpr}
	default:
		return Schedule{Kind: ScheduleKindOnce}
	}
}

// Schedule is the tagged schedule descriptor stored with every job.
// Recurrence is decided by the Kind tag alone.
type Schedule struct {
	Kind  ScheduleKind
	Every time.Duration // interval jobs only
	Expr  string        // cron jobs only
}

func (s Schedule) Recurring() bool {
	return s.Kind == ScheduleKindInterval || s.Kind == ScheduleKindCron
}
