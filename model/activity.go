package model

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog records mutating API actions for later inspection.
type ActivityLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_activity_trace;size:36;not null" json:"trace_id"`
	UserID     *int64         `gorm:"index:idx_activity_user" json:"user_id"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	Payload    datatypes.JSON `json:"payload"`
	Error      string         `gorm:"type:text" json:"error"`
	IP         string         `gorm:"size:45" json:"ip"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_activity_created;autoCreateTime:milli" json:"created_at"`
}
