package models

import "time"

// Activity log actions.
const (
	ActivityActionCreate = "create"
	ActivityActionUpdate = "update"
	ActivityActionDelete = "delete"
)

// ActivityLog records one persistence mutation anywhere in the system:
// who did it, what table and row, and the field-level diff.
type ActivityLog struct {
	ActivityID uint64 `gorm:"primaryKey;autoIncrement"`
	Actor      string `gorm:"size:150;index"`
	Action     string `gorm:"size:10;not null"`
	Entity     string `gorm:"size:100;not null;index"`
	EntityID   string `gorm:"size:64"`
	Changes    JSON   `gorm:"type:json"`
	CreatedAt  time.Time
}

// TableName overrides the table name for ActivityLog
func (ActivityLog) TableName() string {
	return "activity_logs"
}
