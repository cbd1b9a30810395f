package models

import "time"

// Update lifecycle states.
const (
	UpdateStatusDraft      = "draft"
	UpdateStatusTesting    = "testing"
	UpdateStatusReady      = "ready"
	UpdateStatusDeployed   = "deployed"
	UpdateStatusDeprecated = "deprecated"
)

// Update types.
const (
	UpdateTypeBugfix      = "bugfix"
	UpdateTypeImprovement = "improvement"
	UpdateTypeFeature     = "feature"
	UpdateTypeSecurity    = "security"
	UpdateTypeHotfix      = "hotfix"
)

// ClientUpdate deployment states.
const (
	ClientUpdateStatusPending     = "pending"
	ClientUpdateStatusDownloading = "downloading"
	ClientUpdateStatusInProgress  = "in_progress"
	ClientUpdateStatusCompleted   = "completed"
	ClientUpdateStatusFailed      = "failed"
	ClientUpdateStatusRolledBack  = "rolled_back"
	ClientUpdateStatusSkipped     = "skipped"
)

// Update is an incremental change package anchored to a base release.
// Item mutation is only allowed while status is draft or testing.
type Update struct {
	UpdateID             uint64 `gorm:"primaryKey;autoIncrement"`
	Name                 string `gorm:"size:200;not null"`
	Version              string `gorm:"size:50;not null"`
	BaseReleaseID        uint64 `gorm:"not null;index"`
	BaseRelease          *Release `gorm:"foreignKey:BaseReleaseID"`
	UpdateType           string `gorm:"size:20;not null;default:improvement"`
	Status               string `gorm:"size:20;not null;default:draft"`
	Description          string
	Changelog            string
	ExportedFile         string `gorm:"size:500"`
	RequiresMigration    bool   `gorm:"not null;default:false"`
	IsMandatory          bool   `gorm:"not null;default:false"`
	MinCompatibleVersion string `gorm:"size:50"`
	CreatedBy            string `gorm:"size:150"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Items []UpdateItem `gorm:"foreignKey:UpdateID"`
}

// UpdateItem describes one discrete change within an update. Descriptive
// only; the package generator does not stage file content from these rows.
type UpdateItem struct {
	ItemID       uint64 `gorm:"primaryKey;autoIncrement"`
	UpdateID     uint64 `gorm:"not null;index"`
	ItemType     string `gorm:"size:20;not null"`
	ChangeType   string `gorm:"size:20;not null"`
	AppLabel     *string `gorm:"size:100"`
	Application  *Application `gorm:"foreignKey:AppLabel;references:AppLabel"`
	DescriptorID *uint64
	Descriptor   *ModelDescriptor `gorm:"foreignKey:DescriptorID"`
	FilePath     string `gorm:"size:500"`
	Description  string
	Order        int `gorm:"not null;default:0"`
}

// ClientUpdate tracks deploying one update to one client release.
type ClientUpdate struct {
	ClientUpdateID    uint64 `gorm:"primaryKey;autoIncrement"`
	UpdateID          uint64 `gorm:"not null;index:idx_client_update,unique"`
	Update            *Update
	ClientReleaseID   uint64 `gorm:"not null;index:idx_client_update,unique"`
	ClientRelease     *ClientRelease
	BeneficiaryID     uint64 `gorm:"not null;index"`
	Beneficiary       *Beneficiary
	Status            string `gorm:"size:20;not null;default:pending"`
	ScheduledAt       *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	AppliedBy         string `gorm:"size:150"`
	RollbackAvailable bool   `gorm:"not null;default:true"`
	RollbackFile      string `gorm:"size:500"`
	ErrorMessage      string
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UpdateLog is the append-only audit trail for update operations.
type UpdateLog struct {
	LogID          uint64 `gorm:"primaryKey;autoIncrement"`
	UpdateID       uint64 `gorm:"not null;index"`
	ClientUpdateID *uint64
	Action         string `gorm:"size:20;not null"`
	PerformedBy    string `gorm:"size:150"`
	PerformedAt    time.Time
	Details        JSON   `gorm:"type:json"`
	IPAddress      string `gorm:"size:45"`
}

// TableName overrides the table name for Update
func (Update) TableName() string {
	return "updates"
}

// TableName overrides the table name for UpdateItem
func (UpdateItem) TableName() string {
	return "update_items"
}

// TableName overrides the table name for ClientUpdate
func (ClientUpdate) TableName() string {
	return "client_updates"
}

// TableName overrides the table name for UpdateLog
func (UpdateLog) TableName() string {
	return "update_logs"
}
