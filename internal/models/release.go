package models

import "time"

// Release lifecycle states.
const (
	ReleaseStatusDraft     = "draft"
	ReleaseStatusPublished = "published"
	ReleaseStatusArchived  = "archived"
)

// Release is a named, versioned bundle of applications, model capability rows,
// and eligible clients/groups/users. BaseRelease links update lineage.
type Release struct {
	ReleaseID     uint64 `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"size:200;not null"`
	Description   string
	Version       string `gorm:"size:50"`
	BaseReleaseID *uint64
	BaseRelease   *Release `gorm:"foreignKey:BaseReleaseID"`
	Status        string   `gorm:"size:20;not null;default:draft"`
	ReleaseDate   time.Time
	ExportedFile  string `gorm:"size:500"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Apps          []ReleaseApp         `gorm:"foreignKey:ReleaseID"`
	Models        []ReleaseModel       `gorm:"foreignKey:ReleaseID"`
	Beneficiaries []ReleaseBeneficiary `gorm:"foreignKey:ReleaseID"`
	Groups        []ReleaseGroup       `gorm:"foreignKey:ReleaseID"`
	Users         []ReleaseUser        `gorm:"foreignKey:ReleaseID"`
}

// ReleaseApp attaches one application to a release. IsCore is copied from the
// application at attach time so the release stays valid if the catalogue moves.
type ReleaseApp struct {
	ReleaseAppID uint64 `gorm:"primaryKey;autoIncrement"`
	ReleaseID    uint64 `gorm:"not null;index:idx_release_app,unique"`
	AppLabel     string `gorm:"size:100;not null;index:idx_release_app,unique"`
	Application  *Application `gorm:"foreignKey:AppLabel;references:AppLabel"`
	IsCore       bool   `gorm:"not null;default:false"`
	AppVersionID *uint64
	AppVersion   *ApplicationVersion `gorm:"foreignKey:AppVersionID"`
	Year         *int
}

// ReleaseModel carries per-model CRUD capability flags inside a release.
type ReleaseModel struct {
	ReleaseModelID uint64 `gorm:"primaryKey;autoIncrement"`
	ReleaseID      uint64 `gorm:"not null;index:idx_release_model,unique"`
	AppLabel       string `gorm:"size:100;not null"`
	DescriptorID   uint64 `gorm:"not null;index:idx_release_model,unique"`
	Descriptor     *ModelDescriptor `gorm:"foreignKey:DescriptorID"`
	CanCreate      bool `gorm:"not null;default:true"`
	CanRead        bool `gorm:"not null;default:true"`
	CanUpdate      bool `gorm:"not null;default:true"`
	CanDelete      bool `gorm:"not null;default:true"`
}

// ReleaseBeneficiary marks a beneficiary as eligible for a release.
type ReleaseBeneficiary struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	ReleaseID     uint64 `gorm:"not null;index:idx_release_beneficiary,unique"`
	BeneficiaryID uint64 `gorm:"not null;index:idx_release_beneficiary,unique"`
	Beneficiary   *Beneficiary
}

// ReleaseGroup marks a group as eligible for a release.
type ReleaseGroup struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ReleaseID uint64 `gorm:"not null;index:idx_release_group,unique"`
	GroupID   uint64 `gorm:"not null;index:idx_release_group,unique"`
	Group     *Group
}

// ReleaseUser marks a user as eligible for a release.
type ReleaseUser struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ReleaseID uint64 `gorm:"not null;index:idx_release_user,unique"`
	UserID    uint64 `gorm:"not null;index:idx_release_user,unique"`
	User      *User
}

// ClientRelease binds a release to a beneficiary with a validity window.
// At most one row per beneficiary is active at any time; the assignment
// service enforces that, not the schema.
type ClientRelease struct {
	ClientReleaseID uint64 `gorm:"primaryKey;autoIncrement"`
	ReleaseID       uint64 `gorm:"not null;index"`
	Release         *Release
	BeneficiaryID   uint64 `gorm:"not null;index"`
	Beneficiary     *Beneficiary
	IsActive        bool `gorm:"not null;default:false;index"`
	ActiveFrom      time.Time
	ActiveTo        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the table name for Release
func (Release) TableName() string {
	return "releases"
}

// TableName overrides the table name for ReleaseApp
func (ReleaseApp) TableName() string {
	return "release_apps"
}

// TableName overrides the table name for ReleaseModel
func (ReleaseModel) TableName() string {
	return "release_models"
}

// TableName overrides the table name for ReleaseBeneficiary
func (ReleaseBeneficiary) TableName() string {
	return "release_beneficiaries"
}

// TableName overrides the table name for ReleaseGroup
func (ReleaseGroup) TableName() string {
	return "release_groups"
}

// TableName overrides the table name for ReleaseUser
func (ReleaseUser) TableName() string {
	return "release_users"
}

// TableName overrides the table name for ClientRelease
func (ClientRelease) TableName() string {
	return "client_releases"
}
