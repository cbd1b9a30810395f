package models

import "time"

// Beneficiary is the tenant/client organization releases are assigned to.
type Beneficiary struct {
	BeneficiaryID uint64 `gorm:"primaryKey;autoIncrement"`
	PublicName    string `gorm:"size:100;not null"`
	PrivateName   string `gorm:"size:100"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Level is one tier of the organizational hierarchy.
type Level struct {
	LevelID uint64 `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"size:100;not null"`
	Count   int    `gorm:"not null;default:0"`
}

// Structure is an organizational unit of a beneficiary at a given level.
type Structure struct {
	StructureID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"size:100;not null"`
	Description   string
	IsBranch      bool `gorm:"not null;default:false"`
	LevelID       *uint64
	Level         *Level
	BeneficiaryID uint64 `gorm:"not null;index"`
	Beneficiary   *Beneficiary
}

// TableName overrides the table name for Beneficiary
func (Beneficiary) TableName() string {
	return "beneficiaries"
}

// TableName overrides the table name for Level
func (Level) TableName() string {
	return "levels"
}

// TableName overrides the table name for Structure
func (Structure) TableName() string {
	return "structures"
}
