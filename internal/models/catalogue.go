package models

import (
	"time"
)

// AppType classifies applications (core platform, business line, integration, ...)
type AppType struct {
	ID   string `gorm:"primaryKey;size:100"`
	Name string `gorm:"size:100;not null"`
}

// Application is a deployable platform module identified by its label.
// Core applications are mandatory in every release.
type Application struct {
	AppLabel    string  `gorm:"primaryKey;size:100"`
	Name        string  `gorm:"size:100"`
	AppTypeID   *string `gorm:"size:100"`
	AppType     *AppType
	ParentLabel *string `gorm:"size:100"`
	Parent      *Application `gorm:"foreignKey:ParentLabel;references:AppLabel"`
	URL         string  `gorm:"size:200"`
	Icon        string  `gorm:"size:255"`
	Order       int
	IsCore      bool `gorm:"not null;default:false"`
	IsMenu      bool `gorm:"not null;default:false"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	CodingCategories []CodingCategory `gorm:"many2many:application_coding_categories;"`
	Codings          []Coding         `gorm:"many2many:application_codings;"`
}

// ApplicationVersion is one released version of an application.
// (Version, AppLabel) is unique; Predecessor links the prior version.
type ApplicationVersion struct {
	VersionID     uint64 `gorm:"primaryKey;autoIncrement"`
	Version       string `gorm:"size:100;not null;index:idx_app_version,unique"`
	AppLabel      string `gorm:"size:100;not null;index:idx_app_version,unique"`
	Application   *Application `gorm:"foreignKey:AppLabel;references:AppLabel"`
	PredecessorID *uint64
	Predecessor   *ApplicationVersion `gorm:"foreignKey:PredecessorID"`
	Description   string
	Path          string `gorm:"size:255"`
	ReleaseDate   time.Time
}

// CodingCategory groups codings; Type "tree" marks hierarchical categories.
type CodingCategory struct {
	CategoryID  uint64 `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null"`
	GeneralName string `gorm:"size:100"`
	Type        string `gorm:"size:20"`
	ParentID    *uint64
	Parent      *CodingCategory `gorm:"foreignKey:ParentID"`
}

// Coding is a single code value inside a category.
type Coding struct {
	CodingID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"size:100;not null"`
	Order      int
	CategoryID *uint64
	Category   *CodingCategory `gorm:"foreignKey:CategoryID"`
	ParentID   *uint64
	Parent     *Coding `gorm:"foreignKey:ParentID"`
}

// ModelDescriptor names one data-entity type within a module. Rows are seeded
// at startup from the static catalog, not discovered by reflection.
type ModelDescriptor struct {
	DescriptorID uint64 `gorm:"primaryKey;autoIncrement"`
	AppLabel     string `gorm:"size:100;not null;index:idx_descriptor,unique"`
	Model        string `gorm:"size:100;not null;index:idx_descriptor,unique"`
}

// TableName overrides the table name for AppType
func (AppType) TableName() string {
	return "app_types"
}

// TableName overrides the table name for Application
func (Application) TableName() string {
	return "applications"
}

// TableName overrides the table name for ApplicationVersion
func (ApplicationVersion) TableName() string {
	return "application_versions"
}

// TableName overrides the table name for CodingCategory
func (CodingCategory) TableName() string {
	return "coding_categories"
}

// TableName overrides the table name for Coding
func (Coding) TableName() string {
	return "codings"
}

// TableName overrides the table name for ModelDescriptor
func (ModelDescriptor) TableName() string {
	return "model_descriptors"
}
