package models

import "time"

// Permission grants a capability on one model descriptor.
type Permission struct {
	PermissionID uint64 `gorm:"primaryKey;autoIncrement"`
	Codename     string `gorm:"size:150;not null;index:idx_permission,unique"`
	Name         string `gorm:"size:255;not null"`
	DescriptorID uint64 `gorm:"not null;index:idx_permission,unique"`
	Descriptor   *ModelDescriptor `gorm:"foreignKey:DescriptorID"`
}

// Group is a named permission set. IsRole marks groups that double as
// assignable roles.
type Group struct {
	GroupID     uint64 `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex;size:150;not null"`
	IsRole      bool   `gorm:"not null;default:false"`
	Permissions []Permission `gorm:"many2many:group_permissions;"`
}

// User is an operator account.
type User struct {
	UserID      uint64 `gorm:"primaryKey;autoIncrement"`
	Username    string `gorm:"uniqueIndex;size:150;not null"`
	Email       string `gorm:"size:255"`
	FirstName   string `gorm:"size:100"`
	LastName    string `gorm:"size:100"`
	Groups      []Group      `gorm:"many2many:user_groups;"`
	Permissions []Permission `gorm:"many2many:user_permissions;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the table name for Permission
func (Permission) TableName() string {
	return "permissions"
}

// TableName overrides the table name for Group
func (Group) TableName() string {
	return "groups"
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}
