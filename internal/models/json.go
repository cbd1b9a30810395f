package models

import (
	"database/sql/driver"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON wraps gorm.io/datatypes.JSON so log detail columns map to a native
// JSON type on every supported dialect.
type JSON struct {
	datatypes.JSON
}

// NewJSON marshals v into a JSON column value. Marshal failures produce an
// empty value rather than an error; log details are best-effort.
func NewJSON(v interface{}) JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return JSON{}
	}
	return JSON{datatypes.JSON(b)}
}

// Value promotes the embedded JSON's Value method
func (j JSON) Value() (driver.Value, error) {
	return j.JSON.Value()
}

// Scan promotes the embedded JSON's Scan method
func (j *JSON) Scan(value interface{}) error {
	return j.JSON.Scan(value)
}

// GormDBDataType picks the column type per driver; MSSQL has no 'json' type.
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	case "sqlite":
		return "JSON"
	}
	return "TEXT"
}
