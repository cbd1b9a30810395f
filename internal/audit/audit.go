// Package audit records persistence mutations as activity log rows via gorm
// callbacks. Every create, update, and delete on an audited table produces one
// ActivityLog entry with actor, action, and a field diff.
package audit

import (
	"fmt"
	"reflect"

	"github.com/axisops/releasehub/internal/models"
	"gorm.io/gorm"
)

type contextKey string

const (
	actorKey    contextKey = "audit_actor"
	suppressKey contextKey = "audit_suppress"
)

// skipTables are never audited: the log tables themselves, and the join
// tables gorm manages for many2many relations.
var skipTables = map[string]bool{
	"activity_logs":     true,
	"update_logs":       true,
	"group_permissions": true,
	"user_groups":       true,
	"user_permissions":  true,
}

// WithActor tags a session so subsequent writes are attributed to actor.
func WithActor(db *gorm.DB, actor string) *gorm.DB {
	return db.Set(string(actorKey), actor)
}

// Suppress disables audit recording for the returned session. Bulk internal
// operations such as catalogue seeding use this to avoid flooding the log.
func Suppress(db *gorm.DB) *gorm.DB {
	return db.Set(string(suppressKey), true)
}

// Recorder is the gorm plugin that installs the audit callbacks.
type Recorder struct{}

func (Recorder) Name() string {
	return "releasehub:audit"
}

func (Recorder) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("audit:create", recordFunc(models.ActivityActionCreate)); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("audit:update", recordFunc(models.ActivityActionUpdate)); err != nil {
		return err
	}
	return db.Callback().Delete().After("gorm:delete").Register("audit:delete", recordFunc(models.ActivityActionDelete))
}

func recordFunc(action string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Error != nil || db.Statement == nil || db.Statement.Schema == nil {
			return
		}
		if suppressed, ok := db.Get(string(suppressKey)); ok && suppressed == true {
			return
		}
		table := db.Statement.Table
		if skipTables[table] {
			return
		}
		if db.Statement.SkipHooks {
			return
		}

		actor := ""
		if v, ok := db.Get(string(actorKey)); ok {
			if s, ok := v.(string); ok {
				actor = s
			}
		}

		entry := models.ActivityLog{
			Actor:    actor,
			Action:   action,
			Entity:   table,
			EntityID: primaryKeyValue(db),
			Changes:  models.NewJSON(changedFields(db, action)),
		}

		// A fresh session keeps the audit insert out of the statement being
		// audited and out of this callback's own scope.
		session := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
		if err := session.Create(&entry).Error; err != nil {
			db.Logger.Error(db.Statement.Context, "audit: failed to record %s on %s: %v", action, table, err)
		}
	}
}

// primaryKeyValue extracts the row's primary key from the reflected value,
// falling back to empty for bulk statements with no model instance.
func primaryKeyValue(db *gorm.DB) string {
	stmt := db.Statement
	if len(stmt.Schema.PrimaryFields) == 0 || !stmt.ReflectValue.IsValid() {
		return ""
	}
	if stmt.ReflectValue.Kind() != reflect.Struct {
		return ""
	}
	field := stmt.Schema.PrimaryFields[0]
	value, zero := field.ValueOf(stmt.Context, stmt.ReflectValue)
	if zero {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

// changedFields builds the after-image for creates and updates, or the
// identifying clause for deletes.
func changedFields(db *gorm.DB, action string) map[string]interface{} {
	stmt := db.Statement
	out := make(map[string]interface{})

	if action == models.ActivityActionDelete {
		out["sql"] = stmt.SQL.String()
		return out
	}

	if dest, ok := stmt.Dest.(map[string]interface{}); ok {
		for k, v := range dest {
			out[k] = v
		}
		return out
	}

	if !stmt.ReflectValue.IsValid() || stmt.ReflectValue.Kind() != reflect.Struct {
		out["sql"] = stmt.SQL.String()
		return out
	}
	for _, field := range stmt.Schema.Fields {
		if field.PrimaryKey {
			continue
		}
		value, zero := field.ValueOf(stmt.Context, stmt.ReflectValue)
		if zero {
			continue
		}
		switch value.(type) {
		case string, bool, int, int64, uint, uint64, float64:
			out[field.DBName] = value
		}
	}
	return out
}
