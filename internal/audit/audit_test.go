package audit

import (
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axisops/releasehub/internal/database"
	"github.com/axisops/releasehub/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := db.Use(Recorder{}); err != nil {
		t.Fatalf("failed to install recorder: %v", err)
	}
	return db
}

func logEntries(t *testing.T, db *gorm.DB, entity string) []models.ActivityLog {
	t.Helper()
	var entries []models.ActivityLog
	if err := db.Where("entity = ?", entity).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load activity log: %v", err)
	}
	return entries
}

func TestRecorderCreate(t *testing.T) {
	db := setupTestDB(t)

	session := WithActor(db, "admin@example.com")
	beneficiary := models.Beneficiary{PublicName: "Acme"}
	if err := session.Create(&beneficiary).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	entries := logEntries(t, db, "beneficiaries")
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Action != models.ActivityActionCreate {
		t.Errorf("expected create action, got %s", entry.Action)
	}
	if entry.Actor != "admin@example.com" {
		t.Errorf("expected actor attribution, got %q", entry.Actor)
	}
	if entry.EntityID == "" {
		t.Error("expected the new row's primary key recorded")
	}
	if !strings.Contains(entry.Changes.String(), "Acme") {
		t.Errorf("expected the after-image to carry the name, got %s", entry.Changes.String())
	}
}

func TestRecorderUpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)

	beneficiary := models.Beneficiary{PublicName: "Acme"}
	if err := db.Create(&beneficiary).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := db.Model(&beneficiary).Update("public_name", "Acme Corp").Error; err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := db.Delete(&beneficiary).Error; err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	entries := logEntries(t, db, "beneficiaries")
	actions := make(map[string]int)
	for _, entry := range entries {
		actions[entry.Action]++
	}
	if actions[models.ActivityActionCreate] != 1 ||
		actions[models.ActivityActionUpdate] != 1 ||
		actions[models.ActivityActionDelete] != 1 {
		t.Errorf("expected one entry per action, got %v", actions)
	}
}

func TestRecorderSuppress(t *testing.T) {
	db := setupTestDB(t)

	session := Suppress(db)
	if err := session.Create(&models.Beneficiary{PublicName: "Quiet"}).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if entries := logEntries(t, db, "beneficiaries"); len(entries) != 0 {
		t.Errorf("suppressed session must not be audited, got %d entries", len(entries))
	}
}

func TestRecorderSkipsLogTables(t *testing.T) {
	db := setupTestDB(t)

	entry := models.ActivityLog{Action: models.ActivityActionCreate, Entity: "manual"}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var count int64
	db.Model(&models.ActivityLog{}).Count(&count)
	if count != 1 {
		t.Errorf("writing the log itself must not recurse, got %d rows", count)
	}
}
