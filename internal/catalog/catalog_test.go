package catalog

import (
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
	return db
}

func TestKnownLabels(t *testing.T) {
	labels := KnownLabels()
	if len(labels) == 0 {
		t.Fatal("expected registered labels")
	}
	for _, want := range []string{"users", "clients", "apps", "releases"} {
		if !IsKnownLabel(want) {
			t.Errorf("expected %q to be a known label", want)
		}
	}
	if IsKnownLabel("payroll") {
		t.Error("unregistered label must not be known")
	}
}

func TestModelsFor(t *testing.T) {
	apps := ModelsFor("apps")
	if len(apps) != 3 {
		t.Fatalf("expected 3 models for apps, got %d", len(apps))
	}
	if ModelsFor("payroll") != nil {
		t.Error("unregistered label must return nil")
	}
}

func TestSeedIdempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := Seed(db); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}

	var descriptors, permissions int64
	db.Model(&models.ModelDescriptor{}).Count(&descriptors)
	db.Model(&models.Permission{}).Count(&permissions)

	wantDescriptors := int64(0)
	for _, label := range KnownLabels() {
		wantDescriptors += int64(len(ModelsFor(label)))
	}
	if descriptors != wantDescriptors {
		t.Errorf("expected %d descriptors, got %d", wantDescriptors, descriptors)
	}
	if permissions != wantDescriptors*4 {
		t.Errorf("expected %d permissions, got %d", wantDescriptors*4, permissions)
	}

	if err := Seed(db); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	var after int64
	db.Model(&models.ModelDescriptor{}).Count(&after)
	if after != descriptors {
		t.Errorf("reseeding changed descriptor count from %d to %d", descriptors, after)
	}
}
