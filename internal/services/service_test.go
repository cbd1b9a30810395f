package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/axisops/releasehub/internal/catalog"
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
	// sqlite has no row locks; drop FOR UPDATE clauses instead of erroring.
	db.ClauseBuilders["FOR"] = func(c clause.Clause, builder clause.Builder) {}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// seedCatalog creates the core applications, a crm business application, and
// the model descriptors with their permissions.
func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, label := range catalog.CoreAppLabels {
		app := models.Application{AppLabel: label, Name: label, IsCore: true}
		if err := db.Create(&app).Error; err != nil {
			t.Fatalf("failed to seed core app %s: %v", label, err)
		}
	}
	crm := models.Application{AppLabel: "crm", Name: "CRM"}
	if err := db.Create(&crm).Error; err != nil {
		t.Fatalf("failed to seed crm app: %v", err)
	}
	if err := catalog.Seed(db); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
}

func createBeneficiary(t *testing.T, db *gorm.DB, name string) *models.Beneficiary {
	t.Helper()
	beneficiary := models.Beneficiary{PublicName: name, PrivateName: name + " (private)"}
	if err := db.Create(&beneficiary).Error; err != nil {
		t.Fatalf("failed to create beneficiary: %v", err)
	}
	return &beneficiary
}

func createPublishedRelease(t *testing.T, db *gorm.DB, name, version string) *models.Release {
	t.Helper()
	release, err := CreateRelease(db, CreateReleaseInput{Name: name, Version: version})
	if err != nil {
		t.Fatalf("failed to create release: %v", err)
	}
	release, err = ActivateRelease(db, release.ReleaseID)
	if err != nil {
		t.Fatalf("failed to activate release: %v", err)
	}
	return release
}

func assignActive(t *testing.T, db *gorm.DB, releaseID, beneficiaryID uint64) *models.ClientRelease {
	t.Helper()
	assignment, err := AssignToClient(db, releaseID, beneficiaryID, nil)
	if err != nil {
		t.Fatalf("failed to assign release %d to beneficiary %d: %v", releaseID, beneficiaryID, err)
	}
	return assignment
}

func createReadyUpdate(t *testing.T, db *gorm.DB, baseReleaseID uint64, version string) *models.Update {
	t.Helper()
	update, err := CreateUpdate(db, CreateUpdateInput{
		Name:          "update " + version,
		Version:       version,
		BaseReleaseID: baseReleaseID,
		CreatedBy:     "tester@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create update: %v", err)
	}
	if err := db.Model(update).Update("status", models.UpdateStatusReady).Error; err != nil {
		t.Fatalf("failed to mark update ready: %v", err)
	}
	update.Status = models.UpdateStatusReady
	return update
}

func applyToBeneficiary(t *testing.T, db *gorm.DB, updateID, beneficiaryID uint64) *models.ClientUpdate {
	t.Helper()
	created, err := ApplyUpdate(db, updateID, []uint64{beneficiaryID}, nil, "", "tester@example.com")
	if err != nil {
		t.Fatalf("failed to apply update: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 client update, got %d", len(created))
	}
	return &created[0]
}
