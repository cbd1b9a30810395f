package services

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/types"
)

func TestNewExportServiceNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewExportService(db, t.TempDir(), 9999)
	if !types.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGenerateExportWritesManifest(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{
		Name:        "Spring Release",
		Description: "First rollout",
		Version:     "1.0.0",
	})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}

	beneficiary := createBeneficiary(t, db, "Acme")
	level := models.Level{Name: "Region", Count: 2}
	if err := db.Create(&level).Error; err != nil {
		t.Fatalf("failed to create level: %v", err)
	}
	structure := models.Structure{
		Name:          "North",
		IsBranch:      true,
		LevelID:       &level.LevelID,
		BeneficiaryID: beneficiary.BeneficiaryID,
	}
	if err := db.Create(&structure).Error; err != nil {
		t.Fatalf("failed to create structure: %v", err)
	}
	if err := db.Create(&models.ReleaseBeneficiary{
		ReleaseID:     release.ReleaseID,
		BeneficiaryID: beneficiary.BeneficiaryID,
	}).Error; err != nil {
		t.Fatalf("failed to attach beneficiary: %v", err)
	}

	var perm models.Permission
	if err := db.First(&perm).Error; err != nil {
		t.Fatalf("failed to load a seeded permission: %v", err)
	}
	group := models.Group{Name: "Admins", IsRole: true, Permissions: []models.Permission{perm}}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	if err := db.Create(&models.ReleaseGroup{ReleaseID: release.ReleaseID, GroupID: group.GroupID}).Error; err != nil {
		t.Fatalf("failed to attach group: %v", err)
	}

	user := models.User{
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		FirstName: "Jamie",
		LastName:  "Doe",
		Groups:    []models.Group{group},
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := db.Create(&models.ReleaseUser{ReleaseID: release.ReleaseID, UserID: user.UserID}).Error; err != nil {
		t.Fatalf("failed to attach user: %v", err)
	}

	exporter, err := NewExportService(db, t.TempDir(), release.ReleaseID)
	if err != nil {
		t.Fatalf("NewExportService failed: %v", err)
	}
	path, err := exporter.GenerateExport()
	if err != nil {
		t.Fatalf("GenerateExport failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var manifest ReleaseManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}

	if manifest.Release.Name != "Spring Release" || manifest.Release.Version != "1.0.0" {
		t.Errorf("unexpected release section %+v", manifest.Release)
	}
	if len(manifest.Apps) == 0 {
		t.Error("manifest must list attached apps")
	}
	if len(manifest.Beneficiaries) != 1 {
		t.Fatalf("expected 1 beneficiary, got %d", len(manifest.Beneficiaries))
	}
	entry := manifest.Beneficiaries[0]
	if entry.PublicName != "Acme" {
		t.Errorf("unexpected beneficiary %+v", entry)
	}
	if len(entry.Structures) != 1 || entry.Structures[0].LevelName != "Region" {
		t.Errorf("unexpected structures %+v", entry.Structures)
	}
	if len(entry.Levels) != 1 || entry.Levels[0].Count != 2 {
		t.Errorf("unexpected levels %+v", entry.Levels)
	}
	if len(manifest.Groups) != 1 || len(manifest.Groups[0].Permissions) != 1 {
		t.Errorf("unexpected groups %+v", manifest.Groups)
	}
	if len(manifest.Users) != 1 || len(manifest.Users[0].Roles) != 1 {
		t.Errorf("unexpected users %+v", manifest.Users)
	}

	var reloaded models.Release
	db.First(&reloaded, release.ReleaseID)
	if reloaded.Status != models.ReleaseStatusPublished {
		t.Errorf("export must publish the release, got %s", reloaded.Status)
	}
	if reloaded.ExportedFile != path {
		t.Errorf("expected exported file %s, got %s", path, reloaded.ExportedFile)
	}
}
