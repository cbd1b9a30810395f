package services

import (
	"strings"
	"testing"

	"github.com/axisops/releasehub/internal/catalog"
	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/types"
)

func TestCreateReleaseAttachesCoreApps(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{
		Name:         "Spring Release",
		Version:      "1.0.0",
		BusinessApps: []string{"crm"},
	})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}
	if release.Status != models.ReleaseStatusDraft {
		t.Errorf("expected draft status, got %s", release.Status)
	}

	var apps []models.ReleaseApp
	db.Where("release_id = ?", release.ReleaseID).Find(&apps)
	if len(apps) != len(catalog.CoreAppLabels)+1 {
		t.Fatalf("expected %d attached apps, got %d", len(catalog.CoreAppLabels)+1, len(apps))
	}
	for _, app := range apps {
		if app.AppLabel == "crm" && app.IsCore {
			t.Error("crm must be attached as a business app")
		}
		if app.AppLabel == "users" && !app.IsCore {
			t.Error("users must be attached as a core app")
		}
	}

	var userModels int64
	db.Model(&models.ReleaseModel{}).
		Where("release_id = ? AND app_label = ?", release.ReleaseID, "users").
		Count(&userModels)
	if userModels != int64(len(catalog.ModelsFor("users"))) {
		t.Errorf("expected %d capability rows for users, got %d", len(catalog.ModelsFor("users")), userModels)
	}
}

func TestCreateReleaseRequiresName(t *testing.T) {
	db := setupTestDB(t)

	_, err := CreateRelease(db, CreateReleaseInput{Name: "   "})
	if !types.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateReleaseIgnoresCoreInBusinessList(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{
		Name:         "Core Only",
		Version:      "1.0.0",
		BusinessApps: []string{"users"},
	})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}

	var apps []models.ReleaseApp
	db.Where("release_id = ? AND app_label = ?", release.ReleaseID, "users").Find(&apps)
	if len(apps) != 1 {
		t.Fatalf("expected one users attachment, got %d", len(apps))
	}
	if !apps[0].IsCore {
		t.Error("users must stay attached as core")
	}
}

func TestActivateReleasePublishes(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{Name: "R1", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}

	activated, err := ActivateRelease(db, release.ReleaseID)
	if err != nil {
		t.Fatalf("ActivateRelease failed: %v", err)
	}
	if activated.Status != models.ReleaseStatusPublished {
		t.Errorf("expected published status, got %s", activated.Status)
	}
}

func TestActivateReleaseMissingCore(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{Name: "R1", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}
	if err := db.Where("release_id = ? AND app_label = ?", release.ReleaseID, "users").
		Delete(&models.ReleaseApp{}).Error; err != nil {
		t.Fatalf("failed to detach users: %v", err)
	}

	_, err = ActivateRelease(db, release.ReleaseID)
	if !types.IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if !strings.Contains(err.Error(), "users") {
		t.Errorf("error must name the missing app, got %q", err.Error())
	}

	var reloaded models.Release
	db.First(&reloaded, release.ReleaseID)
	if reloaded.Status != models.ReleaseStatusDraft {
		t.Errorf("failed activation must leave the release draft, got %s", reloaded.Status)
	}
}

func TestActivateReleaseNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := ActivateRelease(db, 9999)
	if !types.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAssignToClientSwapsActive(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	first := createPublishedRelease(t, db, "R1", "1.0.0")
	second := createPublishedRelease(t, db, "R2", "2.0.0")
	beneficiary := createBeneficiary(t, db, "Acme")

	initial := assignActive(t, db, first.ReleaseID, beneficiary.BeneficiaryID)
	if !initial.IsActive {
		t.Fatal("first assignment must be active")
	}

	replacement := assignActive(t, db, second.ReleaseID, beneficiary.BeneficiaryID)
	if !replacement.IsActive {
		t.Fatal("second assignment must be active")
	}

	var active []models.ClientRelease
	db.Where("beneficiary_id = ? AND is_active = ?", beneficiary.BeneficiaryID, true).Find(&active)
	if len(active) != 1 {
		t.Fatalf("expected exactly one active assignment, got %d", len(active))
	}
	if active[0].ReleaseID != second.ReleaseID {
		t.Errorf("expected release %d active, got %d", second.ReleaseID, active[0].ReleaseID)
	}

	var prior models.ClientRelease
	db.First(&prior, initial.ClientReleaseID)
	if prior.IsActive {
		t.Error("prior assignment must be deactivated")
	}
	if prior.ActiveTo == nil {
		t.Error("prior assignment must carry an active_to stamp")
	}
}

func TestAssignDraftReleaseRejected(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release, err := CreateRelease(db, CreateReleaseInput{Name: "Draft", Version: "0.1.0"})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}
	beneficiary := createBeneficiary(t, db, "Acme")

	_, err = AssignToClient(db, release.ReleaseID, beneficiary.BeneficiaryID, nil)
	if !types.IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestAssignUnknownBeneficiary(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	release := createPublishedRelease(t, db, "R1", "1.0.0")

	_, err := AssignToClient(db, release.ReleaseID, 9999, nil)
	if !types.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
