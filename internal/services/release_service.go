package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/axisops/releasehub/internal/catalog"
	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateReleaseInput carries the composer parameters.
type CreateReleaseInput struct {
	Name          string
	Description   string
	Version       string
	BaseReleaseID *uint64
	BusinessApps  []string
}

// CreateRelease creates a draft release, auto-attaching every core application
// and the requested business applications, and seeding a capability row per
// model descriptor of each attached app. The whole composition is atomic.
func CreateRelease(db *gorm.DB, input CreateReleaseInput) (*models.Release, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, &types.ValidationError{Message: "release name is required"}
	}

	var release models.Release

	err := db.Transaction(func(tx *gorm.DB) error {
		release = models.Release{
			Name:          input.Name,
			Description:   input.Description,
			Version:       input.Version,
			BaseReleaseID: input.BaseReleaseID,
			Status:        models.ReleaseStatusDraft,
			ReleaseDate:   time.Now().UTC(),
		}
		if err := tx.Create(&release).Error; err != nil {
			return err
		}

		// The IsCore flag is authoritative; the label allowlist backfills
		// catalogues seeded before the flag existed.
		var coreApps []models.Application
		if err := tx.Where("is_core = ?", true).
			Or("app_label IN ?", catalog.CoreAppLabels).
			Find(&coreApps).Error; err != nil {
			return err
		}

		coreLabels := make(map[string]struct{}, len(coreApps))
		for _, app := range coreApps {
			coreLabels[app.AppLabel] = struct{}{}
			if err := addAppToRelease(tx, &release, &app, true); err != nil {
				return err
			}
		}

		if len(input.BusinessApps) > 0 {
			var bizApps []models.Application
			if err := tx.Where("app_label IN ?", input.BusinessApps).Find(&bizApps).Error; err != nil {
				return err
			}
			for _, app := range bizApps {
				// A core app must never be re-attached as business.
				if _, isCore := coreLabels[app.AppLabel]; isCore {
					continue
				}
				if err := addAppToRelease(tx, &release, &app, false); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &release, nil
}

// addAppToRelease idempotently attaches an application and seeds one
// capability row per model descriptor registered under its label.
func addAppToRelease(tx *gorm.DB, release *models.Release, app *models.Application, isCore bool) error {
	releaseApp := models.ReleaseApp{
		ReleaseID: release.ReleaseID,
		AppLabel:  app.AppLabel,
		IsCore:    isCore,
	}
	if err := tx.Where("release_id = ? AND app_label = ?", release.ReleaseID, app.AppLabel).
		FirstOrCreate(&releaseApp).Error; err != nil {
		return err
	}

	var descriptors []models.ModelDescriptor
	if err := tx.Where("app_label = ?", app.AppLabel).Find(&descriptors).Error; err != nil {
		return err
	}
	for _, descriptor := range descriptors {
		releaseModel := models.ReleaseModel{
			ReleaseID:    release.ReleaseID,
			AppLabel:     app.AppLabel,
			DescriptorID: descriptor.DescriptorID,
		}
		if err := tx.Where("release_id = ? AND descriptor_id = ?", release.ReleaseID, descriptor.DescriptorID).
			FirstOrCreate(&releaseModel).Error; err != nil {
			return err
		}
	}

	return nil
}

// ActivateRelease publishes a draft release. It fails, leaving the release
// untouched, if any core application is missing from the attached-app set;
// the error names every missing application in one pass.
func ActivateRelease(db *gorm.DB, releaseID uint64) (*models.Release, error) {
	var release models.Release
	if err := db.First(&release, releaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.NotFoundError{Entity: "release", ID: releaseID}
		}
		return nil, err
	}

	var missing []models.Application
	if err := db.Where("is_core = ?", true).
		Where("app_label NOT IN (?)",
			db.Model(&models.ReleaseApp{}).Select("app_label").Where("release_id = ?", releaseID)).
		Find(&missing).Error; err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, app := range missing {
			names[i] = app.Name
		}
		return nil, &types.PreconditionError{
			Message: fmt.Sprintf("missing core apps: %s", strings.Join(names, ", ")),
		}
	}

	release.Status = models.ReleaseStatusPublished
	if err := db.Save(&release).Error; err != nil {
		return nil, err
	}

	return &release, nil
}

// AssignToClient activates a published release for a beneficiary. Any prior
// active assignment is closed out with an active_to stamp inside the same
// transaction; active rows are locked first so two concurrent assignments
// cannot both observe zero active rows.
func AssignToClient(db *gorm.DB, releaseID, beneficiaryID uint64, activeFrom *time.Time) (*models.ClientRelease, error) {
	var release models.Release
	if err := db.First(&release, releaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.NotFoundError{Entity: "release", ID: releaseID}
		}
		return nil, err
	}
	if release.Status != models.ReleaseStatusPublished {
		return nil, &types.PreconditionError{Message: "cannot assign a draft/archived release"}
	}

	var beneficiary models.Beneficiary
	if err := db.First(&beneficiary, beneficiaryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &types.NotFoundError{Entity: "beneficiary", ID: beneficiaryID}
		}
		return nil, err
	}

	now := time.Now().UTC()
	from := now
	if activeFrom != nil {
		from = *activeFrom
	}

	var assignment models.ClientRelease

	err := db.Transaction(func(tx *gorm.DB) error {
		// Lock the beneficiary's active rows for the duration of the swap.
		var active []models.ClientRelease
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("beneficiary_id = ? AND is_active = ?", beneficiaryID, true).
			Find(&active).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ClientRelease{}).
			Where("beneficiary_id = ? AND is_active = ?", beneficiaryID, true).
			Updates(map[string]interface{}{"is_active": false, "active_to": now}).Error; err != nil {
			return err
		}

		assignment = models.ClientRelease{
			ReleaseID:     releaseID,
			BeneficiaryID: beneficiaryID,
			IsActive:      true,
			ActiveFrom:    from,
		}
		return tx.Create(&assignment).Error
	})
	if err != nil {
		return nil, err
	}

	// Auto-provisioning of roles/permissions for the new assignment is a
	// documented extension point; nothing fires here yet.

	return &assignment, nil
}
