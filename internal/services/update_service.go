package services

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Update log actions.
const (
	UpdateActionCreated    = "created"
	UpdateActionExported   = "exported"
	UpdateActionApplied    = "applied"
	UpdateActionCompleted  = "completed"
	UpdateActionFailed     = "failed"
	UpdateActionRolledBack = "rolled_back"
)

// CreateUpdateInput carries the fields for a new update package.
type CreateUpdateInput struct {
	Name                 string
	Version              string
	BaseReleaseID        uint64
	UpdateType           string
	Description          string
	Changelog            string
	RequiresMigration    bool
	IsMandatory          bool
	MinCompatibleVersion string
	CreatedBy            string
	Items                []UpdateItemInput
}

// UpdateItemInput describes one change entry at creation time.
type UpdateItemInput struct {
	ItemType     string
	ChangeType   string
	AppLabel     *string
	DescriptorID *uint64
	FilePath     string
	Description  string
	Order        int
}

// CreateUpdate creates an update with its initial items and a `created` log
// entry in one transaction.
func CreateUpdate(db *gorm.DB, input CreateUpdateInput) (*models.Update, error) {
	if input.Name == "" {
		return nil, &types.ValidationError{Message: "update name is required"}
	}
	if input.Version == "" {
		return nil, &types.ValidationError{Message: "update version is required"}
	}

	var base models.Release
	if err := db.First(&base, "release_id = ?", input.BaseReleaseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &types.NotFoundError{Entity: "release", ID: input.BaseReleaseID}
		}
		return nil, err
	}

	updateType := input.UpdateType
	if updateType == "" {
		updateType = models.UpdateTypeImprovement
	}

	update := models.Update{
		Name:                 input.Name,
		Version:              input.Version,
		BaseReleaseID:        base.ReleaseID,
		UpdateType:           updateType,
		Status:               models.UpdateStatusDraft,
		Description:          input.Description,
		Changelog:            input.Changelog,
		RequiresMigration:    input.RequiresMigration,
		IsMandatory:          input.IsMandatory,
		MinCompatibleVersion: input.MinCompatibleVersion,
		CreatedBy:            input.CreatedBy,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&update).Error; err != nil {
			return err
		}
		for _, item := range input.Items {
			row := models.UpdateItem{
				UpdateID:     update.UpdateID,
				ItemType:     item.ItemType,
				ChangeType:   item.ChangeType,
				AppLabel:     item.AppLabel,
				DescriptorID: item.DescriptorID,
				FilePath:     item.FilePath,
				Description:  item.Description,
				Order:        item.Order,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			update.Items = append(update.Items, row)
		}
		return appendUpdateLog(tx, update.UpdateID, nil, UpdateActionCreated, input.CreatedBy, map[string]interface{}{
			"version":    update.Version,
			"item_count": len(input.Items),
		})
	})
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// AddUpdateItem appends a change entry to an update. Items are only mutable
// while the update is in draft or testing.
func AddUpdateItem(db *gorm.DB, updateID uint64, input UpdateItemInput) (*models.UpdateItem, error) {
	update, err := getUpdate(db, updateID)
	if err != nil {
		return nil, err
	}
	if update.Status != models.UpdateStatusDraft && update.Status != models.UpdateStatusTesting {
		return nil, &types.PreconditionError{
			Message: fmt.Sprintf("update %d is %s; items can only be modified in draft or testing", updateID, update.Status),
		}
	}

	item := models.UpdateItem{
		UpdateID:     update.UpdateID,
		ItemType:     input.ItemType,
		ChangeType:   input.ChangeType,
		AppLabel:     input.AppLabel,
		DescriptorID: input.DescriptorID,
		FilePath:     input.FilePath,
		Description:  input.Description,
		Order:        input.Order,
	}
	if err := db.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// updateManifest is the metadata document packaged inside an update archive.
type updateManifest struct {
	Name                 string               `json:"name"`
	Version              string               `json:"version"`
	BaseRelease          uint64               `json:"base_release"`
	UpdateType           string               `json:"update_type"`
	Description          string               `json:"description"`
	Changelog            string               `json:"changelog"`
	RequiresMigration    bool                 `json:"requires_migration"`
	IsMandatory          bool                 `json:"is_mandatory"`
	MinCompatibleVersion string               `json:"min_compatible_version"`
	GeneratedAt          string               `json:"generated_at"`
	Items                []updateManifestItem `json:"items"`
}

type updateManifestItem struct {
	ItemType    string  `json:"item_type"`
	ChangeType  string  `json:"change_type"`
	AppLabel    *string `json:"app_label"`
	FilePath    string  `json:"file_path"`
	Description string  `json:"description"`
	Order       int     `json:"order"`
}

// GenerateUpdatePackage builds the update archive (manifest plus a changes
// placeholder directory), stores it under exportDir, flips the update to
// ready, and logs `exported`. The artifact reference is persisted only after
// the archive is fully written, outside any long transaction.
//
// The changes directory is a structural placeholder: item rows are
// descriptive and no real file diffs are staged yet.
func GenerateUpdatePackage(db *gorm.DB, exportDir string, updateID uint64, performedBy string) (string, error) {
	update, err := getUpdate(db, updateID)
	if err != nil {
		return "", err
	}

	var items []models.UpdateItem
	orderCol := clause.OrderByColumn{Column: clause.Column{Name: "order"}}
	if err := db.Where("update_id = ?", updateID).Order(orderCol).Find(&items).Error; err != nil {
		return "", err
	}

	manifest := updateManifest{
		Name:                 update.Name,
		Version:              update.Version,
		BaseRelease:          update.BaseReleaseID,
		UpdateType:           update.UpdateType,
		Description:          update.Description,
		Changelog:            update.Changelog,
		RequiresMigration:    update.RequiresMigration,
		IsMandatory:          update.IsMandatory,
		MinCompatibleVersion: update.MinCompatibleVersion,
		GeneratedAt:          time.Now().UTC().Format(time.RFC3339),
	}
	for _, item := range items {
		manifest.Items = append(manifest.Items, updateManifestItem{
			ItemType:    item.ItemType,
			ChangeType:  item.ChangeType,
			AppLabel:    item.AppLabel,
			FilePath:    item.FilePath,
			Description: item.Description,
			Order:       item.Order,
		})
	}
	payload, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", err
	}
	zipName := fmt.Sprintf("update_%s_%s.zip", update.Version, time.Now().UTC().Format("20060102150405"))
	archivePath := filepath.Join(exportDir, zipName)
	if err := writeUpdateArchive(archivePath, payload); err != nil {
		os.Remove(archivePath)
		return "", err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(update).Updates(map[string]interface{}{
			"exported_file": archivePath,
			"status":        models.UpdateStatusReady,
		}).Error; err != nil {
			return err
		}
		return appendUpdateLog(tx, update.UpdateID, nil, UpdateActionExported, performedBy, map[string]interface{}{
			"file": archivePath,
		})
	})
	if err != nil {
		return "", err
	}
	return archivePath, nil
}

func writeUpdateArchive(archivePath string, manifest []byte) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	defer writer.Close()

	entry, err := writer.Create("manifest.json")
	if err != nil {
		return err
	}
	if _, err := entry.Write(manifest); err != nil {
		return err
	}
	// Placeholder for staged file diffs.
	if _, err := writer.Create("changes/"); err != nil {
		return err
	}
	return writer.Close()
}

// CompatibilityResult is the outcome of checking an update against a
// beneficiary's active release.
type CompatibilityResult struct {
	Compatible    bool
	Message       string
	ClientRelease *models.ClientRelease
}

// ValidateCompatibility checks whether an update can be applied to a
// beneficiary. It fails closed: no active release means incompatible.
func ValidateCompatibility(db *gorm.DB, updateID, beneficiaryID uint64) (*CompatibilityResult, error) {
	update, err := getUpdate(db, updateID)
	if err != nil {
		return nil, err
	}

	var active models.ClientRelease
	err = db.Preload("Release").
		Where("beneficiary_id = ? AND is_active = ?", beneficiaryID, true).
		First(&active).Error
	if err == gorm.ErrRecordNotFound {
		return &CompatibilityResult{Compatible: false, Message: "No active release for this client"}, nil
	}
	if err != nil {
		return nil, err
	}

	// A foreign base release is only a problem when the update declares a
	// version floor; without one there is nothing to check against.
	if active.ReleaseID != update.BaseReleaseID && update.MinCompatibleVersion != "" {
		clientVersion := ""
		if active.Release != nil {
			clientVersion = active.Release.Version
		}
		if CompareVersions(clientVersion, update.MinCompatibleVersion) < 0 {
			return &CompatibilityResult{
				Compatible: false,
				Message: fmt.Sprintf("Client release version %s is below the minimum compatible version %s",
					clientVersion, update.MinCompatibleVersion),
				ClientRelease: &active,
			}, nil
		}
	}

	var completed int64
	err = db.Model(&models.ClientUpdate{}).
		Where("update_id = ? AND client_release_id = ? AND status = ?",
			update.UpdateID, active.ClientReleaseID, models.ClientUpdateStatusCompleted).
		Count(&completed).Error
	if err != nil {
		return nil, err
	}
	if completed > 0 {
		return &CompatibilityResult{
			Compatible:    false,
			Message:       "Update already completed for this client",
			ClientRelease: &active,
		}, nil
	}

	return &CompatibilityResult{Compatible: true, Message: "Compatible", ClientRelease: &active}, nil
}

// ApplyUpdate attaches an update to each beneficiary's active release and
// returns only the newly created ClientUpdate rows. Beneficiaries without an
// active release or failing the compatibility check are skipped, not errors.
// Re-applying is idempotent: existing rows are left untouched.
func ApplyUpdate(db *gorm.DB, updateID uint64, beneficiaryIDs []uint64, scheduledAt *time.Time, notes, appliedBy string) ([]models.ClientUpdate, error) {
	update, err := getUpdate(db, updateID)
	if err != nil {
		return nil, err
	}
	if update.Status != models.UpdateStatusReady && update.Status != models.UpdateStatusDeployed {
		return nil, &types.PreconditionError{
			Message: fmt.Sprintf("update %d is %s; only ready or deployed updates can be applied", updateID, update.Status),
		}
	}

	status := models.ClientUpdateStatusInProgress
	if scheduledAt != nil {
		status = models.ClientUpdateStatusPending
	}

	var created []models.ClientUpdate
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, beneficiaryID := range beneficiaryIDs {
			result, err := ValidateCompatibility(tx, updateID, beneficiaryID)
			if err != nil {
				if types.IsNotFound(err) {
					continue
				}
				return err
			}
			if !result.Compatible {
				continue
			}

			// Race-safe attach: the unique (update, client_release) index
			// turns a concurrent duplicate insert into a no-op.
			row := models.ClientUpdate{
				UpdateID:          update.UpdateID,
				ClientReleaseID:   result.ClientRelease.ClientReleaseID,
				BeneficiaryID:     beneficiaryID,
				Status:            status,
				ScheduledAt:       scheduledAt,
				AppliedBy:         appliedBy,
				RollbackAvailable: true,
				Notes:             notes,
			}
			if scheduledAt == nil {
				now := time.Now().UTC()
				row.StartedAt = &now
			}
			insert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "update_id"}, {Name: "client_release_id"}},
				DoNothing: true,
			}).Create(&row)
			if insert.Error != nil {
				return insert.Error
			}
			if insert.RowsAffected == 0 {
				continue
			}

			created = append(created, row)
			err = appendUpdateLog(tx, update.UpdateID, &row.ClientUpdateID, UpdateActionApplied, appliedBy, map[string]interface{}{
				"beneficiary_id": beneficiaryID,
				"status":         status,
			})
			if err != nil {
				return err
			}
		}

		if len(created) > 0 && update.Status == models.UpdateStatusReady {
			return tx.Model(update).Update("status", models.UpdateStatusDeployed).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MarkUpdateCompleted transitions a client update to completed.
func MarkUpdateCompleted(db *gorm.DB, clientUpdateID uint64, performedBy string) (*models.ClientUpdate, error) {
	return transitionClientUpdate(db, clientUpdateID, performedBy, UpdateActionCompleted,
		[]string{models.ClientUpdateStatusPending, models.ClientUpdateStatusDownloading, models.ClientUpdateStatusInProgress},
		func(row *models.ClientUpdate) map[string]interface{} {
			now := time.Now().UTC()
			return map[string]interface{}{
				"status":       models.ClientUpdateStatusCompleted,
				"completed_at": &now,
			}
		})
}

// MarkUpdateFailed transitions a client update to failed, recording the error.
func MarkUpdateFailed(db *gorm.DB, clientUpdateID uint64, errorMessage, performedBy string) (*models.ClientUpdate, error) {
	return transitionClientUpdate(db, clientUpdateID, performedBy, UpdateActionFailed,
		[]string{models.ClientUpdateStatusPending, models.ClientUpdateStatusDownloading, models.ClientUpdateStatusInProgress},
		func(row *models.ClientUpdate) map[string]interface{} {
			now := time.Now().UTC()
			return map[string]interface{}{
				"status":        models.ClientUpdateStatusFailed,
				"completed_at":  &now,
				"error_message": errorMessage,
			}
		})
}

// RollbackUpdate reverts a client update. Rollback is single use: it requires
// rollback_available and a prior completed, failed, or in_progress status,
// and clears the flag afterward.
func RollbackUpdate(db *gorm.DB, clientUpdateID uint64, performedBy string) (*models.ClientUpdate, error) {
	var row models.ClientUpdate
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "client_update_id = ?", clientUpdateID).Error
		if err == gorm.ErrRecordNotFound {
			return &types.NotFoundError{Entity: "client update", ID: clientUpdateID}
		}
		if err != nil {
			return err
		}
		if !row.RollbackAvailable {
			return &types.PreconditionError{
				Message: fmt.Sprintf("client update %d has no rollback available", clientUpdateID),
			}
		}
		if !statusIn(row.Status, models.ClientUpdateStatusCompleted, models.ClientUpdateStatusFailed, models.ClientUpdateStatusInProgress) {
			return &types.PreconditionError{
				Message: fmt.Sprintf("client update %d is %s; only completed, failed, or in-progress updates can be rolled back", clientUpdateID, row.Status),
			}
		}

		err = tx.Model(&row).Updates(map[string]interface{}{
			"status":             models.ClientUpdateStatusRolledBack,
			"rollback_available": false,
		}).Error
		if err != nil {
			return err
		}
		row.Status = models.ClientUpdateStatusRolledBack
		row.RollbackAvailable = false
		return appendUpdateLog(tx, row.UpdateID, &row.ClientUpdateID, UpdateActionRolledBack, performedBy, nil)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetPendingUpdatesForBeneficiary lists ready or deployed updates anchored to
// the beneficiary's active release that are not already pending, running, or
// completed for that client.
func GetPendingUpdatesForBeneficiary(db *gorm.DB, beneficiaryID uint64) ([]models.Update, error) {
	var active models.ClientRelease
	err := db.Where("beneficiary_id = ? AND is_active = ?", beneficiaryID, true).
		First(&active).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Tracked per beneficiary, not per assignment row: re-assigning the same
	// release must not resurface updates the client already ran.
	tracked := db.Model(&models.ClientUpdate{}).
		Select("update_id").
		Where("beneficiary_id = ? AND status IN ?", beneficiaryID, []string{
			models.ClientUpdateStatusPending,
			models.ClientUpdateStatusInProgress,
			models.ClientUpdateStatusCompleted,
		})

	var updates []models.Update
	err = db.Where("base_release_id = ? AND status IN ?", active.ReleaseID,
		[]string{models.UpdateStatusReady, models.UpdateStatusDeployed}).
		Where("update_id NOT IN (?)", tracked).
		Order("created_at desc").
		Find(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// UpdateStats aggregates deployment progress for one update.
type UpdateStats struct {
	UpdateID     uint64           `json:"update_id"`
	Status       string           `json:"status"`
	TotalClients int64            `json:"total_clients"`
	ByStatus     map[string]int64 `json:"by_status"`
}

// GetUpdateStats returns per-status deployment counts for an update.
func GetUpdateStats(db *gorm.DB, updateID uint64) (*UpdateStats, error) {
	update, err := getUpdate(db, updateID)
	if err != nil {
		return nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	err = db.Model(&models.ClientUpdate{}).
		Select("status, count(*) as count").
		Where("update_id = ?", updateID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	stats := &UpdateStats{
		UpdateID: update.UpdateID,
		Status:   update.Status,
		ByStatus: make(map[string]int64, len(counts)),
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.TotalClients += c.Count
	}
	return stats, nil
}

func getUpdate(db *gorm.DB, updateID uint64) (*models.Update, error) {
	var update models.Update
	err := db.First(&update, "update_id = ?", updateID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, &types.NotFoundError{Entity: "update", ID: updateID}
	}
	if err != nil {
		return nil, err
	}
	return &update, nil
}

func transitionClientUpdate(db *gorm.DB, clientUpdateID uint64, performedBy, action string, from []string, change func(*models.ClientUpdate) map[string]interface{}) (*models.ClientUpdate, error) {
	var row models.ClientUpdate
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "client_update_id = ?", clientUpdateID).Error
		if err == gorm.ErrRecordNotFound {
			return &types.NotFoundError{Entity: "client update", ID: clientUpdateID}
		}
		if err != nil {
			return err
		}
		if !statusIn(row.Status, from...) {
			return &types.PreconditionError{
				Message: fmt.Sprintf("client update %d is %s; expected one of %s",
					clientUpdateID, row.Status, strings.Join(from, ", ")),
			}
		}

		updates := change(&row)
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return err
		}
		if status, ok := updates["status"].(string); ok {
			row.Status = status
		}
		return appendUpdateLog(tx, row.UpdateID, &row.ClientUpdateID, action, performedBy, nil)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func appendUpdateLog(tx *gorm.DB, updateID uint64, clientUpdateID *uint64, action, performedBy string, details map[string]interface{}) error {
	entry := models.UpdateLog{
		UpdateID:       updateID,
		ClientUpdateID: clientUpdateID,
		Action:         action,
		PerformedBy:    performedBy,
		PerformedAt:    time.Now().UTC(),
	}
	if details != nil {
		entry.Details = models.NewJSON(details)
	}
	return tx.Create(&entry).Error
}

func statusIn(status string, candidates ...string) bool {
	for _, candidate := range candidates {
		if status == candidate {
			return true
		}
	}
	return false
}
