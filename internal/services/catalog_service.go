package services

import (
	"errors"
	"fmt"

	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/types"
	"gorm.io/gorm"
)

// Self-referential rows (application parents, coding trees) are re-parented
// through these helpers so a cycle can never be persisted: before the write,
// the new parent's ancestor chain is walked and rejected if it already
// contains the row being moved.

// ReparentApplication sets app's parent, rejecting cycles.
func ReparentApplication(db *gorm.DB, appLabel string, newParentLabel *string) error {
	var app models.Application
	if err := db.First(&app, "app_label = ?", appLabel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.NotFoundError{Entity: "application", ID: appLabel}
		}
		return err
	}

	if newParentLabel != nil {
		current := *newParentLabel
		for current != "" {
			if current == appLabel {
				return &types.ValidationError{
					Message: fmt.Sprintf("cannot set parent of %s to %s: would create a cycle", appLabel, *newParentLabel),
				}
			}
			var parent models.Application
			if err := db.First(&parent, "app_label = ?", current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &types.NotFoundError{Entity: "application", ID: current}
				}
				return err
			}
			if parent.ParentLabel == nil {
				break
			}
			current = *parent.ParentLabel
		}
	}

	return db.Model(&app).Update("parent_label", newParentLabel).Error
}

// ReparentCoding sets a coding's parent, rejecting cycles.
func ReparentCoding(db *gorm.DB, codingID uint64, newParentID *uint64) error {
	var coding models.Coding
	if err := db.First(&coding, codingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.NotFoundError{Entity: "coding", ID: codingID}
		}
		return err
	}

	if newParentID != nil {
		current := *newParentID
		for {
			if current == codingID {
				return &types.ValidationError{
					Message: fmt.Sprintf("cannot set parent of coding %d to %d: would create a cycle", codingID, *newParentID),
				}
			}
			var parent models.Coding
			if err := db.First(&parent, current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &types.NotFoundError{Entity: "coding", ID: current}
				}
				return err
			}
			if parent.ParentID == nil {
				break
			}
			current = *parent.ParentID
		}
	}

	return db.Model(&coding).Update("parent_id", newParentID).Error
}

// ReparentCodingCategory sets a category's parent, rejecting cycles.
func ReparentCodingCategory(db *gorm.DB, categoryID uint64, newParentID *uint64) error {
	var category models.CodingCategory
	if err := db.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.NotFoundError{Entity: "coding category", ID: categoryID}
		}
		return err
	}

	if newParentID != nil {
		current := *newParentID
		for {
			if current == categoryID {
				return &types.ValidationError{
					Message: fmt.Sprintf("cannot set parent of category %d to %d: would create a cycle", categoryID, *newParentID),
				}
			}
			var parent models.CodingCategory
			if err := db.First(&parent, current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &types.NotFoundError{Entity: "coding category", ID: current}
				}
				return err
			}
			if parent.ParentID == nil {
				break
			}
			current = *parent.ParentID
		}
	}

	return db.Model(&category).Update("parent_id", newParentID).Error
}
