package services

import (
	"sync"
	"testing"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axisops/releasehub/internal/database"
	"github.com/axisops/releasehub/internal/models"
	"github.com/axisops/releasehub/internal/testutil"
)

// TestAssignToClientConcurrentSwap races two assignments for the same
// beneficiary against a real MariaDB, where the row locks taken during the
// swap actually engage. The in-memory driver used by the unit tests has no
// row locking, so this path needs the container.
func TestAssignToClientConcurrentSwap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	containers, dsn := testutil.CreateDBTestContainer(t)
	defer containers.Terminate(t)

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	seedCatalog(t, db)
	first := createPublishedRelease(t, db, "R1", "1.0.0")
	second := createPublishedRelease(t, db, "R2", "1.1.0")
	beneficiary := createBeneficiary(t, db, "Acme")
	assignActive(t, db, first.ReleaseID, beneficiary.BeneficiaryID)

	targets := []uint64{first.ReleaseID, second.ReleaseID}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, releaseID := range targets {
		wg.Add(1)
		go func(i int, releaseID uint64) {
			defer wg.Done()
			_, errs[i] = AssignToClient(db, releaseID, beneficiary.BeneficiaryID, nil)
		}(i, releaseID)
	}
	wg.Wait()

	// A deadlock abort on one side is acceptable; silent double-activation
	// is not.
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded == 0 {
		t.Fatalf("both concurrent assignments failed: %v", errs)
	}

	var active int64
	err = db.Model(&models.ClientRelease{}).
		Where("beneficiary_id = ? AND is_active = ?", beneficiary.BeneficiaryID, true).
		Count(&active).Error
	if err != nil {
		t.Fatalf("failed to count active assignments: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected exactly one active assignment, got %d", active)
	}

	var unstamped int64
	err = db.Model(&models.ClientRelease{}).
		Where("beneficiary_id = ? AND is_active = ? AND active_to IS NULL", beneficiary.BeneficiaryID, false).
		Count(&unstamped).Error
	if err != nil {
		t.Fatalf("failed to count deactivated assignments: %v", err)
	}
	if unstamped != 0 {
		t.Errorf("every deactivated assignment must carry active_to, %d missing it", unstamped)
	}
}
