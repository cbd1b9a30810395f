package services

import (
	"fmt"
	"log"
	"os"

	"github.com/axisops/releasehub/internal/config"
	"github.com/axisops/releasehub/internal/utils"
	"gorm.io/gorm"
)

type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	ExportDir    string            `json:"exportDir"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck probes the database, the Authorizer service, and the export
// directory that release and update artifacts are written to.
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
	} else {
		if err := sqlDB.Ping(); err != nil {
			result.Status = "unhealthy"
			result.Database = "unreachable"
			result.Details["database_ping_error"] = err.Error()
			result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
			log.Printf("Health check failed - database ping: %v", err)
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
		result.Status = "unhealthy"
		result.Authorizer = "unreachable"
		result.Details["authorizer_error"] = err.Error()
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("Authorizer ping failed: %v", err)
		} else {
			result.ErrorMessage += fmt.Sprintf("; Authorizer ping failed: %v", err)
		}
		log.Printf("Health check failed - authorizer ping: %v", err)
	} else {
		result.Authorizer = "ok"
		result.Details["authorizer_url"] = cfg.AuthzURL
	}

	if info, err := os.Stat(cfg.ExportDir); err != nil || !info.IsDir() {
		// Created lazily on first export; absence is not a failure.
		result.ExportDir = "absent"
	} else {
		result.ExportDir = "ok"
	}

	if result.Status == "healthy" {
		log.Println("Health check passed - all systems operational")
	}

	return result
}
