package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/axisops/releasehub/internal/audit"
	"github.com/axisops/releasehub/internal/catalog"
	"github.com/axisops/releasehub/internal/config"
	"github.com/axisops/releasehub/internal/database"
	"github.com/axisops/releasehub/internal/handlers"
	"github.com/axisops/releasehub/internal/middleware"
	"github.com/axisops/releasehub/internal/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	_ "github.com/axisops/releasehub/docs/api" // Swagger docs
)

// @title ReleaseHub API
// @version 1.0.0
// @description Release composition, export, and incremental update service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/axisops/releasehub

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed the catalogue registry before audit callbacks are active;
	// bootstrap rows are not user actions.
	if err := catalog.Seed(audit.Suppress(db)); err != nil {
		log.Fatalf("Failed to seed catalogue: %v", err)
	}

	// Install the activity-log recorder
	if err := db.Use(audit.Recorder{}); err != nil {
		log.Fatalf("Failed to install audit recorder: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("releasehub")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	releaseHandler := &handlers.ReleaseHandler{DB: db, Cfg: cfg}
	updateHandler := &handlers.UpdateHandler{DB: db, Cfg: cfg}
	catalogHandler := &handlers.CatalogHandler{DB: db}

	// Catalogue routes (public GET, admin mutations)
	api.Get("/catalog/modules", catalogHandler.ListModules)
	api.Post("/catalog/apps/:label/parent", middleware.AuthAdmin(), catalogHandler.ReparentApplication)
	api.Post("/catalog/codings/:id/parent", middleware.AuthAdmin(), catalogHandler.ReparentCoding)
	api.Post("/catalog/coding-categories/:id/parent", middleware.AuthAdmin(), catalogHandler.ReparentCodingCategory)

	// Release composition, assignment, and export (admin only)
	api.Post("/releases", middleware.AuthAdmin(), releaseHandler.CreateRelease)
	api.Post("/releases/:id/activate", middleware.AuthAdmin(), releaseHandler.ActivateRelease)
	api.Post("/releases/:id/assign", middleware.AuthAdmin(), releaseHandler.AssignRelease)
	api.Post("/releases/:id/export/data", middleware.AuthAdmin(), releaseHandler.ExportReleaseData)
	api.Post("/releases/:id/export/source", middleware.AuthAdmin(), releaseHandler.ExportReleaseSource)

	// Incremental updates (admin mutations, user reads)
	api.Post("/updates", middleware.AuthAdmin(), updateHandler.CreateUpdate)
	api.Post("/updates/:id/items", middleware.AuthAdmin(), updateHandler.AddUpdateItem)
	api.Post("/updates/:id/package", middleware.AuthAdmin(), updateHandler.GenerateUpdatePackage)
	api.Get("/updates/:id/compatibility/:beneficiaryId", middleware.AuthUser(), updateHandler.ValidateCompatibility)
	api.Post("/updates/:id/apply", middleware.AuthAdmin(), updateHandler.ApplyUpdate)
	api.Get("/updates/:id/stats", middleware.AuthUser(), updateHandler.UpdateStats)
	api.Post("/client-updates/:id/complete", middleware.AuthAdmin(), updateHandler.CompleteClientUpdate)
	api.Post("/client-updates/:id/fail", middleware.AuthAdmin(), updateHandler.FailClientUpdate)
	api.Post("/client-updates/:id/rollback", middleware.AuthAdmin(), updateHandler.RollbackClientUpdate)
	api.Get("/beneficiaries/:id/pending-updates", middleware.AuthUser(), updateHandler.PendingUpdates)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer is initialized lazily from the first authenticated request.
	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
