// Package api wires the reporting HTTP API.
//
// @title Migration Pipeline API
// @version 1.0
// @description Reports on migrations and their id maps, and starts import and rollback runs.
// @BasePath /api/v1
package api

import (
	"context"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "go-migrate-pipeline/internal/api/docs"
	"go-migrate-pipeline/internal/api/handler"
	"go-migrate-pipeline/internal/pipeline"
	"go-migrate-pipeline/pkg/router"
)

// RegisterRoutes mounts the migration endpoints and the swagger UI on r.
// The returned handler owns runs started over HTTP.
func RegisterRoutes(ctx context.Context, r *router.Router, catalog *pipeline.Catalog, runs handler.RunLister, log *zap.SugaredLogger) *handler.MigrationHandler {
	h := handler.NewMigrationHandler(ctx, catalog, runs, log)

	r.GET("/api/v1/migrations", h.ListMigrations)
	// More specific routes first
	r.GET("/api/v1/migrations/*/source", h.GetSource)
	r.GET("/api/v1/migrations/*/process", h.GetProcess)
	r.GET("/api/v1/migrations/*/destination", h.GetDestination)
	r.GET("/api/v1/migrations/*/messages", h.GetMessages)
	r.GET("/api/v1/migrations/*/runs", h.GetRuns)
	r.GET("/api/v1/migrations/*/progress", h.GetProgress)
	r.POST("/api/v1/migrations/*/import", h.StartImport)
	r.POST("/api/v1/migrations/*/rollback", h.StartRollback)
	// Generic migration route last
	r.GET("/api/v1/migrations/*", h.GetMigration)

	r.GET("/api/v1/runs/*", h.GetRun)

	r.GET("/swagger/*", httpSwagger.WrapHandler.ServeHTTP)
	return h
}
