package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/pipeline"
	"go-migrate-pipeline/pkg/router"
	"go-migrate-pipeline/pkg/utils"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errBadRequest)
}

// RunLister reads the run history.
type RunLister interface {
	List(ctx context.Context, migrationID string, limit int) ([]model.RunSummary, error)
	Get(ctx context.Context, runID string) (model.RunSummary, error)
}

// MigrationHandler serves the migration reports and starts runs.
type MigrationHandler struct {
	catalog *pipeline.Catalog
	runs    RunLister
	log     *zap.SugaredLogger

	// runs started over HTTP outlive the request; they end with ctx.
	ctx context.Context
	wg  sync.WaitGroup
}

// NewMigrationHandler serves catalog. runs may be nil when no run history
// is kept. Runs started through the API are cancelled with ctx.
func NewMigrationHandler(ctx context.Context, catalog *pipeline.Catalog, runs RunLister, log *zap.SugaredLogger) *MigrationHandler {
	return &MigrationHandler{catalog: catalog, runs: runs, log: logger.OrNop(log), ctx: ctx}
}

// Wait blocks until every run started through the API has returned.
func (h *MigrationHandler) Wait() { h.wg.Wait() }

// MigrationOverview is the list view of a migration.
type MigrationOverview struct {
	ID           string             `json:"id"`
	Label        string             `json:"label"`
	Group        string             `json:"migration_group,omitempty"`
	Tags         []string           `json:"migration_tags,omitempty"`
	Dependencies model.Dependencies `json:"migration_dependencies"`
	Source       string             `json:"source_plugin"`
	Destination  string             `json:"destination_plugin"`
	File         string             `json:"file,omitempty"`
}

// MigrationDetail is an overview with the current status.
type MigrationDetail struct {
	MigrationOverview
	Status model.StatusReport `json:"status"`
}

// SourceReport describes the source of a migration.
type SourceReport struct {
	Plugin      string            `json:"plugin"`
	Description string            `json:"description"`
	IDs         []string          `json:"ids"`
	Fields      map[string]string `json:"fields"`
	Count       int               `json:"count"`
	CountError  string            `json:"count_error,omitempty"`
}

// DestinationReport describes the destination of a migration.
type DestinationReport struct {
	Plugin string                 `json:"plugin"`
	IDs    []string               `json:"ids"`
	Fields map[string]string      `json:"fields"`
	Config map[string]interface{} `json:"config"`
}

// RunAccepted answers a request that started a run.
type RunAccepted struct {
	RunID       string `json:"run_id"`
	MigrationID string `json:"migration_id"`
	Operation   string `json:"operation"`
	Status      string `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func overview(def *model.MigrationDefinition) MigrationOverview {
	return MigrationOverview{
		ID:           def.ID,
		Label:        def.Label,
		Group:        def.Group,
		Tags:         def.Tags,
		Dependencies: def.Dependencies,
		Source:       def.SourcePlugin(),
		Destination:  def.DestinationPlugin(),
		File:         def.File,
	}
}

// ListMigrations lists the known migrations
// @Summary List migrations
// @Description List every migration, optionally restricted to a group and tags
// @Tags migrations
// @Produce json
// @Param group query string false "Migration group"
// @Param tag query []string false "Migration tags, all must match" collectionFormat(multi)
// @Success 200 {array} handler.MigrationOverview
// @Router /migrations [get]
func (h *MigrationHandler) ListMigrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := h.catalog.Select(q.Get("group"), q["tag"])
	out := make([]MigrationOverview, 0, len(ids))
	for _, id := range ids {
		def, err := h.catalog.Definition(id)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, overview(def))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMigration returns one migration with its status
// @Summary Get migration
// @Description Overview of a migration: label, group, dependencies and id map status
// @Tags migrations
// @Produce json
// @Param id path string true "Migration ID"
// @Success 200 {object} handler.MigrationDetail
// @Failure 404 {object} handler.ErrorResponse
// @Router /migrations/{id} [get]
func (h *MigrationHandler) GetMigration(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	status, err := h.catalog.Status(r.Context(), def.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MigrationDetail{MigrationOverview: overview(def), Status: status})
}

// GetSource describes the source of a migration
// @Summary Get migration source
// @Description Source plugin, id fields, available fields and row count
// @Tags migrations
// @Produce json
// @Param id path string true "Migration ID"
// @Success 200 {object} handler.SourceReport
// @Failure 404 {object} handler.ErrorResponse
// @Failure 422 {object} handler.ErrorResponse
// @Router /migrations/{id}/source [get]
func (h *MigrationHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	m, ok := h.build(w, r)
	if !ok {
		return
	}
	src := m.Source
	report := SourceReport{
		Plugin:      src.PluginID(),
		Description: src.String(),
		IDs:         src.IDs(),
		Fields:      src.Fields(),
	}
	n, err := src.Count(r.Context())
	if err != nil {
		report.Count = -1
		report.CountError = err.Error()
	} else {
		report.Count = n
	}
	writeJSON(w, http.StatusOK, report)
}

// GetProcess returns the process pipeline of a migration
// @Summary Get migration process
// @Description Destination fields in order with their plugin steps
// @Tags migrations
// @Produce json
// @Param id path string true "Migration ID"
// @Success 200 {array} model.FieldProcess
// @Failure 404 {object} handler.ErrorResponse
// @Router /migrations/{id}/process [get]
func (h *MigrationHandler) GetProcess(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	process := def.Process
	if process == nil {
		process = model.ProcessMap{}
	}
	writeJSON(w, http.StatusOK, process)
}

// GetDestination describes the destination of a migration
// @Summary Get migration destination
// @Description Destination plugin, key fields and configuration
// @Tags migrations
// @Produce json
// @Param id path string true "Migration ID"
// @Success 200 {object} handler.DestinationReport
// @Failure 404 {object} handler.ErrorResponse
// @Failure 422 {object} handler.ErrorResponse
// @Router /migrations/{id}/destination [get]
func (h *MigrationHandler) GetDestination(w http.ResponseWriter, r *http.Request) {
	m, ok := h.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DestinationReport{
		Plugin: m.Destination.PluginID(),
		IDs:    m.Destination.IDs(),
		Fields: m.Destination.Fields(),
		Config: m.Definition.Destination,
	})
}

// GetMessages lists the id map messages of a migration
// @Summary Get migration messages
// @Description Messages recorded for rows of a migration, oldest first
// @Tags migrations
// @Produce json
// @Param id path string true "Migration ID"
// @Param level query string false "Only messages of this level" Enums(error, warning, notice, informational)
// @Success 200 {array} model.Message
// @Failure 400 {object} handler.ErrorResponse
// @Failure 404 {object} handler.ErrorResponse
// @Router /migrations/{id}/messages [get]
func (h *MigrationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	var level model.MessageLevel
	if s := r.URL.Query().Get("level"); s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			writeError(w, errors.Mark(err, errBadRequest))
			return
		}
	}
	ids, err := h.catalog.IDMap(def.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := ids.Messages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if level == 0 || m.Level == level {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRuns lists the past runs of a migration
// @Summary Get migration runs
// @Description Run summaries, newest first
// @Tags runs
// @Produce json
// @Param id path string true "Migration ID"
// @Param limit query int false "Maximum number of runs" default(20)
// @Success 200 {array} model.RunSummary
// @Failure 404 {object} handler.ErrorResponse
// @Router /migrations/{id}/runs [get]
func (h *MigrationHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	if h.runs == nil {
		writeJSON(w, http.StatusOK, []model.RunSummary{})
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, badRequest("limit %q is not a positive number", s))
			return
		}
		limit = n
	}
	runs, err := h.runs.List(r.Context(), def.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run by id
// @Summary Get run
// @Description Summary of a single run, finished or not
// @Tags runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} model.RunSummary
// @Failure 404 {object} handler.ErrorResponse
// @Router /runs/{run_id} [get]
func (h *MigrationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(router.Param(r, 0))
	if h.runs == nil || runID == "" {
		writeError(w, errors.Wrapf(errors.ErrNotFound, "run %q", runID))
		return
	}
	summary, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetProgress returns the run in flight for a migration
// @Summary Get run progress
// @Description Live counters of the run currently in flight
// @Tags runs
// @Produce json
// @Param id path string true "Migration ID"
// @Success 200 {object} model.RunSummary
// @Failure 404 {object} handler.ErrorResponse "Unknown migration or nothing running"
// @Router /migrations/{id}/progress [get]
func (h *MigrationHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	summary, running := h.catalog.Progress(def.ID)
	if !running {
		writeError(w, errors.Wrapf(errors.ErrNotFound, "no run in progress for %q", def.ID))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// StartImport starts an import run
// @Summary Import a migration
// @Description Start an import in the background. Poll progress and runs for the outcome.
// @Tags runs
// @Produce json
// @Param id path string true "Migration ID"
// @Param limit query int false "Stop after this many processed rows"
// @Param idlist query string false "Only these source ids, comma separated, composite parts colon separated"
// @Param update query bool false "Reprocess rows that are already imported"
// @Param timeout query string false "Cancel the run after this long, e.g. 10m"
// @Success 202 {object} handler.RunAccepted
// @Failure 400 {object} handler.ErrorResponse
// @Failure 404 {object} handler.ErrorResponse
// @Failure 409 {object} handler.ErrorResponse "A run is already in progress"
// @Router /migrations/{id}/import [post]
func (h *MigrationHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	opts, err := runOptions(h.catalog.Options(), r)
	if err != nil {
		writeError(w, err)
		return
	}
	var timeout time.Duration
	if s := r.URL.Query().Get("timeout"); s != "" {
		if timeout = utils.ParseDuration(s, -1); timeout <= 0 {
			writeError(w, badRequest("timeout %q is not a positive duration", s))
			return
		}
	}
	h.start(w, def.ID, model.OperationImport, opts, timeout, (*pipeline.Executable).Import)
}

// StartRollback starts a rollback run
// @Summary Roll a migration back
// @Description Start a rollback in the background
// @Tags runs
// @Produce json
// @Param id path string true "Migration ID"
// @Success 202 {object} handler.RunAccepted
// @Failure 404 {object} handler.ErrorResponse
// @Failure 409 {object} handler.ErrorResponse "A run is already in progress"
// @Router /migrations/{id}/rollback [post]
func (h *MigrationHandler) StartRollback(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	h.start(w, def.ID, model.OperationRollback, h.catalog.Options(), 0, (*pipeline.Executable).Rollback)
}

func (h *MigrationHandler) start(w http.ResponseWriter, id, op string, opts pipeline.Options, timeout time.Duration,
	run func(*pipeline.Executable, context.Context) (model.RunSummary, error)) {
	opts.RunID = pipeline.NewRunID()
	exec, release, err := h.catalog.Start(id, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(h.ctx, timeout)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer release()
		defer cancel()
		summary, err := run(exec, ctx)
		if err != nil {
			h.log.Warnw("Run ended with error", "migration", id, "operation", op, "run_id", summary.RunID, "error", err)
			return
		}
		h.log.Infow("Run finished", "migration", id, "operation", op, "run_id", summary.RunID, "status", summary.Status)
	}()

	writeJSON(w, http.StatusAccepted, RunAccepted{RunID: opts.RunID, MigrationID: id, Operation: op, Status: model.RunRunning})
}

func runOptions(opts pipeline.Options, r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return opts, badRequest("limit %q is not a number", s)
		}
		opts.Limit = n
	}
	if s := q.Get("update"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return opts, badRequest("update %q is not a boolean", s)
		}
		opts.Update = b
	}
	if s := q.Get("idlist"); s != "" {
		opts.IDList = model.ParseKeyList(s)
	}
	return opts, nil
}

func (h *MigrationHandler) definition(w http.ResponseWriter, r *http.Request) (*model.MigrationDefinition, bool) {
	id := strings.TrimSpace(router.Param(r, 0))
	if id == "" {
		writeError(w, badRequest("migration id is required"))
		return nil, false
	}
	def, err := h.catalog.Definition(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return def, true
}

func (h *MigrationHandler) build(w http.ResponseWriter, r *http.Request) (*pipeline.Migration, bool) {
	def, ok := h.definition(w, r)
	if !ok {
		return nil, false
	}
	m, err := h.catalog.Build(def.ID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return m, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, errors.ErrUnknownPlugin), errors.IsInvalidConfig(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
