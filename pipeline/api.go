package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/kitexport"
	"github.com/trustbuild-labs/trustbuild-go/internal/orchestrator"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/auditlog"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/auth"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/httpserver"
	"github.com/trustbuild-labs/trustbuild-go/internal/repo"
)

const serviceName = "pipeline"
const serviceVersion = "1.0.0"

type pipelineAPI struct {
	logger  *slog.Logger
	orch    *orchestrator.Orchestrator
	mode    string
	archive repo.RunArchive
	export  *kitexport.Exporter
	auditDB *sql.DB
}

func newPipelineAPI(logger *slog.Logger, orch *orchestrator.Orchestrator, mode string) *pipelineAPI {
	return &pipelineAPI{
		logger: logger,
		orch:   orch,
		mode:   mode,
	}
}

func (api *pipelineAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", api.handleRoot)
	mux.HandleFunc("GET /api/health", api.handleHealth)
	mux.HandleFunc("POST /api/run-pipeline", api.handleRunPipeline)
	mux.HandleFunc("GET /api/runs", api.handleListRuns)
	mux.HandleFunc("GET /api/runs/{pipeline_id}", api.handleGetRun)
}

func (api *pipelineAPI) handleRoot(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"mode":    api.mode,
	})
}

func (api *pipelineAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"status":  "ok",
		"mode":    api.mode,
	})
}

type runPipelineRequest struct {
	UserPrompt string `json:"user_prompt"`
}

type stageResponse struct {
	StageID    int    `json:"stage_id"`
	StageName  string `json:"stage_name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

type pipelineResponse struct {
	PipelineID       string                   `json:"pipeline_id"`
	UserPrompt       string                   `json:"user_prompt"`
	Status           string                   `json:"status"`
	StartedAt        time.Time                `json:"started_at"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
	TotalDurationMS  int64                    `json:"total_duration_ms"`
	Stages           []stageResponse          `json:"stages"`
	DeploymentKit    *domain.DeploymentKit    `json:"deployment_kit,omitempty"`
	GovernanceReport *domain.GovernanceReport `json:"governance_report,omitempty"`
}

func toPipelineResponse(run domain.PipelineRun) pipelineResponse {
	resp := pipelineResponse{
		PipelineID:       run.ID,
		UserPrompt:       run.Prompt,
		Status:           string(run.Status),
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
		TotalDurationMS:  run.Duration.Milliseconds(),
		Stages:           make([]stageResponse, 0, len(run.Stages)),
		DeploymentKit:    run.Kit,
		GovernanceReport: run.Report,
	}
	for _, stage := range run.Stages {
		resp.Stages = append(resp.Stages, stageResponse{
			StageID:    stage.StageID,
			StageName:  stage.StageName,
			Status:     string(stage.Status),
			DurationMS: stage.Duration.Milliseconds(),
			Result:     stage.Result,
			Error:      stage.Error,
		})
	}
	return resp
}

func (api *pipelineAPI) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	var req runPipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	requestID := r.Header.Get("X-Request-Id")
	observe := func(runID string, stage domain.StageResult) {
		api.logger.Info("stage transition",
			"request_id", requestID,
			"pipeline_id", runID,
			"stage_id", stage.StageID,
			"stage_name", stage.StageName,
			"status", string(stage.Status),
			"duration_ms", stage.Duration.Milliseconds(),
		)
	}

	run, err := api.orch.Submit(r.Context(), req.UserPrompt, observe)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidPrompt) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		api.logger.Error("pipeline submit failed", "request_id", requestID, "error", err.Error())
		http.Error(w, "pipeline execution failed", http.StatusInternalServerError)
		return
	}

	api.finalizeRun(r, run)
	httpserver.WriteJSON(w, http.StatusOK, toPipelineResponse(run))
}

// finalizeRun performs the best-effort side effects of a terminal run:
// archive row, kit export, audit trail. Failures are logged, never
// surfaced to the caller; the run result itself is already decided.
func (api *pipelineAPI) finalizeRun(r *http.Request, run domain.PipelineRun) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()

	if api.archive != nil {
		if err := api.archive.SaveRun(ctx, run); err != nil {
			api.logger.Warn("run archive failed", "pipeline_id", run.ID, "error", err.Error())
		}
	}
	if api.export != nil && run.Kit != nil {
		keys, err := api.export.Export(ctx, run.ID, *run.Kit)
		if err != nil {
			api.logger.Warn("kit export failed", "pipeline_id", run.ID, "error", err.Error())
		} else {
			api.logger.Info("kit exported", "pipeline_id", run.ID, "objects", len(keys))
		}
	}
	api.appendAuditTrail(ctx, r, run)
}

func (api *pipelineAPI) appendAuditTrail(ctx context.Context, r *http.Request, run domain.PipelineRun) {
	if api.auditDB == nil {
		return
	}

	actor := "anonymous"
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.Subject != "" {
		actor = identity.Subject
	}

	events := make([]auditlog.Event, 0, 2)
	base := auditlog.Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        actor,
		ResourceType: auditlog.ResourcePipelineRun,
		ResourceID:   run.ID,
		RequestID:    r.Header.Get("X-Request-Id"),
		UserAgent:    r.UserAgent(),
	}

	lifecycle := base
	switch run.Status {
	case domain.RunStatusCompleted:
		lifecycle.Action = auditlog.ActionPipelineCompleted
	case domain.RunStatusPartial:
		lifecycle.Action = auditlog.ActionPipelinePartial
	default:
		lifecycle.Action = auditlog.ActionPipelineFailed
	}
	lifecycle.Payload = map[string]any{
		"status":      string(run.Status),
		"stages":      len(run.Stages),
		"duration_ms": run.Duration.Milliseconds(),
	}
	events = append(events, lifecycle)

	if run.Report != nil && run.Report.Status != domain.ReportStatusPassed {
		governance := base
		governance.Action = auditlog.ActionGovernanceCorrected
		if run.Report.Status == domain.ReportStatusFailed {
			governance.Action = auditlog.ActionGovernanceFailed
		}
		governance.Payload = map[string]any{
			"compliance_score": run.Report.ComplianceScore,
			"violations":       len(run.Report.Violations),
			"corrections":      len(run.Report.Corrections),
		}
		events = append(events, governance)
	}

	for _, event := range events {
		if _, err := auditlog.Insert(ctx, api.auditDB, event); err != nil {
			api.logger.Warn("audit append failed", "pipeline_id", run.ID, "action", event.Action, "error", err.Error())
		}
	}
}

func (api *pipelineAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if api.archive == nil {
		http.Error(w, "run archive is not enabled", http.StatusNotFound)
		return
	}

	limit, err := parseIntQuery(r, "limit", 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := repo.RunFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:  clampInt(limit, 1, 200),
	}

	runs, err := api.archive.ListRuns(r.Context(), filter)
	if err != nil {
		api.logger.Error("list runs failed", "error", err.Error())
		http.Error(w, "list runs failed", http.StatusInternalServerError)
		return
	}

	items := make([]pipelineResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, toPipelineResponse(run))
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"runs": items})
}

func (api *pipelineAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if api.archive == nil {
		http.Error(w, "run archive is not enabled", http.StatusNotFound)
		return
	}

	id := strings.TrimSpace(r.PathValue("pipeline_id"))
	run, err := api.archive.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		api.logger.Error("get run failed", "pipeline_id", id, "error", err.Error())
		http.Error(w, "get run failed", http.StatusInternalServerError)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, toPipelineResponse(run))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseIntQuery(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return value, nil
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
