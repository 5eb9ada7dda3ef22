package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

// Stage results, the deployment kit and the governance report are stored
// as JSONB blobs; the run row carries the queryable columns plus a digest
// over the blobs so tampering is detectable.
type stageRecord struct {
	StageID    int             `json:"stage_id"`
	StageName  string          `json:"stage_name"`
	Status     string          `json:"status"`
	DurationMS int64           `json:"duration_ms"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (s *RunStore) SaveRun(ctx context.Context, run domain.PipelineRun) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	if !run.Terminal() {
		return fmt.Errorf("run %s is not terminal", run.ID)
	}

	records, err := encodeStages(run.Stages)
	if err != nil {
		return err
	}
	stagesJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}
	kitJSON, err := encodeKit(run.Kit)
	if err != nil {
		return fmt.Errorf("encode kit: %w", err)
	}
	reportJSON, err := encodeReport(run.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: run.CompletedAt.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO pipeline_runs (
			pipeline_id,
			prompt,
			status,
			started_at,
			completed_at,
			duration_ms,
			stages,
			deployment_kit,
			governance_report,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(run.ID),
		run.Prompt,
		string(run.Status),
		normalizeTime(run.StartedAt),
		completedAt,
		run.Duration.Milliseconds(),
		stagesJSON,
		kitJSON,
		reportJSON,
		integritySHA256(stagesJSON, kitJSON, reportJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return domain.PipelineRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PipelineRun{}, fmt.Errorf("pipeline id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT pipeline_id, prompt, status, started_at, completed_at, duration_ms,
			stages, deployment_kit, governance_report
		 FROM pipeline_runs
		 WHERE pipeline_id = $1`,
		id,
	)
	return scanRun(row.Scan)
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 1)
	args := make([]any, 0, 2)
	if strings.TrimSpace(filter.Status) != "" {
		args = append(args, strings.TrimSpace(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT pipeline_id, prompt, status, started_at, completed_at, duration_ms,
		stages, deployment_kit, governance_report
		FROM pipeline_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.PipelineRun, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func scanRun(scan func(dest ...any) error) (domain.PipelineRun, error) {
	var run domain.PipelineRun
	var status string
	var completedAt sql.NullTime
	var durationMS int64
	var stagesJSON, kitJSON, reportJSON []byte
	if err := scan(&run.ID, &run.Prompt, &status, &run.StartedAt, &completedAt, &durationMS,
		&stagesJSON, &kitJSON, &reportJSON); err != nil {
		return domain.PipelineRun{}, handleNotFound(err)
	}
	run.Status = domain.RunStatus(status)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if completedAt.Valid {
		completed := completedAt.Time.UTC()
		run.CompletedAt = &completed
	}

	var stages []stageRecord
	if len(stagesJSON) > 0 {
		if err := json.Unmarshal(stagesJSON, &stages); err != nil {
			return domain.PipelineRun{}, fmt.Errorf("decode stages: %w", err)
		}
	}
	for _, rec := range stages {
		run.Stages = append(run.Stages, domain.StageResult{
			StageID:   rec.StageID,
			StageName: rec.StageName,
			Status:    domain.StageStatus(rec.Status),
			Duration:  time.Duration(rec.DurationMS) * time.Millisecond,
			Result:    rec.Result,
			Error:     rec.Error,
		})
	}

	kit, err := decodeKit(kitJSON)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode kit: %w", err)
	}
	run.Kit = kit

	report, err := decodeReport(reportJSON)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode report: %w", err)
	}
	run.Report = report
	return run, nil
}

func encodeStages(stages []domain.StageResult) ([]stageRecord, error) {
	out := make([]stageRecord, 0, len(stages))
	for _, stage := range stages {
		rec := stageRecord{
			StageID:    stage.StageID,
			StageName:  stage.StageName,
			Status:     string(stage.Status),
			DurationMS: stage.Duration.Milliseconds(),
			Error:      stage.Error,
		}
		if stage.Result != nil {
			raw, err := json.Marshal(stage.Result)
			if err != nil {
				return nil, fmt.Errorf("encode stage %d result: %w", stage.StageID, err)
			}
			rec.Result = raw
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeKit(kit *domain.DeploymentKit) ([]byte, error) {
	if kit == nil {
		return nil, nil
	}
	return json.Marshal(kit)
}

func decodeKit(raw []byte) (*domain.DeploymentKit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var kit domain.DeploymentKit
	if err := json.Unmarshal(raw, &kit); err != nil {
		return nil, err
	}
	return &kit, nil
}

func encodeReport(report *domain.GovernanceReport) ([]byte, error) {
	if report == nil {
		return nil, nil
	}
	return json.Marshal(report)
}

func decodeReport(raw []byte) (*domain.GovernanceReport, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var report domain.GovernanceReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func integritySHA256(blobs ...[]byte) string {
	h := sha256.New()
	for _, blob := range blobs {
		h.Write(blob)
	}
	return hex.EncodeToString(h.Sum(nil))
}
