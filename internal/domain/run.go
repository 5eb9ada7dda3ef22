package domain

import (
	"errors"
	"strings"
	"time"
)

// RunStatus is the overall status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial"
)

// StageStatus is the status of a single pipeline stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusPassed    StageStatus = "passed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusCorrected StageStatus = "corrected"
)

// Terminal reports whether a stage status is final.
func (s StageStatus) Terminal() bool {
	switch s {
	case StageStatusPassed, StageStatusFailed, StageStatusCorrected:
		return true
	default:
		return false
	}
}

// CanTransitionStageStatus enforces forward-only stage progression:
// pending -> running -> {passed | failed | corrected}.
func CanTransitionStageStatus(current, next StageStatus) bool {
	if current == next {
		return true
	}
	return stageStatusOrder(current) != 0 &&
		stageStatusOrder(next) != 0 &&
		stageStatusOrder(current) < stageStatusOrder(next)
}

func stageStatusOrder(status StageStatus) int {
	switch status {
	case StageStatusPending:
		return 1
	case StageStatusRunning:
		return 2
	case StageStatusPassed, StageStatusFailed, StageStatusCorrected:
		return 3
	default:
		return 0
	}
}

// StageResult records the outcome of one attempted stage. Exactly one
// StageResult exists per attempted stage per run, appended in execution
// order. A terminal result is never mutated afterwards.
type StageResult struct {
	StageID   int
	StageName string
	Status    StageStatus
	Duration  time.Duration
	Result    any
	Error     string
}

// PipelineRun is the aggregated record of one pipeline execution. It is
// owned by the orchestrator for the run's lifetime and immutable once the
// status leaves running.
type PipelineRun struct {
	ID          string
	Prompt      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Stages      []StageResult
	Kit         *DeploymentKit
	Report      *GovernanceReport
}

func (r PipelineRun) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("pipeline id is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if strings.TrimSpace(string(r.Status)) == "" {
		return errors.New("status is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started at is required")
	}
	return nil
}

// Terminal reports whether the run has reached a final status.
func (r PipelineRun) Terminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusPartial:
		return true
	default:
		return false
	}
}

// StageByID returns the recorded result for a stage, if it was attempted.
func (r PipelineRun) StageByID(stageID int) (StageResult, bool) {
	for _, stage := range r.Stages {
		if stage.StageID == stageID {
			return stage, true
		}
	}
	return StageResult{}, false
}
