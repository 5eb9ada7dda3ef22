// Package orchestrator drives a pipeline run through its four stages and
// owns the run's state machine. Stage collaborators are injected as
// interfaces; the orchestrator itself holds no state between runs, so a
// single instance serves concurrent submissions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/env"
)

// Stage identifiers and display names, in execution order.
const (
	StageRequirements = 1
	StageArchitecture = 2
	StageGovernance   = 3
	StageSynthesis    = 4
)

var stageNames = map[int]string{
	StageRequirements: "Requirements Extraction",
	StageArchitecture: "Architecture Mapping",
	StageGovernance:   "Governance Guardrail",
	StageSynthesis:    "Code Synthesis",
}

// MaxPromptLen is the largest accepted build request, in bytes.
const MaxPromptLen = 4000

// DefaultStageTimeout bounds each external-collaborator call (stages 1, 2
// and 4). The guardrail runs in-process and is not subject to it.
const DefaultStageTimeout = 120 * time.Second

// ErrInvalidPrompt is returned for an empty or oversized prompt. No
// StageResults are created for a rejected submission.
var ErrInvalidPrompt = errors.New("invalid prompt")

// Extractor turns the user prompt into structured requirements.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (domain.Requirements, error)
}

// Mapper turns requirements into an architecture manifest.
type Mapper interface {
	Map(ctx context.Context, reqs domain.Requirements) (domain.ArchitectureManifest, error)
}

// Reviewer evaluates a manifest against policy and returns the corrected
// manifest together with the governance report.
type Reviewer interface {
	Review(manifest domain.ArchitectureManifest) (domain.ArchitectureManifest, domain.GovernanceReport)
}

// Synthesizer generates the deployment kit from the approved manifest.
type Synthesizer interface {
	Synthesize(ctx context.Context, manifest domain.ArchitectureManifest) (domain.DeploymentKit, error)
}

// Observer receives a copy of each StageResult as it transitions. It is
// invoked synchronously from the run's goroutine and must not block.
type Observer func(runID string, stage domain.StageResult)

type Config struct {
	StageTimeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("TRUSTBUILD_STAGE_TIMEOUT", DefaultStageTimeout)
	if err != nil {
		return Config{}, err
	}
	return Config{StageTimeout: timeout}, nil
}

func (c Config) Validate() error {
	if c.StageTimeout <= 0 {
		return errors.New("stage timeout must be positive")
	}
	return nil
}

type Orchestrator struct {
	extractor    Extractor
	mapper       Mapper
	reviewer     Reviewer
	synthesizer  Synthesizer
	stageTimeout time.Duration
}

func New(extractor Extractor, mapper Mapper, reviewer Reviewer, synthesizer Synthesizer, cfg Config) (*Orchestrator, error) {
	if extractor == nil || mapper == nil || reviewer == nil || synthesizer == nil {
		return nil, errors.New("all stage collaborators are required")
	}
	if cfg.StageTimeout == 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		extractor:    extractor,
		mapper:       mapper,
		reviewer:     reviewer,
		synthesizer:  synthesizer,
		stageTimeout: cfg.StageTimeout,
	}, nil
}

// Submit executes the four pipeline stages for one build request and
// returns the aggregated run record. Stage failures are captured into the
// run; the returned error is non-nil only for rejected submissions.
func (o *Orchestrator) Submit(ctx context.Context, prompt string, observe Observer) (domain.PipelineRun, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.PipelineRun{}, fmt.Errorf("%w: prompt is empty", ErrInvalidPrompt)
	}
	if len(prompt) > MaxPromptLen {
		return domain.PipelineRun{}, fmt.Errorf("%w: prompt exceeds %d bytes", ErrInvalidPrompt, MaxPromptLen)
	}

	run := domain.PipelineRun{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	o.execute(ctx, &run, observe)

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Duration = now.Sub(run.StartedAt)
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *domain.PipelineRun, observe Observer) {
	var reqs domain.Requirements
	var manifest domain.ArchitectureManifest

	ok := o.runStage(ctx, run, observe, StageRequirements, true, func(stageCtx context.Context) (any, domain.StageStatus, error) {
		out, err := o.extractor.Extract(stageCtx, run.Prompt)
		if err != nil {
			return nil, domain.StageStatusFailed, err
		}
		reqs = out
		return out, domain.StageStatusPassed, nil
	})
	if !ok {
		o.finish(ctx, run)
		return
	}

	ok = o.runStage(ctx, run, observe, StageArchitecture, true, func(stageCtx context.Context) (any, domain.StageStatus, error) {
		out, err := o.mapper.Map(stageCtx, reqs)
		if err != nil {
			return nil, domain.StageStatusFailed, err
		}
		manifest = out
		return out, domain.StageStatusPassed, nil
	})
	if !ok {
		o.finish(ctx, run)
		return
	}

	ok = o.runStage(ctx, run, observe, StageGovernance, false, func(context.Context) (any, domain.StageStatus, error) {
		corrected, report := o.reviewer.Review(manifest)
		run.Report = &report
		switch report.Status {
		case domain.ReportStatusFailed:
			return report, domain.StageStatusFailed, errors.New("unresolved critical policy violations")
		case domain.ReportStatusCorrected:
			manifest = corrected
			return report, domain.StageStatusCorrected, nil
		default:
			manifest = corrected
			return report, domain.StageStatusPassed, nil
		}
	})
	if !ok {
		o.finish(ctx, run)
		return
	}

	o.runStage(ctx, run, observe, StageSynthesis, true, func(stageCtx context.Context) (any, domain.StageStatus, error) {
		kit, err := o.synthesizer.Synthesize(stageCtx, manifest)
		if err != nil {
			return nil, domain.StageStatusFailed, err
		}
		run.Kit = &kit
		return kit, domain.StageStatusPassed, nil
	})
	o.finish(ctx, run)
}

// runStage appends the stage's StageResult, drives its status through the
// monotonic transition order, and reports whether the run may continue.
func (o *Orchestrator) runStage(ctx context.Context, run *domain.PipelineRun, observe Observer, stageID int, timed bool, invoke func(context.Context) (any, domain.StageStatus, error)) bool {
	if ctx.Err() != nil {
		return false
	}

	run.Stages = append(run.Stages, domain.StageResult{
		StageID:   stageID,
		StageName: stageNames[stageID],
		Status:    domain.StageStatusPending,
	})
	stage := &run.Stages[len(run.Stages)-1]
	notify(observe, run.ID, *stage)

	transition(stage, domain.StageStatusRunning)
	notify(observe, run.ID, *stage)

	stageCtx := ctx
	if timed {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	started := time.Now()
	result, status, err := safeInvoke(stageCtx, invoke)
	stage.Duration = time.Since(started)
	stage.Result = result
	if err != nil {
		stage.Error = err.Error()
	}
	transition(stage, status)
	notify(observe, run.ID, *stage)

	return status != domain.StageStatusFailed && ctx.Err() == nil
}

// safeInvoke contains a stage panic within that stage's failure record.
func safeInvoke(ctx context.Context, invoke func(context.Context) (any, domain.StageStatus, error)) (result any, status domain.StageStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, status, err = nil, domain.StageStatusFailed, fmt.Errorf("stage panic: %v", r)
		}
	}()
	return invoke(ctx)
}

func transition(stage *domain.StageResult, next domain.StageStatus) {
	if !domain.CanTransitionStageStatus(stage.Status, next) {
		return
	}
	stage.Status = next
}

func notify(observe Observer, runID string, stage domain.StageResult) {
	if observe != nil {
		observe(runID, stage)
	}
}

// finish derives the overall status from the recorded stage results.
func (o *Orchestrator) finish(ctx context.Context, run *domain.PipelineRun) {
	if ctx.Err() != nil && anyStagePassed(run.Stages) {
		run.Status = domain.RunStatusPartial
		return
	}
	for _, stage := range run.Stages {
		if stage.Status == domain.StageStatusFailed {
			run.Status = domain.RunStatusFailed
			return
		}
	}
	if len(run.Stages) < StageSynthesis {
		run.Status = domain.RunStatusFailed
		return
	}
	run.Status = domain.RunStatusCompleted
}

func anyStagePassed(stages []domain.StageResult) bool {
	for _, stage := range stages {
		if stage.Status == domain.StageStatusPassed || stage.Status == domain.StageStatusCorrected {
			return true
		}
	}
	return false
}
