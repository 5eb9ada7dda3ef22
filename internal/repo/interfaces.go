// Package repo defines the persistence interfaces for the pipeline run
// archive. Implementations live in subpackages; the service depends only
// on these interfaces so archiving stays optional.
package repo

import (
	"context"
	"errors"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type RunFilter struct {
	Status string
	Limit  int
}

// RunArchive persists completed pipeline runs. Runs are written once,
// after they reach a terminal status, and never updated.
type RunArchive interface {
	SaveRun(ctx context.Context, run domain.PipelineRun) error
	GetRun(ctx context.Context, id string) (domain.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.PipelineRun, error)
}
