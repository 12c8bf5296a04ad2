package app

import (
	"context"

	apperrors "assetsync/internal/errors"
	"assetsync/internal/logger"
	"assetsync/internal/ui"
)

// Step describes a single start-up phase.
type Step struct {
	Name      string
	Operation string
	Category  apperrors.ErrorCategory
	Fn        func(ctx context.Context) error
}

// StepErrorHandler handles step failures.
type StepErrorHandler func(step Step, err error) error

// Pipeline executes start-up steps sequentially.
type Pipeline struct {
	steps   []Step
	console *ui.Console
	logger  logger.Logger
	onError StepErrorHandler
}

// NewPipeline constructs a new pipeline. console may be nil for
// non-interactive runs.
func NewPipeline(console *ui.Console, log logger.Logger, steps []Step, handler StepErrorHandler) *Pipeline {
	return &Pipeline{
		steps:   steps,
		console: console,
		logger:  log,
		onError: handler,
	}
}

// Execute runs through all configured steps, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.logger != nil {
			p.logger.Debug("Executing step: %s", step.Name)
		}
		if p.console != nil {
			p.console.StartProgress(step.Name)
		}
		err := step.Fn(ctx)
		if p.console != nil {
			p.console.StopProgress(step.Name)
		}
		if err != nil {
			if p.onError != nil {
				return p.onError(step, err)
			}
			return err
		}
	}

	return nil
}

// wrapStepError attaches the step operation to err, converting plain errors
// into the step's category.
func wrapStepError(step Step, err error) error {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Operation == "" {
			appErr.WithOperation(step.Operation)
		}
		if appErr.Module == "" {
			appErr.WithModule("app")
		}
		return appErr
	}
	return apperrors.New(step.Category, errorCodeForCategory(step.Category), step.Name+" failed", err).
		WithModule("app").
		WithOperation(step.Operation)
}

func errorCodeForCategory(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.ErrCategoryTransport:
		return apperrors.CodeTransportGeneric
	case apperrors.ErrCategoryParse:
		return apperrors.CodeParseGeneric
	case apperrors.ErrCategoryStorage:
		return apperrors.CodeStorageGeneric
	case apperrors.ErrCategoryConfig:
		return apperrors.CodeConfigGeneric
	case apperrors.ErrCategoryValidation:
		return apperrors.CodeValidationGeneric
	default:
		return apperrors.CodeSystemGeneric
	}
}
