package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/go-ambient/internal/platform/logging"
)

// Staged operations run Validate → Perform → Verify → Archive → Respond, one
// step per Poll, so a driver can interleave many operations on a few workers
// and every step observes the ambient values of the operation it belongs to.
// Execute drives a staged operation to completion on the calling goroutine.

// ExecutionStep represents a step of a staged operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// next returns the step that follows s, or "" after respond.
func (s ExecutionStep) next() ExecutionStep {
	switch s {
	case StepValidate:
		return StepPerform
	case StepPerform:
		return StepVerify
	case StepVerify:
		return StepArchive
	case StepArchive:
		return StepRespond
	default:
		return ""
	}
}

// ExecutionError wraps errors with the step where they occurred.
type ExecutionError struct {
	Step    ExecutionStep
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Step, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func stepError(step ExecutionStep, message string, cause error) error {
	return &ExecutionError{Step: step, Message: message, Cause: cause}
}

// IsExecutionError checks if an error occurred during a staged operation.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError

	return errors.As(err, &execErr)
}

// GetExecutionStep extracts the step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}

// Executor builds staged operations sharing a logger.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a new executor with the given logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation defines the functions for each step. Nil steps are skipped but
// still take a poll.
type Operation[I, P, V, O any] struct {
	// Name identifies this operation for logging.
	Name string

	// Validate checks inputs and preconditions.
	Validate func(ctx context.Context, input I) error

	// Perform executes the main operation, typically a downstream call.
	Perform func(ctx context.Context, input I) (P, error)

	// Verify confirms the operation succeeded.
	Verify func(ctx context.Context, input I, performed P) (V, error)

	// Archive persists the verified state.
	Archive func(ctx context.Context, input I, verified V) error

	// Respond transforms the result for the caller.
	Respond func(ctx context.Context, input I, verified V) (O, error)

	// OnStep, if set, is called before each step runs.
	OnStep func(ctx context.Context, input I, step ExecutionStep)
}

// Staged is a resumable operation implementing ambient.Task[O].
// It is not safe for concurrent polls.
type Staged[I, P, V, O any] struct {
	op     Operation[I, P, V, O]
	input  I
	logger *slog.Logger

	step      ExecutionStep
	performed P
	verified  V
	started   time.Time

	result O
	err    error
}

// NewStaged prepares op to run against input. Nothing runs until the first Poll.
func NewStaged[I, P, V, O any](exec *Executor, op Operation[I, P, V, O], input I) *Staged[I, P, V, O] {
	return &Staged[I, P, V, O]{
		op:     op,
		input:  input,
		logger: exec.logger.With(slog.String("operation", op.Name)),
		step:   StepValidate,
	}
}

// Step returns the step the next Poll will run, or "" once finished.
func (s *Staged[I, P, V, O]) Step() ExecutionStep {
	return s.step
}

// Poll runs the next step. It reports done after Respond or after the first
// failing step; later polls return the same outcome.
func (s *Staged[I, P, V, O]) Poll(ctx context.Context) (O, bool, error) {
	if s.step == "" {
		return s.result, true, s.err
	}

	if s.started.IsZero() {
		s.started = time.Now()
	}

	step := s.step
	if s.op.OnStep != nil {
		s.op.OnStep(ctx, s.input, step)
	}

	if err := s.run(ctx, step); err != nil {
		s.step = ""
		s.err = err

		return s.result, true, err
	}

	s.step = step.next()
	if s.step != "" {
		return s.result, false, nil
	}

	s.logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(s.started)))

	return s.result, true, nil
}

func (s *Staged[I, P, V, O]) run(ctx context.Context, step ExecutionStep) error {
	s.logger.Log(ctx, logging.LevelTrace, "running step", slog.String("step", string(step)))

	var err error

	switch step {
	case StepValidate:
		if s.op.Validate != nil {
			if err = s.op.Validate(ctx, s.input); err != nil {
				s.logger.WarnContext(ctx, "validation failed", slog.Any("error", err))
				return stepError(step, "input validation failed", err)
			}
		}
	case StepPerform:
		if s.op.Perform != nil {
			if s.performed, err = s.op.Perform(ctx, s.input); err != nil {
				s.logger.ErrorContext(ctx, "perform failed", slog.Any("error", err))
				return stepError(step, "operation failed", err)
			}
		}
	case StepVerify:
		if s.op.Verify != nil {
			if s.verified, err = s.op.Verify(ctx, s.input, s.performed); err != nil {
				s.logger.ErrorContext(ctx, "verification failed", slog.Any("error", err))
				return stepError(step, "verification failed", err)
			}
		}
	case StepArchive:
		if s.op.Archive != nil {
			if err = s.op.Archive(ctx, s.input, s.verified); err != nil {
				s.logger.ErrorContext(ctx, "archive failed", slog.Any("error", err))
				return stepError(step, "state persistence failed", err)
			}
		}
	case StepRespond:
		if s.op.Respond != nil {
			if s.result, err = s.op.Respond(ctx, s.input, s.verified); err != nil {
				s.logger.WarnContext(ctx, "respond formatting failed", slog.Any("error", err))
				return stepError(step, "response failed", err)
			}
		}
	}

	return nil
}

// Execute runs an operation through every step on the calling goroutine.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	staged := NewStaged(exec, op, input)

	for {
		result, done, err := staged.Poll(ctx)
		if done {
			return result, err
		}

		if err := ctx.Err(); err != nil {
			var zero O
			return zero, err
		}
	}
}
