package poller

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
)

const instrumentationName = "github.com/jsamuelsen/go-ambient/internal/platform/poller"

type metrics struct {
	pollTotal      metric.Int64Counter
	completedTotal metric.Int64Counter
	activeTasks    metric.Int64UpDownCounter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentationName)

	pollTotal, err := meter.Int64Counter(
		"poller.polls.total",
		metric.WithDescription("Total number of task polls"),
	)
	if err != nil {
		return nil, err
	}

	completedTotal, err := meter.Int64Counter(
		"poller.tasks.completed",
		metric.WithDescription("Number of tasks that reached an outcome"),
	)
	if err != nil {
		return nil, err
	}

	activeTasks, err := meter.Int64UpDownCounter(
		"poller.tasks.active",
		metric.WithDescription("Number of spawned tasks without an outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		pollTotal:      pollTotal,
		completedTotal: completedTotal,
		activeTasks:    activeTasks,
	}, nil
}

func (m *metrics) spawned(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeTasks.Add(ctx, 1)
}

func (m *metrics) polled(ctx context.Context) {
	if m == nil {
		return
	}
	m.pollTotal.Add(ctx, 1)
}

func (m *metrics) completed(ctx context.Context, err error) {
	if m == nil {
		return
	}

	m.activeTasks.Add(ctx, -1)
	m.completedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func outcome(err error) string {
	var perr *PanicError

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ambient.ErrCancelled):
		return "cancelled"
	case errors.As(err, &perr):
		return "panic"
	default:
		return "error"
	}
}
