// Package audit records the task lifecycle as structured JSON log lines.
// It subscribes to the task events on the mono event bus.
package audit

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/example/taskboard/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuditModule writes one JSON record per task event.
type AuditModule struct {
	logger  *slog.Logger
	closer  io.Closer
	records atomic.Int64
}

var _ mono.Module = (*AuditModule)(nil)
var _ mono.EventConsumerModule = (*AuditModule)(nil)
var _ mono.HealthCheckableModule = (*AuditModule)(nil)

// NewModule creates an AuditModule writing to w. A nil w discards records.
// When w is also an io.Closer other than the standard streams it is closed on Stop.
func NewModule(w io.Writer) *AuditModule {
	if w == nil {
		w = io.Discard
	}
	m := &AuditModule{
		logger: slog.New(slog.NewJSONHandler(w, nil)).With("component", "audit"),
	}
	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		m.closer = c
	}
	return m
}

func (m *AuditModule) Name() string {
	return "audit"
}

func (m *AuditModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskUpdatedV1, m.handleTaskUpdated, m); err != nil {
		return fmt.Errorf("failed to register TaskUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCompletedV1, m.handleTaskCompleted, m); err != nil {
		return fmt.Errorf("failed to register TaskCompleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}

	log.Printf("[audit] Registered event consumers: TaskCreated, TaskUpdated, TaskCompleted, TaskDeleted")
	return nil
}

func (m *AuditModule) handleTaskCreated(ctx context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	m.record(ctx, "task.created", event.OwnerID, event.TaskID,
		slog.String("title", event.Title),
		slog.String("status", event.Status),
		slog.String("priority", event.Priority),
		slog.Time("at", event.CreatedAt),
	)
	return nil
}

func (m *AuditModule) handleTaskUpdated(ctx context.Context, event events.TaskUpdatedEvent, _ *mono.Msg) error {
	m.record(ctx, "task.updated", event.OwnerID, event.TaskID,
		slog.Any("fields", event.Fields),
		slog.String("status", event.Status),
		slog.Time("at", event.UpdatedAt),
	)
	return nil
}

func (m *AuditModule) handleTaskCompleted(ctx context.Context, event events.TaskCompletedEvent, _ *mono.Msg) error {
	m.record(ctx, "task.completed", event.OwnerID, event.TaskID,
		slog.Time("at", event.CompletedAt),
	)
	return nil
}

func (m *AuditModule) handleTaskDeleted(ctx context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	m.record(ctx, "task.deleted", event.OwnerID, event.TaskID,
		slog.Time("at", event.DeletedAt),
	)
	return nil
}

func (m *AuditModule) record(ctx context.Context, action, ownerID, taskID string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("action", action),
		slog.String("owner_id", ownerID),
		slog.String("task_id", taskID),
	}, attrs...)
	m.logger.LogAttrs(ctx, slog.LevelInfo, "task event", attrs...)
	m.records.Add(1)
}

// Records returns how many events have been written since start.
func (m *AuditModule) Records() int64 {
	return m.records.Load()
}

func (m *AuditModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"records": m.Records(),
		},
	}
}

func (m *AuditModule) Start(_ context.Context) error {
	log.Println("[audit] Module started - listening for task events")
	return nil
}

func (m *AuditModule) Stop(_ context.Context) error {
	if m.closer != nil {
		if err := m.closer.Close(); err != nil {
			return fmt.Errorf("failed to close audit log: %w", err)
		}
	}
	log.Println("[audit] Module stopped")
	return nil
}
