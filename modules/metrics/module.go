package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/taskboard/domain/apperr"
	"github.com/example/taskboard/storage"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MetricsModule serves the dashboard, progress and analytics figures.
type MetricsModule struct {
	store      storage.TaskStore
	aggregator *Aggregator
}

var _ mono.Module = (*MetricsModule)(nil)
var _ mono.ServiceProviderModule = (*MetricsModule)(nil)

// NewModule creates a MetricsModule reading from the given task store.
func NewModule(store storage.TaskStore) *MetricsModule {
	return &MetricsModule{
		store:      store,
		aggregator: NewAggregator(store),
	}
}

func (m *MetricsModule) Name() string {
	return "metrics"
}

func (m *MetricsModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "dashboard", json.Unmarshal, json.Marshal, m.dashboard,
	); err != nil {
		return fmt.Errorf("failed to register dashboard service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "progress", json.Unmarshal, json.Marshal, m.progress,
	); err != nil {
		return fmt.Errorf("failed to register progress service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "analytics", json.Unmarshal, json.Marshal, m.analytics,
	); err != nil {
		return fmt.Errorf("failed to register analytics service: %w", err)
	}

	log.Printf("[metrics] Registered services: dashboard, progress, analytics")
	return nil
}

func (m *MetricsModule) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("task store not set")
	}
	log.Println("[metrics] Module started")
	return nil
}

func (m *MetricsModule) Stop(_ context.Context) error {
	log.Println("[metrics] Module stopped")
	return nil
}

var errNoOwner = apperr.Authentication("Unauthorized")

func (m *MetricsModule) dashboard(ctx context.Context, req OwnerRequest, _ *mono.Msg) (Dashboard, error) {
	if req.OwnerID == "" {
		return Dashboard{}, errNoOwner
	}
	return *m.aggregator.Dashboard(ctx, req.OwnerID), nil
}

func (m *MetricsModule) progress(ctx context.Context, req OwnerRequest, _ *mono.Msg) (Progress, error) {
	if req.OwnerID == "" {
		return Progress{}, errNoOwner
	}
	return *m.aggregator.Progress(ctx, req.OwnerID), nil
}

func (m *MetricsModule) analytics(ctx context.Context, req OwnerRequest, _ *mono.Msg) (Analytics, error) {
	if req.OwnerID == "" {
		return Analytics{}, errNoOwner
	}
	return *m.aggregator.Analytics(ctx, req.OwnerID), nil
}
