package metrics

import (
	"context"
	"encoding/json"

	"github.com/example/taskboard/domain/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// metricsAdapter implements MetricsPort over the metrics module's services.
type metricsAdapter struct {
	container mono.ServiceContainer
}

// NewMetricsAdapter creates a new adapter for metrics services.
func NewMetricsAdapter(container mono.ServiceContainer) MetricsPort {
	if container == nil {
		panic("metrics adapter requires non-nil ServiceContainer")
	}
	return &metricsAdapter{container: container}
}

func (a *metricsAdapter) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	req := OwnerRequest{OwnerID: ownerID}
	var resp Dashboard
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"dashboard",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Remote("dashboard", err)
	}
	return &resp, nil
}

func (a *metricsAdapter) Progress(ctx context.Context, ownerID string) (*Progress, error) {
	req := OwnerRequest{OwnerID: ownerID}
	var resp Progress
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"progress",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Remote("progress", err)
	}
	return &resp, nil
}

func (a *metricsAdapter) Analytics(ctx context.Context, ownerID string) (*Analytics, error) {
	req := OwnerRequest{OwnerID: ownerID}
	var resp Analytics
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"analytics",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Remote("analytics", err)
	}
	return &resp, nil
}
