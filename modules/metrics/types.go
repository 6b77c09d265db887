package metrics

import (
	"context"
	"time"

	domain "github.com/example/taskboard/domain/task"
)

// OwnerRequest is the request for every metrics service.
type OwnerRequest struct {
	OwnerID string `json:"owner_id"`
}

// SeriesPoint is one UTC day of the activity series.
type SeriesPoint struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// ActivityItem is a recently touched task decorated for the activity feed.
type ActivityItem struct {
	TaskID   string    `json:"taskId"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Priority string    `json:"priority"`
	Icon     string    `json:"icon"`
	Tone     string    `json:"tone"`
	Label    string    `json:"label"`
	Action   string    `json:"action"`
	Message  string    `json:"message"`
	When     string    `json:"when"`
	At       time.Time `json:"at"`
}

// Dashboard is the dashboard view model. Delta fields are null when the
// previous window had nothing to compare against.
type Dashboard struct {
	CompletedTotal       int64    `json:"completedTotal"`
	CompletedDeltaPct    *float64 `json:"completedDeltaPct"`
	OverdueTotal         int64    `json:"overdueTotal"`
	OverdueDeltaPct      *float64 `json:"overdueDeltaPct"`
	ActiveTotal          int64    `json:"activeTotal"`
	ActiveDeltaPct       *float64 `json:"activeDeltaPct"`
	ProductivityScore    int      `json:"productivityScore"`
	ProductivityDeltaPct *float64 `json:"productivityDeltaPct"`

	Series   []SeriesPoint  `json:"series"`
	Upcoming []domain.Task  `json:"upcoming"`
	Focus    []domain.Task  `json:"focus"`
	Activity []ActivityItem `json:"activity"`
}

// Progress is the progress page view model.
type Progress struct {
	Total          int64 `json:"total"`
	Completed      int64 `json:"completed"`
	Pending        int64 `json:"pending"`
	CompletionRate int   `json:"completionRate"`
}

// DaySummary is one day of the weekly summary.
type DaySummary struct {
	Date      string `json:"date"`
	Day       string `json:"day"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// WeeklySummary covers the seven UTC days ending today.
type WeeklySummary struct {
	Days           []DaySummary `json:"days"`
	CreatedTotal   int          `json:"createdTotal"`
	CompletedTotal int          `json:"completedTotal"`
	CompletionRate int          `json:"completionRate"`
	StrongestDay   string       `json:"strongestDay"`
}

// Analytics is the analytics page view model.
type Analytics struct {
	Week               WeeklySummary    `json:"week"`
	CurrentStreak      int              `json:"currentStreak"`
	BestStreak         int              `json:"bestStreak"`
	AvgCompletionHours *float64         `json:"avgCompletionHours"`
	OverdueCount       int64            `json:"overdueCount"`
	ByStatus           map[string]int64 `json:"byStatus"`
	ByPriority         map[string]int64 `json:"byPriority"`
}

// MetricsPort defines the interface the HTTP API uses to reach the metrics module.
type MetricsPort interface {
	Dashboard(ctx context.Context, ownerID string) (*Dashboard, error)
	Progress(ctx context.Context, ownerID string) (*Progress, error)
	Analytics(ctx context.Context, ownerID string) (*Analytics, error)
}
