// Package metrics computes the dashboard, progress and analytics figures for
// one owner. Store failures never reach the caller: they are logged and the
// zero view model is returned instead.
package metrics

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	domain "github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// WindowDays is the length of the current and previous delta windows.
	WindowDays = 30
	// SeriesDays is the length of the daily activity series.
	SeriesDays = 90
	// UpcomingDays bounds how far ahead a due date counts as upcoming.
	UpcomingDays = 7

	upcomingLimit = 3
	focusLimit    = 3
	// focusPool is how many of the newest open tasks feed the focus list.
	focusPool     = 30
	activityLimit = 8
)

// Aggregator computes owner-scoped metrics from the task store.
type Aggregator struct {
	store   storage.TaskStore
	now     func() time.Time
	sfGroup singleflight.Group // Collapses concurrent identical computations
}

// NewAggregator creates a new Aggregator.
func NewAggregator(store storage.TaskStore) *Aggregator {
	return &Aggregator{
		store: store,
		now:   time.Now,
	}
}

// today returns the start of the current UTC day.
func (a *Aggregator) today() time.Time {
	now := a.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Dashboard computes the dashboard figures.
func (a *Aggregator) Dashboard(ctx context.Context, ownerID string) *Dashboard {
	val, err, _ := a.sfGroup.Do("dashboard:"+ownerID, func() (any, error) {
		return a.dashboard(ctx, ownerID)
	})
	if err != nil {
		log.Printf("[metrics] Dashboard for owner %s failed, returning defaults: %v", ownerID, err)
		return emptyDashboard(a.today())
	}
	d := *val.(*Dashboard)
	return &d
}

func (a *Aggregator) dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	today := a.today()
	tomorrow := today.AddDate(0, 0, 1)
	// Both windows span WindowDays whole UTC days: [curFrom, tomorrow) and
	// [prevFrom, curFrom).
	curFrom := tomorrow.AddDate(0, 0, -WindowDays)
	prevFrom := curFrom.AddDate(0, 0, -WindowDays)
	// Overdue is a snapshot, compared with the same snapshot one window ago.
	overdueCutoffPrev := today.AddDate(0, 0, -WindowDays).Format(domain.DateLayout)
	todayKey := today.Format(domain.DateLayout)

	var (
		completedTotal, completedCur, completedPrev int64
		overdueTotal, overduePrev                   int64
		activeTotal, activeCur, activePrev          int64
		createdCur, createdPrev                     int64
		daily                                       map[string]storage.DayCount
		upcoming, focusPoolTasks, recent            []domain.Task
	)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, q storage.TaskQuery) {
		g.Go(func() error {
			n, err := a.store.CountTasks(gctx, ownerID, q)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	find := func(dst *[]domain.Task, q storage.TaskQuery) {
		g.Go(func() error {
			tasks, err := a.store.FindTasks(gctx, ownerID, q)
			if err != nil {
				return err
			}
			*dst = tasks
			return nil
		})
	}

	done, open := storage.Bool(true), storage.Bool(false)

	count(&completedTotal, storage.TaskQuery{Done: done})
	count(&completedCur, storage.TaskQuery{Done: done, TouchedFrom: curFrom, TouchedTo: tomorrow})
	count(&completedPrev, storage.TaskQuery{Done: done, TouchedFrom: prevFrom, TouchedTo: curFrom})

	count(&overdueTotal, storage.TaskQuery{Done: open, DueBefore: todayKey})
	count(&overduePrev, storage.TaskQuery{Done: open, DueBefore: overdueCutoffPrev})

	count(&activeTotal, storage.TaskQuery{Status: domain.StatusInProgress})
	count(&activeCur, storage.TaskQuery{Status: domain.StatusInProgress, CreatedFrom: curFrom, CreatedTo: tomorrow})
	count(&activePrev, storage.TaskQuery{Status: domain.StatusInProgress, CreatedFrom: prevFrom, CreatedTo: curFrom})

	count(&createdCur, storage.TaskQuery{CreatedFrom: curFrom, CreatedTo: tomorrow})
	count(&createdPrev, storage.TaskQuery{CreatedFrom: prevFrom, CreatedTo: curFrom})

	g.Go(func() error {
		counts, err := a.store.DailyCounts(gctx, ownerID, today.AddDate(0, 0, -(SeriesDays-1)))
		if err != nil {
			return fmt.Errorf("daily counts: %w", err)
		}
		daily = counts
		return nil
	})

	find(&upcoming, storage.TaskQuery{
		Done:    open,
		DueFrom: todayKey,
		DueTo:   today.AddDate(0, 0, UpcomingDays).Format(domain.DateLayout),
		Sort:    storage.SortDueAsc,
		Limit:   upcomingLimit,
	})
	find(&focusPoolTasks, storage.TaskQuery{Done: open, Sort: storage.SortCreatedDesc, Limit: focusPool})
	find(&recent, storage.TaskQuery{Sort: storage.SortTouchedDesc, Limit: activityLimit})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	score := productivity(completedCur, createdCur)
	prevScore := productivity(completedPrev, createdPrev)

	d := &Dashboard{
		CompletedTotal:    completedTotal,
		CompletedDeltaPct: delta(float64(completedCur), float64(completedPrev)),
		OverdueTotal:      overdueTotal,
		OverdueDeltaPct:   delta(float64(overdueTotal), float64(overduePrev)),
		ActiveTotal:       activeTotal,
		ActiveDeltaPct:    delta(float64(activeCur), float64(activePrev)),
		ProductivityScore: score,
		Series:            buildSeries(today, SeriesDays, daily),
		Upcoming:          nonNil(upcoming),
		Focus:             selectFocus(focusPoolTasks, focusLimit),
		Activity:          a.buildActivity(recent, todayKey),
	}
	if createdPrev > 0 {
		d.ProductivityDeltaPct = delta(float64(score), float64(prevScore))
	}
	return d, nil
}

// Progress computes the progress page figures.
func (a *Aggregator) Progress(ctx context.Context, ownerID string) *Progress {
	var total, completed int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountTasks(gctx, ownerID, storage.TaskQuery{})
		total = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.CountTasks(gctx, ownerID, storage.TaskQuery{Done: storage.Bool(true)})
		completed = n
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("[metrics] Progress for owner %s failed, returning defaults: %v", ownerID, err)
		return &Progress{}
	}

	return &Progress{
		Total:          total,
		Completed:      completed,
		Pending:        total - completed,
		CompletionRate: percent(completed, total),
	}
}

func emptyDashboard(today time.Time) *Dashboard {
	return &Dashboard{
		Series:   buildSeries(today, SeriesDays, nil),
		Upcoming: []domain.Task{},
		Focus:    []domain.Task{},
		Activity: []ActivityItem{},
	}
}

// delta returns the percentage change from prev to cur rounded to one
// decimal, or nil when prev is not positive.
func delta(cur, prev float64) *float64 {
	if prev <= 0 {
		return nil
	}
	v := math.Round((cur-prev)/prev*100*10) / 10
	return &v
}

// productivity is completed over created as a rounded percentage.
func productivity(completed, created int64) int {
	return percent(completed, created)
}

func percent(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// buildSeries returns one zero-filled point per UTC day for the days ending today.
func buildSeries(today time.Time, days int, counts map[string]storage.DayCount) []SeriesPoint {
	series := make([]SeriesPoint, 0, days)
	start := today.AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format(domain.DateLayout)
		c := counts[key]
		series = append(series, SeriesPoint{Date: key, Created: c.Created, Completed: c.Completed})
	}
	return series
}

// selectFocus orders the pool by priority, keeping recency order within a
// priority, and returns at most limit tasks.
func selectFocus(pool []domain.Task, limit int) []domain.Task {
	focus := make([]domain.Task, len(pool))
	copy(focus, pool)
	sort.SliceStable(focus, func(i, j int) bool {
		return focus[i].Priority.Rank() > focus[j].Priority.Rank()
	})
	if len(focus) > limit {
		focus = focus[:limit]
	}
	return focus
}

var (
	priorityIcons = map[domain.Priority]string{
		domain.PriorityLow:    "arrow-down-circle",
		domain.PriorityMedium: "minus-circle",
		domain.PriorityHigh:   "arrow-up-circle",
	}
	priorityTones = map[domain.Priority]string{
		domain.PriorityLow:    "lime",
		domain.PriorityMedium: "violet",
		domain.PriorityHigh:   "red",
	}
)

func (a *Aggregator) buildActivity(tasks []domain.Task, todayKey string) []ActivityItem {
	now := a.now()
	items := make([]ActivityItem, 0, len(tasks))
	for _, t := range tasks {
		action := activityAction(t, todayKey)
		at := t.Touched()
		items = append(items, ActivityItem{
			TaskID:   t.ID,
			Title:    t.Title,
			Status:   string(t.Status),
			Priority: string(t.Priority),
			Icon:     priorityIcons[t.Priority],
			Tone:     priorityTones[t.Priority],
			Label:    string(t.Priority) + " priority",
			Action:   action,
			Message:  fmt.Sprintf("%q %s.", t.Title, action),
			When:     humanize.RelTime(at, now, "ago", "from now"),
			At:       at,
		})
	}
	return items
}

func activityAction(t domain.Task, todayKey string) string {
	switch {
	case t.IsDone():
		return "completed"
	case t.DueDate != nil && *t.DueDate < todayKey:
		return "overdue"
	case t.Status == domain.StatusInProgress:
		return "in progress"
	default:
		return "added"
	}
}

func nonNil(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return []domain.Task{}
	}
	return tasks
}
