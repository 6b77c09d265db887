package metrics

import (
	"context"
	"log"
	"math"
	"time"

	domain "github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/storage"
	"golang.org/x/sync/errgroup"
)

// WeekDays is the length of the weekly summary.
const WeekDays = 7

// Analytics computes the analytics page figures.
func (a *Aggregator) Analytics(ctx context.Context, ownerID string) *Analytics {
	val, err, _ := a.sfGroup.Do("analytics:"+ownerID, func() (any, error) {
		return a.analytics(ctx, ownerID)
	})
	if err != nil {
		log.Printf("[metrics] Analytics for owner %s failed, returning defaults: %v", ownerID, err)
		return emptyAnalytics(a.today())
	}
	an := *val.(*Analytics)
	return &an
}

func (a *Aggregator) analytics(ctx context.Context, ownerID string) (*Analytics, error) {
	today := a.today()
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -(WeekDays - 1))

	var (
		daily                   map[string]storage.DayCount
		weekDone                []domain.Task
		total, done, inProgress int64
		low, high, overdue      int64
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

	g.Go(func() error {
		counts, err := a.store.DailyCounts(gctx, ownerID, today.AddDate(0, 0, -(SeriesDays-1)))
		if err != nil {
			return err
		}
		daily = counts
		return nil
	})
	g.Go(func() error {
		tasks, err := a.store.FindTasks(gctx, ownerID, storage.TaskQuery{
			Done:        storage.Bool(true),
			TouchedFrom: weekStart,
			TouchedTo:   tomorrow,
		})
		if err != nil {
			return err
		}
		weekDone = tasks
		return nil
	})

	count(&total, storage.TaskQuery{})
	count(&done, storage.TaskQuery{Done: storage.Bool(true)})
	count(&inProgress, storage.TaskQuery{Status: domain.StatusInProgress})
	count(&low, storage.TaskQuery{Priority: domain.PriorityLow})
	count(&high, storage.TaskQuery{Priority: domain.PriorityHigh})
	count(&overdue, storage.TaskQuery{Done: storage.Bool(false), DueBefore: today.Format(domain.DateLayout)})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := buildSeries(today, SeriesDays, daily)
	current, best := streaks(series)

	return &Analytics{
		Week:               weeklySummary(series[len(series)-WeekDays:]),
		CurrentStreak:      current,
		BestStreak:         best,
		AvgCompletionHours: avgCompletionHours(weekDone),
		OverdueCount:       overdue,
		ByStatus: map[string]int64{
			string(domain.StatusTodo):       max(total-done-inProgress, 0),
			string(domain.StatusInProgress): inProgress,
			string(domain.StatusDone):       done,
		},
		// Records without a priority read as Medium.
		ByPriority: map[string]int64{
			string(domain.PriorityLow):    low,
			string(domain.PriorityMedium): max(total-low-high, 0),
			string(domain.PriorityHigh):   high,
		},
	}, nil
}

func emptyAnalytics(today time.Time) *Analytics {
	series := buildSeries(today, WeekDays, nil)
	return &Analytics{
		Week: weeklySummary(series),
		ByStatus: map[string]int64{
			string(domain.StatusTodo):       0,
			string(domain.StatusInProgress): 0,
			string(domain.StatusDone):       0,
		},
		ByPriority: map[string]int64{
			string(domain.PriorityLow):    0,
			string(domain.PriorityMedium): 0,
			string(domain.PriorityHigh):   0,
		},
	}
}

func weeklySummary(points []SeriesPoint) WeeklySummary {
	week := WeeklySummary{Days: make([]DaySummary, 0, len(points))}
	best := 0
	for _, p := range points {
		date, _ := time.Parse(domain.DateLayout, p.Date)
		day := date.Weekday().String()[:3]
		week.Days = append(week.Days, DaySummary{
			Date:      p.Date,
			Day:       day,
			Created:   p.Created,
			Completed: p.Completed,
		})
		week.CreatedTotal += p.Created
		week.CompletedTotal += p.Completed
		if p.Completed > best {
			best = p.Completed
			week.StrongestDay = date.Weekday().String()
		}
	}
	week.CompletionRate = percent(int64(week.CompletedTotal), int64(week.CreatedTotal))
	return week
}

// streaks returns the run of completion days ending today (or yesterday when
// nothing is completed yet today) and the longest run in the series.
func streaks(series []SeriesPoint) (current, best int) {
	run := 0
	for _, p := range series {
		if p.Completed > 0 {
			run++
			best = max(best, run)
		} else {
			run = 0
		}
	}

	i := len(series) - 1
	if i >= 0 && series[i].Completed == 0 {
		i--
	}
	for ; i >= 0 && series[i].Completed > 0; i-- {
		current++
	}
	return current, best
}

// avgCompletionHours is the mean time from creation to completion, rounded to
// one decimal, or nil when nothing was completed.
func avgCompletionHours(tasks []domain.Task) *float64 {
	if len(tasks) == 0 {
		return nil
	}
	var total time.Duration
	for _, t := range tasks {
		if d := t.Touched().Sub(t.CreatedAt); d > 0 {
			total += d
		}
	}
	hours := total.Hours() / float64(len(tasks))
	v := math.Round(hours*10) / 10
	return &v
}
