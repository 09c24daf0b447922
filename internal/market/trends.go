package market

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source fetches the rows published on one date.
type Source interface {
	Day(ctx context.Context, date, product string) ([]map[string]any, error)
}

// Day is one date's rows.
type Day struct {
	Date  string           `json:"date"`
	Items []map[string]any `json:"items"`
}

// Trend is a product's recent prices plus the same day a year ago.
type Trend struct {
	Product  string `json:"product"`
	SpecInfo string `json:"specInfo"`
	Current  []Day  `json:"current"`
	LastYear *Day   `json:"lastYear"`
}

// Trends aggregates daily prices from a Source. Requests for
// consecutive days are spaced by throttle so the site is not hammered.
type Trends struct {
	source   Source
	throttle time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewTrends(source Source, throttle, timeout time.Duration, logger *zap.Logger) *Trends {
	return &Trends{source: source, throttle: throttle, timeout: timeout, logger: logger, now: time.Now}
}

// Collect fetches today and the days-1 days before it, newest first,
// while the same day last year is fetched alongside. Days that fail are
// logged and left out.
func (t *Trends) Collect(ctx context.Context, product, specInfo string, days int) (*Trend, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	today := t.now()
	lastYearDate := time.Date(today.Year()-1, today.Month(), today.Day(), 0, 0, 0, 0, today.Location()).Format(DateLayout)

	trend := &Trend{Product: product, SpecInfo: specInfo, Current: []Day{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := t.source.Day(gctx, lastYearDate, product)
		if err != nil {
			t.logger.Warn("market last-year fetch failed", zap.String("date", lastYearDate), zap.Error(err))
			return nil
		}
		trend.LastYear = &Day{Date: lastYearDate, Items: filterSpec(items, specInfo)}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < days; i++ {
			if i > 0 {
				if err := sleep(gctx, t.throttle); err != nil {
					return err
				}
			}
			date := today.AddDate(0, 0, -i).Format(DateLayout)
			items, err := t.source.Day(gctx, date, product)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				t.logger.Warn("market day fetch failed", zap.String("date", date), zap.Error(err))
				continue
			}
			trend.Current = append(trend.Current, Day{Date: date, Items: filterSpec(items, specInfo)})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trend, nil
}

func filterSpec(items []map[string]any, specInfo string) []map[string]any {
	if specInfo == "" {
		return items
	}
	out := []map[string]any{}
	for _, item := range items {
		if s, _ := item["specInfo"].(string); s == specInfo {
			out = append(out, item)
		}
	}
	return out
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
