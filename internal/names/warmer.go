package names

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taxonomix/backend/internal/models"
)

// CollectWarmNames gathers the distinct non-empty values of cols, skipping
// values that look like identifiers (ending in "key").
func CollectWarmNames(t *models.Table, cols []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range cols {
		col := t.Column(name)
		if col == nil {
			continue
		}
		for _, cell := range col.Cells {
			if cell.IsNull() {
				continue
			}
			v := strings.TrimSpace(cell.Text())
			if v == "" || strings.HasSuffix(strings.ToLower(v), "key") {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// WarmStats summarizes a warm run.
type WarmStats struct {
	Total    int
	Resolved int
	Elapsed  time.Duration
}

// Warmer fills the cache ahead of demand.
type Warmer struct {
	resolver *Resolver
	workers  int
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewWarmer creates a warmer that resolves through resolver.
func NewWarmer(resolver *Resolver, workers int, logger *zap.Logger) *Warmer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{resolver: resolver, workers: workers, logger: logger.Named("warmer")}
}

// Warm resolves names in the background. It never blocks the caller and its
// failures are only logged.
func (w *Warmer) Warm(names []string) {
	if len(names) == 0 {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("cache warm panicked", zap.Any("panic", r))
			}
		}()

		stats := w.Run(context.Background(), names, nil)
		w.logger.Info("cache warm finished",
			zap.Int("total", stats.Total),
			zap.Int("resolved", stats.Resolved),
			zap.Duration("elapsed", stats.Elapsed))
	}()
}

// Run resolves names synchronously. report, if set, is called once per name
// in completion order.
func (w *Warmer) Run(ctx context.Context, names []string, report func(done, total int, name string, ok bool)) WarmStats {
	start := time.Now()
	stats := WarmStats{Total: len(names)}

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(w.workers)
	for _, name := range names {
		g.Go(func() error {
			_, ok := w.resolver.Lookup(ctx, name)

			mu.Lock()
			defer mu.Unlock()
			done++
			if ok {
				stats.Resolved++
			}
			if report != nil {
				report(done, stats.Total, name, ok)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Elapsed = time.Since(start)
	return stats
}

// Wait blocks until every background warm has finished.
func (w *Warmer) Wait() {
	w.wg.Wait()
}
