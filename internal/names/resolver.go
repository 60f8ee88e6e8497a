// Package names resolves scientific names to their canonical form through an
// external authority, backed by a durable cache.
package names

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/taxonomix/backend/internal/metrics"
	"github.com/taxonomix/backend/internal/models"
)

// DefaultWorkers is the number of names resolved concurrently.
const DefaultWorkers = 4

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Workers int
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Resolver maps names to canonical names. Concurrent lookups of the same
// name share one external call.
type Resolver struct {
	cache   Cache
	service MatchService
	group   singleflight.Group
	workers int
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewResolver creates a resolver over cache and service.
func NewResolver(cache Cache, service MatchService, opts ResolverOptions) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultMatchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		cache:   cache,
		service: service,
		workers: opts.Workers,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger.Named("resolver"),
		now:     time.Now,
	}
}

type lookupResult struct {
	match models.NameMatch
	ok    bool
}

// Lookup returns the accepted match for name, consulting the cache first.
// Failures and weak matches report ok=false and are not cached.
func (r *Resolver) Lookup(ctx context.Context, name string) (models.NameMatch, bool) {
	if m, ok := r.cached(ctx, name); ok {
		r.metrics.CacheLookup(true)
		return m, true
	}
	r.metrics.CacheLookup(false)

	ch := r.group.DoChan(name, func() (interface{}, error) {
		return r.fetch(context.WithoutCancel(ctx), name), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(lookupResult)
		return out.match, out.ok
	case <-ctx.Done():
		return models.NameMatch{}, false
	}
}

// fetch runs once per in-flight name.
func (r *Resolver) fetch(ctx context.Context, name string) lookupResult {
	// another flight may have filled the cache since our miss
	if m, ok := r.cached(ctx, name); ok {
		return lookupResult{match: m, ok: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	m, err := r.service.Match(callCtx, name)
	if err != nil {
		r.metrics.ExternalRequest(metrics.OutcomeError)
		r.logger.Warn("name lookup failed", zap.String("name", name), zap.Error(err))
		return lookupResult{}
	}
	if !m.Accepted() {
		r.metrics.ExternalRequest(metrics.OutcomeRejected)
		r.logger.Debug("no accepted match", zap.String("name", name), zap.String("match_type", string(m.MatchType)))
		return lookupResult{}
	}
	r.metrics.ExternalRequest(metrics.OutcomeAccepted)

	m.Input = name
	m.CachedAt = r.now().UTC()
	if err := r.cache.Set(ctx, name, m); err != nil {
		r.logger.Warn("failed to cache match", zap.String("name", name), zap.Error(err))
	}
	r.logger.Debug("resolved name",
		zap.String("name", name),
		zap.String("scientific_name", m.ScientificName),
		zap.String("match_type", string(m.MatchType)))
	return lookupResult{match: m, ok: true}
}

func (r *Resolver) cached(ctx context.Context, name string) (models.NameMatch, bool) {
	m, ok, err := r.cache.Get(ctx, name)
	if err != nil {
		r.logger.Warn("cache read failed", zap.String("name", name), zap.Error(err))
		return models.NameMatch{}, false
	}
	if !ok || !m.Accepted() {
		return models.NameMatch{}, false
	}
	return m, true
}

// Resolve looks up every distinct non-blank name and returns the entries
// whose canonical name differs from the input. progress, if set, is called
// after each name with the number done so far.
func (r *Resolver) Resolve(ctx context.Context, names []string, progress func(done, total int)) models.NormalizationMap {
	distinct := Distinct(names)
	result := make(models.NormalizationMap)
	if len(distinct) == 0 {
		return result
	}

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(r.workers)

	for _, name := range distinct {
		g.Go(func() error {
			m, ok := r.Lookup(ctx, name)

			mu.Lock()
			defer mu.Unlock()
			if ok && m.ScientificName != name {
				result[name] = m.ScientificName
			}
			done++
			if progress != nil {
				progress(done, len(distinct))
			}
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("resolved names",
		zap.Int("distinct", len(distinct)),
		zap.Int("normalized", len(result)))
	return result
}

// Distinct returns the unique non-blank values of names, sorted.
func Distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
