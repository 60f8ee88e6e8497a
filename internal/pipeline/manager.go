// Package pipeline runs submitted tables through parsing, classification,
// name resolution and authorship splitting, reporting progress as it goes.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taxonomix/backend/internal/jobs"
	"github.com/taxonomix/backend/internal/logging"
	"github.com/taxonomix/backend/internal/metrics"
	"github.com/taxonomix/backend/internal/models"
	"github.com/taxonomix/backend/internal/names"
	"github.com/taxonomix/backend/internal/parser"
	"github.com/taxonomix/backend/internal/taxonomy"
)

// Progress checkpoints.
const (
	PercentIngested   = 10
	PercentClassified = 25
	PercentResolved   = 60
	PercentRewritten  = 90
	PercentPersisted  = 95
)

// NoTaxonomicColumns is the completion message when nothing was classified.
const NoTaxonomicColumns = "No taxonomic columns found."

// Sink persists the cleaned table.
type Sink interface {
	Save(ctx context.Context, filename string, t *models.Table) error
}

// Result is what a finished run produced.
type Result struct {
	Table      *models.Table
	Columns    []string
	Normalized models.NormalizationMap
	Delimiter  rune
	Charset    string
	Message    string

	// names already sent to the resolver during this run
	looked []string
}

// Options carries the collaborators of a Manager. Reader, Classifier and
// Splitter default to their standard configuration when nil.
type Options struct {
	Reader     *parser.Reader
	Classifier *taxonomy.Classifier
	Splitter   *taxonomy.Splitter
	Resolver   *names.Resolver
	Warmer     *names.Warmer
	Tracker    *jobs.Tracker
	Sink       Sink
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Manager owns the background tasks for submitted files.
type Manager struct {
	reader     *parser.Reader
	classifier *taxonomy.Classifier
	splitter   *taxonomy.Splitter
	resolver   *names.Resolver
	warmer     *names.Warmer
	tracker    *jobs.Tracker
	sink       Sink
	metrics    *metrics.Metrics
	logger     *zap.Logger

	wg sync.WaitGroup
}

// NewManager creates a Manager. Resolver, Tracker and Sink are required.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Reader == nil {
		opts.Reader = parser.NewReader(opts.Logger)
	}
	if opts.Classifier == nil {
		opts.Classifier = taxonomy.NewClassifier(nil)
	}
	if opts.Splitter == nil {
		opts.Splitter = taxonomy.NewSplitter()
	}
	return &Manager{
		reader:     opts.Reader,
		classifier: opts.Classifier,
		splitter:   opts.Splitter,
		resolver:   opts.Resolver,
		warmer:     opts.Warmer,
		tracker:    opts.Tracker,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("pipeline"),
	}
}

// Submit starts processing data in the background and returns the job id.
// The job runs on its own context; the caller's request may end first.
func (m *Manager) Submit(filename string, data []byte) string {
	id := uuid.New().String()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runTask(context.Background(), id, filename, data)
	}()
	return id
}

// Wait blocks until every submitted job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) runTask(ctx context.Context, id, filename string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job panicked", zap.String("job", logging.ShortID(id)), zap.Any("panic", r))
			m.fail(ctx, id, fmt.Sprintf("processing panicked: %v", r))
		}
	}()
	_, _ = m.Run(ctx, id, filename, data)
}

// Run processes data synchronously under job id and stores the result as
// filename. Any error has already been recorded on the job.
func (m *Manager) Run(ctx context.Context, id, filename string, data []byte) (*Result, error) {
	start := time.Now()
	log := m.logger.With(zap.String("job", logging.ShortID(id)), zap.String("file", filename))

	if err := m.tracker.Create(ctx, id); err != nil {
		log.Error("failed to create job", zap.Error(err))
		return nil, err
	}

	res, err := m.process(ctx, id, filename, data, log)
	if err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		m.fail(ctx, id, err.Error())
		m.metrics.JobFinished(string(models.JobStatusError), time.Since(start))
		return nil, err
	}

	if err := m.tracker.Complete(ctx, id, res.Message); err != nil {
		log.Error("failed to complete job", zap.Error(err))
		return nil, err
	}
	m.metrics.JobFinished(string(models.JobStatusDone), time.Since(start))
	log.Info("job complete",
		zap.Strings("columns", res.Columns),
		zap.Int("normalized", len(res.Normalized)),
		zap.Duration("elapsed", time.Since(start)))

	if m.warmer != nil && len(res.Columns) > 0 {
		m.warmer.Warm(withoutNames(names.CollectWarmNames(res.Table, res.Columns), res.looked))
	}
	return res, nil
}

func (m *Manager) process(ctx context.Context, id, filename string, data []byte, log *zap.Logger) (*Result, error) {
	parsed, err := m.reader.Parse(data)
	if err != nil {
		return nil, err
	}
	m.progress(ctx, id, PercentIngested)
	table := parsed.Table
	res := &Result{
		Table:      table,
		Normalized: models.NormalizationMap{},
		Delimiter:  parsed.Delimiter,
		Charset:    parsed.Charset,
	}

	res.Columns = m.classifier.Classify(table)
	m.progress(ctx, id, PercentClassified)
	log.Info("classified columns", zap.Strings("columns", res.Columns), zap.Int("rows", table.NumRows()))

	if len(res.Columns) == 0 {
		if err := m.save(ctx, id, filename, table); err != nil {
			return nil, err
		}
		res.Message = NoTaxonomicColumns
		return res, nil
	}

	totalCells := table.NumRows() * len(res.Columns)
	if err := m.tracker.SetTotal(ctx, id, totalCells); err != nil {
		log.Warn("failed to record total", zap.Error(err))
	}

	res.looked = collectNames(table, res.Columns)
	res.Normalized = m.resolver.Resolve(ctx, res.looked, func(done, total int) {
		m.progress(ctx, id, stageProgress(PercentClassified, PercentResolved, done, total))
	})
	m.progress(ctx, id, PercentResolved)

	done, last := 0, PercentResolved
	for _, col := range res.Columns {
		rewriteColumn(table, col, res.Normalized, func() {
			done++
			if p := stageProgress(PercentResolved, PercentRewritten, done, totalCells); p > last {
				last = p
				m.progress(ctx, id, p)
			}
		})
		table = m.splitter.Split(table, col)
	}
	res.Table = table
	m.progress(ctx, id, PercentRewritten)

	if err := m.save(ctx, id, filename, table); err != nil {
		return nil, err
	}
	return res, nil
}

// withoutNames drops from list every name in skip. Misses are not cached, so
// warming a name the job just looked up would repeat the external call.
func withoutNames(list, skip []string) []string {
	if len(skip) == 0 {
		return list
	}
	drop := make(map[string]struct{}, len(skip))
	for _, n := range skip {
		drop[n] = struct{}{}
	}
	out := list[:0:0]
	for _, n := range list {
		if _, ok := drop[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func (m *Manager) save(ctx context.Context, id, filename string, t *models.Table) error {
	if err := m.sink.Save(ctx, filename, t); err != nil {
		return fmt.Errorf("failed to save output: %w", err)
	}
	m.progress(ctx, id, PercentPersisted)
	return nil
}

func (m *Manager) progress(ctx context.Context, id string, percent int) {
	if err := m.tracker.Progress(ctx, id, percent); err != nil {
		m.logger.Warn("failed to record progress", zap.String("job", logging.ShortID(id)), zap.Error(err))
	}
}

func (m *Manager) fail(ctx context.Context, id, message string) {
	if err := m.tracker.Fail(ctx, id, message); err != nil {
		m.logger.Warn("failed to record job failure", zap.String("job", logging.ShortID(id)), zap.Error(err))
	}
}
