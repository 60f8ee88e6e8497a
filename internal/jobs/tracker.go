// Package jobs tracks the lifecycle and progress of background pipeline runs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/taxonomix/backend/internal/logging"
	"github.com/taxonomix/backend/internal/models"
)

// ErrTerminal is returned for any transition after a job has finished.
var ErrTerminal = errors.New("job already finished")

// Tracker drives the pending -> processing -> done|error state machine on top
// of a Store. It is the single writer for the jobs it runs; percent never
// moves backwards and a job finishes exactly once.
type Tracker struct {
	store  Store
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*models.JobState
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		logger: logger.Named("tracker"),
		active: make(map[string]*models.JobState),
	}
}

// Create marks id as processing at 0%.
func (t *Tracker) Create(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := &models.JobState{ID: id, Status: models.JobStatusProcessing}
	if err := t.store.SetFields(ctx, id, map[string]string{
		FieldStatus:  string(models.JobStatusProcessing),
		FieldPercent: "0",
		FieldMessage: "",
		FieldTotal:   "0",
	}); err != nil {
		return fmt.Errorf("create job %s: %w", id, err)
	}
	t.active[id] = st
	t.logger.Debug("job created", zap.String("job", logging.ShortID(id)))
	return nil
}

// SetTotal records the number of work units of the job.
func (t *Tracker) SetTotal(ctx context.Context, id string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.state(ctx, id)
	if err != nil {
		return err
	}
	if err := t.store.SetFields(ctx, id, map[string]string{FieldTotal: strconv.Itoa(total)}); err != nil {
		return fmt.Errorf("set total for job %s: %w", id, err)
	}
	st.Total = total
	return nil
}

// Progress raises the job's percent. Values are clamped to [0,100] and
// anything not above the current percent is dropped.
func (t *Tracker) Progress(ctx context.Context, id string, percent int) error {
	percent = clamp(percent)

	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.state(ctx, id)
	if err != nil {
		return err
	}
	if percent <= st.Percent {
		return nil
	}
	if err := t.store.SetFields(ctx, id, map[string]string{FieldPercent: strconv.Itoa(percent)}); err != nil {
		return fmt.Errorf("set progress for job %s: %w", id, err)
	}
	st.Percent = percent
	return nil
}

// Complete finishes the job successfully at 100%.
func (t *Tracker) Complete(ctx context.Context, id, message string) error {
	return t.finish(ctx, id, models.JobStatusDone, message)
}

// Fail finishes the job with an error message. Percent is left as is.
func (t *Tracker) Fail(ctx context.Context, id, message string) error {
	return t.finish(ctx, id, models.JobStatusError, message)
}

func (t *Tracker) finish(ctx context.Context, id string, status models.JobStatus, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.state(ctx, id)
	if err != nil {
		return err
	}

	fields := map[string]string{
		FieldStatus:  string(status),
		FieldMessage: message,
	}
	if status == models.JobStatusDone {
		fields[FieldPercent] = "100"
	}
	if err := t.store.SetFields(ctx, id, fields); err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}

	st.Status = status
	delete(t.active, id)
	t.logger.Info("job finished",
		zap.String("job", logging.ShortID(id)),
		zap.String("status", string(status)),
		zap.String("message", message))
	return nil
}

// state returns the live state of id. A job this tracker is not running is
// loaded from the store; a finished one yields ErrTerminal. Caller holds t.mu.
func (t *Tracker) state(ctx context.Context, id string) (*models.JobState, error) {
	if st, ok := t.active[id]; ok {
		return st, nil
	}

	stored, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Status.Terminal() {
		return nil, ErrTerminal
	}
	if stored.Status != models.JobStatusProcessing {
		if err := t.store.SetFields(ctx, id, map[string]string{FieldStatus: string(models.JobStatusProcessing)}); err != nil {
			return nil, fmt.Errorf("start job %s: %w", id, err)
		}
		stored.Status = models.JobStatusProcessing
	}
	t.active[id] = &stored
	return &stored, nil
}

// State returns the full stored state of id.
func (t *Tracker) State(ctx context.Context, id string) (models.JobState, error) {
	return t.load(ctx, id)
}

// Status returns the poll payload for id. Unknown ids report pending at 0%.
func (t *Tracker) Status(ctx context.Context, id string) (models.Progress, error) {
	st, err := t.load(ctx, id)
	if err != nil {
		return models.Progress{}, err
	}
	return st.Progress(), nil
}

func (t *Tracker) load(ctx context.Context, id string) (models.JobState, error) {
	fields, err := t.store.GetFields(ctx, id)
	if err != nil {
		return models.JobState{}, fmt.Errorf("read job %s: %w", id, err)
	}
	return decodeState(id, fields), nil
}

func decodeState(id string, fields map[string]string) models.JobState {
	st := models.JobState{ID: id, Status: models.JobStatusPending}
	if s, ok := fields[FieldStatus]; ok && s != "" {
		st.Status = models.JobStatus(s)
	}
	st.Percent, _ = strconv.Atoi(fields[FieldPercent])
	st.Total, _ = strconv.Atoi(fields[FieldTotal])
	st.Message = fields[FieldMessage]
	return st
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
