package pipeline

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonomix/backend/internal/jobs"
	"github.com/taxonomix/backend/internal/models"
	"github.com/taxonomix/backend/internal/names"
	"github.com/taxonomix/backend/internal/testutil"
)

// percentRecorder remembers every percent written to the job store.
type percentRecorder struct {
	*jobs.MemoryStore
	mu       sync.Mutex
	percents []int
}

func (r *percentRecorder) SetFields(ctx context.Context, id string, fields map[string]string) error {
	if p, ok := fields[jobs.FieldPercent]; ok {
		n, _ := strconv.Atoi(p)
		r.mu.Lock()
		r.percents = append(r.percents, n)
		r.mu.Unlock()
	}
	return r.MemoryStore.SetFields(ctx, id, fields)
}

type fixture struct {
	manager *Manager
	tracker *jobs.Tracker
	store   *percentRecorder
	sink    *testutil.MockSink
	cache   *testutil.MockCache
	service *testutil.MockMatchService
	warmer  *names.Warmer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &percentRecorder{MemoryStore: jobs.NewMemoryStore()},
		sink:    testutil.NewMockSink(),
		cache:   testutil.NewMockCache(),
		service: testutil.NewMockMatchService(),
	}
	f.tracker = jobs.NewTracker(f.store, nil)
	resolver := names.NewResolver(f.cache, f.service, names.ResolverOptions{Workers: 2})
	f.warmer = names.NewWarmer(resolver, 2, nil)
	f.manager = NewManager(Options{
		Resolver: resolver,
		Warmer:   f.warmer,
		Tracker:  f.tracker,
		Sink:     f.sink,
	})
	return f
}

const occurrences = "gbifID,scientificName,vernacularName,countryCode\n" +
	"1,Canis lupus,wolf,US\n" +
	"2,Ursus arctos,bear,CA\n" +
	"3,Canis lupus,Canis lupus,NA\n"

func TestManager_RewritesCachedNames(t *testing.T) {
	f := newFixture(t)
	f.cache.Put("Canis lupus", models.NameMatch{
		Input:          "Canis lupus",
		ScientificName: "Canis lupus Linnaeus, 1758",
		MatchType:      models.MatchExact,
	})

	res, err := f.manager.Run(context.Background(), "job-1", "occurrences.csv", []byte(occurrences))
	require.NoError(t, err)
	f.warmer.Wait()

	assert.Equal(t, []string{"scientificName", "vernacularName"}, res.Columns)
	assert.Equal(t, models.NormalizationMap{"Canis lupus": "Canis lupus Linnaeus, 1758"}, res.Normalized)

	out := f.sink.Table("occurrences.csv")
	require.NotNil(t, out)
	assert.Equal(t, []string{
		"gbifID", "scientificName", "scientificName_authorship",
		"vernacularName", "vernacularName_authorship", "countryCode",
	}, out.Names())

	sci := out.Column("scientificName").Cells
	assert.Equal(t, models.StringCell("Canis lupus"), sci[0])
	assert.Equal(t, models.StringCell("Ursus arctos"), sci[1])
	assert.Equal(t, models.StringCell("Linnaeus, 1758"), out.Column("scientificName_authorship").Cells[0])
	assert.True(t, out.Column("scientificName_authorship").Cells[1].IsNull())

	// unrelated columns are untouched
	assert.Equal(t, models.StringCell("wolf"), out.Column("vernacularName").Cells[0])
	assert.True(t, out.Column("countryCode").Cells[2].IsNull())
	assert.Equal(t, models.StringCell("1"), out.Column("gbifID").Cells[0])

	p, err := f.tracker.Status(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.Progress{Status: models.JobStatusDone, Progress: 100}, p)
}

func TestManager_ProgressCheckpointsAreMonotonic(t *testing.T) {
	f := newFixture(t)
	f.service.WithMatch("Ursus arctos", "Ursus arctos Linnaeus, 1758", models.MatchExact)

	_, err := f.manager.Run(context.Background(), "job", "occurrences.csv", []byte(occurrences))
	require.NoError(t, err)
	f.warmer.Wait()

	seen := f.store.percents
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "percent went from %d to %d", seen[i-1], seen[i])
	}
	for _, checkpoint := range []int{0, PercentIngested, PercentClassified, PercentResolved, PercentRewritten, PercentPersisted, 100} {
		assert.Contains(t, seen, checkpoint)
	}
}

func TestManager_NoTaxonomicColumns(t *testing.T) {
	f := newFixture(t)
	input := "id,eventDate,count\n1,2021-01-01,3\n2,2021-01-02,4\n"

	res, err := f.manager.Run(context.Background(), "job", "counts.csv", []byte(input))
	require.NoError(t, err)

	assert.Empty(t, res.Columns)
	assert.Equal(t, NoTaxonomicColumns, res.Message)
	assert.Zero(t, f.service.TotalCalls())

	out := f.sink.Table("counts.csv")
	require.NotNil(t, out)
	assert.Equal(t, []string{"id", "eventDate", "count"}, out.Names())
	assert.Equal(t, models.StringCell("2021-01-02"), out.Column("eventDate").Cells[1])

	p, err := f.tracker.Status(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, models.Progress{Status: models.JobStatusDone, Progress: 100, Message: NoTaxonomicColumns}, p)
}

func TestManager_ParseFailureMarksJobError(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Run(context.Background(), "job", "empty.csv", []byte("   \n"))
	require.Error(t, err)

	p, err := f.tracker.Status(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, p.Status)
	assert.Equal(t, "no columns to parse from file", p.Message)
	assert.Zero(t, f.sink.Len())
}

func TestManager_SubmitRunsInBackground(t *testing.T) {
	f := newFixture(t)

	id := f.manager.Submit("occurrences.csv", []byte(occurrences))
	f.manager.Wait()
	f.warmer.Wait()

	assert.NotEmpty(t, id)
	p, err := f.tracker.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, p.Status)
	assert.NotNil(t, f.sink.Table("occurrences.csv"))
}

func TestManager_PanicBecomesJobError(t *testing.T) {
	f := newFixture(t)
	f.sink.Panic = true

	id := f.manager.Submit("occurrences.csv", []byte(occurrences))
	f.manager.Wait()

	p, err := f.tracker.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, p.Status)
	assert.Contains(t, p.Message, "processing panicked")
}

func TestManager_WarmsCacheAfterCompletion(t *testing.T) {
	f := newFixture(t)
	f.service.WithMatch("Ursus arctos", "Ursus arctos Linnaeus, 1758", models.MatchExact)

	_, err := f.manager.Run(context.Background(), "job", "occurrences.csv", []byte(occurrences))
	require.NoError(t, err)
	f.warmer.Wait()

	ok, err := f.cache.Has(context.Background(), "Ursus arctos")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.service.Calls("Ursus arctos"))
	// names looked up during the job are not warmed again
	assert.Equal(t, 1, f.service.Calls("wolf"))
	assert.Equal(t, 1, f.service.Calls("bear"))
}

func TestWithoutNames(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, withoutNames([]string{"a", "b", "c"}, []string{"b", "d"}))
	assert.Equal(t, []string{"a"}, withoutNames([]string{"a"}, nil))
	assert.Empty(t, withoutNames([]string{"a"}, []string{"a"}))
}

const speciesKeys = "scientificName,speciesKey,countryCode\n" +
	"Panthera leo,5219404.0,KE\n" +
	"Canis lupus,5219173.0,US\n"

func TestManager_IntegralFloatKeysKeepColumns(t *testing.T) {
	f := newFixture(t)

	res, err := f.manager.Run(context.Background(), "job", "keys.csv", []byte(speciesKeys))
	require.NoError(t, err)
	f.warmer.Wait()

	assert.Equal(t, ',', res.Delimiter)
	assert.Equal(t, []string{"scientificName"}, res.Columns)

	out := f.sink.Table("keys.csv")
	require.NotNil(t, out)
	require.NotNil(t, out.Column("speciesKey"))
	require.NotNil(t, out.Column("countryCode"))
	assert.Equal(t, models.IntCell(5219404), out.Column("speciesKey").Cells[0])
	assert.Equal(t, models.IntCell(5219173), out.Column("speciesKey").Cells[1])

	p, err := f.tracker.Status(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, p.Status)
}

func TestManager_InvalidIntegerKeyFailsJob(t *testing.T) {
	f := newFixture(t)
	input := "scientificName,speciesKey,countryCode\nPanthera leo,abc,KE\n"

	_, err := f.manager.Run(context.Background(), "job", "keys.csv", []byte(input))
	require.Error(t, err)

	p, err := f.tracker.Status(context.Background(), "job")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, p.Status)
	assert.Contains(t, p.Message, "abc")
	assert.Equal(t, 0, f.sink.Len())
	assert.Zero(t, f.service.TotalCalls())
}

func TestStageProgress(t *testing.T) {
	assert.Equal(t, 25, stageProgress(25, 60, 0, 10))
	assert.Equal(t, 42, stageProgress(25, 60, 5, 10))
	assert.Equal(t, 60, stageProgress(25, 60, 10, 10))
	assert.Equal(t, 60, stageProgress(25, 60, 12, 10))
	assert.Equal(t, 60, stageProgress(25, 60, 0, 0))
}
