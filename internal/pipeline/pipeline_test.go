package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/library"
	"github.com/kiranshivaraju/rightsdesk/internal/rights"
	"github.com/kiranshivaraju/rightsdesk/internal/sched"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

const tick = 200 * time.Millisecond

type eventLog struct {
	events []models.Event
}

func (l *eventLog) Publish(ev models.Event) models.Event {
	ev.Seq = uint64(len(l.events) + 1)
	l.events = append(l.events, ev)
	return ev
}

func (l *eventLog) ofRun(runID uuid.UUID) []models.Event {
	var out []models.Event
	for _, ev := range l.events {
		if ev.Run != nil && ev.Run.ID == runID {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) progress(runID uuid.UUID) []int {
	var out []int
	for _, ev := range l.ofRun(runID) {
		if ev.Type == models.EventRunProgress {
			out = append(out, ev.Run.Progress)
		}
	}
	return out
}

func (l *eventLog) types(runID uuid.UUID) []models.EventType {
	var out []models.EventType
	for _, ev := range l.ofRun(runID) {
		out = append(out, ev.Type)
	}
	return out
}

type rejectingLibrary struct {
	*library.Library
}

func (rejectingLibrary) Add(models.Asset) error { return errors.New("library is read-only") }

type fixture struct {
	clock *sched.Virtual
	log   *eventLog
	lib   *library.Library
	p     *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	sid := uuid.New()
	clock := sched.NewVirtual(epoch)
	classifier := rights.NewClassifier(cat.Registry(), rights.DefaultReviewWindow, clock.Now)
	lib := library.New(cat.SeedAssets(sid, epoch, classifier)...)
	log := &eventLog{}
	p := New(sid, DefaultConfig(), clock, classifier, lib, log)
	return &fixture{clock: clock, log: log, lib: lib, p: p}
}

func TestSubmit_RunsToCompletion(t *testing.T) {
	f := newFixture(t)

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3", Artist: "Unknown", Duration: "2:10"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, 0, run.Progress)

	f.clock.Advance(10 * tick)

	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, f.log.progress(run.ID))
	types := f.log.types(run.ID)
	assert.Equal(t, models.EventRunStarted, types[0])
	assert.Equal(t, models.EventRunCompleted, types[len(types)-1])

	final, ok := f.p.Run(run.ID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.Classification)
	assert.NotEqual(t, models.RightsUnknown, final.Classification.RightsStatus)
	require.NotNil(t, final.FinishedAt)
	assert.Equal(t, epoch.Add(10*tick), *final.FinishedAt)

	last := f.log.events[len(f.log.events)-1]
	require.NotNil(t, last.Asset)
	assert.True(t, last.Asset.Classified())

	stored, ok := f.lib.Get(run.AssetID)
	require.True(t, ok)
	assert.Equal(t, final.Classification.RightsStatus, stored.RightsStatus)
	assert.Empty(t, f.p.Active())
	assert.Equal(t, 0, f.clock.Pending())
}

func TestSubmit_ClassifiesThroughRegistry(t *testing.T) {
	f := newFixture(t)

	run, err := f.p.Submit(models.AssetIntake{Filename: "brand_jingle_v2.wav", Artist: "Studio"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	final, _ := f.p.Run(run.ID)
	require.NotNil(t, final.Classification)
	assert.Equal(t, models.RightsOwned, final.Classification.RightsStatus)
	assert.Equal(t, models.RiskNone, final.Classification.Risk)
}

func TestProgress_IsMonotonicAndReaches100Once(t *testing.T) {
	f := newFixture(t)
	f.p = New(f.p.sessionID, Config{TickStep: 30, TickInterval: tick}, f.clock, f.p.classifier, f.lib, f.log)

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	got := f.log.progress(run.ID)
	assert.Equal(t, []int{30, 60, 90, 100}, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
}

func TestSubmit_ConflictWhileRunning(t *testing.T) {
	f := newFixture(t)
	assetID := uuid.New()

	first, err := f.p.Submit(models.AssetIntake{AssetID: assetID, Filename: "a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, assetID, first.AssetID)
	f.clock.Advance(3 * tick)

	_, err = f.p.Submit(models.AssetIntake{AssetID: assetID, Filename: "a.mp3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, models.ErrConflict)

	f.clock.Advance(7 * tick)
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, f.log.progress(first.ID))
	assert.Len(t, f.p.Runs(), 1)
}

func TestSubmit_DistinctAssetsRunConcurrently(t *testing.T) {
	f := newFixture(t)

	a, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	b, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	assert.NotEqual(t, a.AssetID, b.AssetID)
	assert.Len(t, f.p.Active(), 2)
}

func TestCancel_AtForty(t *testing.T) {
	f := newFixture(t)

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(4 * tick)
	require.Equal(t, []int{10, 20, 30, 40}, f.log.progress(run.ID))

	cancelled, err := f.p.CancelRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, cancelled.Status)
	assert.Equal(t, 40, cancelled.Progress)
	assert.Nil(t, cancelled.Classification)

	f.clock.Advance(time.Minute)

	assert.Equal(t, []int{10, 20, 30, 40}, f.log.progress(run.ID))
	types := f.log.types(run.ID)
	assert.Equal(t, models.EventRunCancelled, types[len(types)-1])
	assert.NotContains(t, types, models.EventRunCompleted)
	_, inLibrary := f.lib.Get(run.AssetID)
	assert.False(t, inLibrary)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestCancel_IsIdempotent(t *testing.T) {
	f := newFixture(t)

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(2 * tick)

	first, err := f.p.Cancel(run.AssetID)
	require.NoError(t, err)
	before := len(f.log.events)

	second, err := f.p.Cancel(run.AssetID)
	require.NoError(t, err)
	third, err := f.p.CancelRun(run.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Len(t, f.log.events, before)
}

func TestCancel_CompletedRunIsNoop(t *testing.T) {
	f := newFixture(t)

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	got, err := f.p.CancelRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
}

func TestCancel_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.CancelRun(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = f.p.Cancel(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSubmit_AfterCancelReusesAsset(t *testing.T) {
	f := newFixture(t)
	assetID := uuid.New()

	first, err := f.p.Submit(models.AssetIntake{AssetID: assetID, Filename: "a.mp3"})
	require.NoError(t, err)
	_, err = f.p.CancelRun(first.ID)
	require.NoError(t, err)

	second, err := f.p.Submit(models.AssetIntake{AssetID: assetID, Filename: "a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, assetID, second.AssetID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmit_ReanalysisSupersedes(t *testing.T) {
	f := newFixture(t)

	first, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)
	original, ok := f.lib.Get(first.AssetID)
	require.True(t, ok)

	second, err := f.p.Submit(models.AssetIntake{AssetID: first.AssetID, Filename: "a.mp3"})
	require.NoError(t, err)
	assert.NotEqual(t, first.AssetID, second.AssetID)

	_, err = f.p.Submit(models.AssetIntake{AssetID: first.AssetID, Filename: "a.mp3"})
	assert.ErrorIs(t, err, ErrConflict)

	f.clock.Advance(10 * tick)

	replacement, ok := f.lib.Get(second.AssetID)
	require.True(t, ok)
	require.NotNil(t, replacement.Supersedes)
	assert.Equal(t, first.AssetID, *replacement.Supersedes)

	unchanged, ok := f.lib.Get(first.AssetID)
	require.True(t, ok)
	assert.Equal(t, original, unchanged)
}

func TestSubmit_ResubmittingOldIDExtendsChain(t *testing.T) {
	f := newFixture(t)

	a, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	b, err := f.p.Submit(models.AssetIntake{AssetID: a.AssetID, Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	c, err := f.p.Submit(models.AssetIntake{AssetID: a.AssetID, Filename: "a.mp3"})
	require.NoError(t, err)

	// the running analysis of c occupies every id in the chain
	for _, id := range []uuid.UUID{a.AssetID, b.AssetID, c.AssetID} {
		_, err = f.p.Submit(models.AssetIntake{AssetID: id, Filename: "a.mp3"})
		assert.ErrorIs(t, err, ErrConflict)
	}
	f.clock.Advance(10 * tick)

	latest, ok := f.lib.Get(c.AssetID)
	require.True(t, ok)
	require.NotNil(t, latest.Supersedes)
	assert.Equal(t, b.AssetID, *latest.Supersedes)

	d, err := f.p.Submit(models.AssetIntake{AssetID: b.AssetID, Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)
	newest, ok := f.lib.Get(d.AssetID)
	require.True(t, ok)
	assert.Equal(t, c.AssetID, *newest.Supersedes)
}

func TestSubmit_CancelledReanalysisIsRetriedInPlace(t *testing.T) {
	f := newFixture(t)

	a, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	b, err := f.p.Submit(models.AssetIntake{AssetID: a.AssetID, Filename: "a.mp3"})
	require.NoError(t, err)
	_, err = f.p.CancelRun(b.ID)
	require.NoError(t, err)

	retry, err := f.p.Submit(models.AssetIntake{AssetID: a.AssetID, Filename: "a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, b.AssetID, retry.AssetID)
	f.clock.Advance(10 * tick)

	got, ok := f.lib.Get(b.AssetID)
	require.True(t, ok)
	require.NotNil(t, got.Supersedes)
	assert.Equal(t, a.AssetID, *got.Supersedes)
}

func TestSubmit_ReanalysisOfSeedAsset(t *testing.T) {
	f := newFixture(t)
	seed := f.lib.List()[0]

	run, err := f.p.Submit(models.AssetIntake{AssetID: seed.ID, Filename: seed.Filename, Artist: seed.Artist})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	a, ok := f.lib.Get(run.AssetID)
	require.True(t, ok)
	require.NotNil(t, a.Supersedes)
	assert.Equal(t, seed.ID, *a.Supersedes)
}

func TestSubmit_Validation(t *testing.T) {
	long := make([]byte, MaxFilenameBytes+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name string
		in   models.AssetIntake
	}{
		{"empty filename", models.AssetIntake{}},
		{"whitespace filename", models.AssetIntake{Filename: "  \t "}},
		{"filename too long", models.AssetIntake{Filename: string(long)}},
		{"not audio", models.AssetIntake{Filename: "a.pdf", MimeHint: "application/pdf"}},
		{"malformed mime", models.AssetIntake{Filename: "a.mp3", MimeHint: "audio/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.p.Submit(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Empty(t, f.log.events)
			assert.Empty(t, f.p.Runs())
			assert.Equal(t, 0, f.clock.Pending())
		})
	}
}

func TestSubmit_AcceptsAudioMimeWithParams(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.Submit(models.AssetIntake{Filename: "a.wav", MimeHint: "Audio/WAV; codecs=1"})
	assert.NoError(t, err)
}

func TestSubmit_SchedulingFailureLeavesNoRun(t *testing.T) {
	f := newFixture(t)
	f.clock.Fail(errors.New("clock stopped"))

	_, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScheduling)
	assert.ErrorIs(t, err, sched.ErrUnavailable)
	assert.Empty(t, f.p.Runs())
	assert.Empty(t, f.log.events)
}

func TestComplete_LibraryRejectionEmitsFailure(t *testing.T) {
	f := newFixture(t)
	f.p.library = rejectingLibrary{library.New()}

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)

	last := f.log.events[len(f.log.events)-1]
	assert.Equal(t, models.EventRunFailed, last.Type)
	assert.Contains(t, last.Error, "read-only")
	assert.NotContains(t, f.log.types(run.ID), models.EventRunCompleted)

	final, _ := f.p.Run(run.ID)
	assert.True(t, final.Terminal())
}

func TestClose_CancelsRunningAndRejectsSubmit(t *testing.T) {
	f := newFixture(t)

	a, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	_, err = f.p.Submit(models.AssetIntake{Filename: "b.mp3"})
	require.NoError(t, err)
	f.clock.Advance(10 * tick)
	c, err := f.p.Submit(models.AssetIntake{Filename: "c.mp3"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.p.Close())
	assert.Equal(t, 0, f.p.Close())
	assert.Equal(t, 0, f.clock.Pending())

	got, _ := f.p.Run(c.ID)
	assert.True(t, got.Cancelled())
	got, _ = f.p.Run(a.ID)
	assert.Equal(t, models.RunStatusCompleted, got.Status)

	_, err = f.p.Submit(models.AssetIntake{Filename: "d.mp3"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEvents_CarryPayloads(t *testing.T) {
	f := newFixture(t)

	run, err := f.p.Submit(models.AssetIntake{Filename: "a.mp3"})
	require.NoError(t, err)
	f.clock.Advance(tick)

	evs := f.log.ofRun(run.ID)
	require.Len(t, evs, 2)
	require.NotNil(t, evs[0].Asset)
	assert.Equal(t, models.RightsUnknown, evs[0].Asset.RightsStatus)
	assert.Equal(t, models.RiskUnset, evs[0].Asset.Risk)
	assert.Nil(t, evs[1].Asset)
	assert.Equal(t, epoch.Add(tick), evs[1].At)
}
