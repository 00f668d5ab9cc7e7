// Package pipeline simulates the staged rights analysis of submitted assets.
//
// A Pipeline belongs to one session. All methods must be called on the scheduler
// thread (from a scheduled callback or through Scheduler.Do); the pipeline itself
// holds no locks.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/events"
	"github.com/kiranshivaraju/rightsdesk/internal/sched"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var (
	ErrValidation  = fmt.Errorf("asset intake: %w", models.ErrValidation)
	ErrConflict    = fmt.Errorf("analysis already running: %w", models.ErrConflict)
	ErrScheduling  = fmt.Errorf("analysis: %w", models.ErrScheduling)
	ErrRunNotFound = errors.New("run not found")
	ErrClosed      = errors.New("pipeline closed")
)

// MaxFilenameBytes bounds intake filenames.
const MaxFilenameBytes = 255

// Classifier assigns rights to an asset. It must be total.
type Classifier interface {
	Classify(in models.AssetIntake) models.Classification
}

// Library receives classified assets and knows the ones already completed.
type Library interface {
	Get(id uuid.UUID) (models.Asset, bool)
	Add(a models.Asset) error
}

type runState struct {
	run    models.Run
	asset  models.Asset
	ticker sched.Handle
	// keys are the asset ids this run occupies: its own and the one it supersedes.
	keys []uuid.UUID
}

// Pipeline runs at most one analysis per asset at a time.
type Pipeline struct {
	sessionID  uuid.UUID
	cfg        Config
	clock      sched.Scheduler
	group      *sched.Group
	classifier Classifier
	library    Library
	events     events.Publisher

	runs    map[uuid.UUID]*runState
	order   []uuid.UUID
	byAsset map[uuid.UUID]uuid.UUID
	assets  map[uuid.UUID]models.Asset
	closed  bool
}

func New(sessionID uuid.UUID, cfg Config, s sched.Scheduler, c Classifier, lib Library, pub events.Publisher) *Pipeline {
	return &Pipeline{
		sessionID:  sessionID,
		cfg:        cfg.withDefaults(),
		clock:      s,
		group:      sched.NewGroup(s),
		classifier: c,
		library:    lib,
		events:     pub,
		runs:       make(map[uuid.UUID]*runState),
		byAsset:    make(map[uuid.UUID]uuid.UUID),
		assets:     make(map[uuid.UUID]models.Asset),
	}
}

// Submit validates the intake and starts a run at progress 0.
//
// A zero AssetID creates a new asset. An AssetID whose previous analysis completed
// creates a new asset superseding it; a classified asset is never re-classified in place.
func (p *Pipeline) Submit(in models.AssetIntake) (models.Run, error) {
	if p.closed {
		return models.Run{}, ErrClosed
	}
	in.Filename = strings.TrimSpace(in.Filename)
	if err := validate(in); err != nil {
		return models.Run{}, err
	}

	if in.AssetID != uuid.Nil {
		if st, ok := p.latest(in.AssetID); ok && !st.run.Terminal() {
			return models.Run{}, fmt.Errorf("%w: asset %s (run %s)", ErrConflict, in.AssetID, st.run.ID)
		}
	}

	now := p.clock.Now()
	asset, keys := p.newAsset(in, now)
	run := models.Run{
		ID:        uuid.New(),
		SessionID: p.sessionID,
		AssetID:   asset.ID,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}

	runID := run.ID
	ticker, err := p.group.Every(p.cfg.TickInterval, func() { p.tick(runID) })
	if err != nil {
		return models.Run{}, fmt.Errorf("%w: %w", ErrScheduling, err)
	}

	st := &runState{run: run, asset: asset, ticker: ticker, keys: keys}
	p.runs[runID] = st
	p.order = append(p.order, runID)
	for _, k := range st.keys {
		p.byAsset[k] = runID
	}
	p.assets[asset.ID] = asset

	slog.Info("analysis started",
		"session_id", p.sessionID,
		"run_id", runID,
		"asset_id", asset.ID,
		"filename", asset.Filename,
	)
	p.publish(models.EventRunStarted, st, "")
	return st.run, nil
}

// newAsset builds the asset a submission analyses and the asset ids its run occupies.
// A named asset is resolved to the newest record in its supersede chain, so
// resubmitting an old id extends the chain instead of branching it.
func (p *Pipeline) newAsset(in models.AssetIntake, now time.Time) (models.Asset, []uuid.UUID) {
	asset := models.NewAsset(p.sessionID, in, now)
	if in.AssetID == uuid.Nil {
		return asset, []uuid.UUID{asset.ID}
	}

	prev, prevKeys, known := p.resolve(in.AssetID)
	switch {
	case !known:
		asset.ID = in.AssetID
	case prev.Classified():
		old := prev.ID
		asset.Supersedes = &old
	default:
		// an unfinished analysis of prev: take its place
		asset.ID = prev.ID
		asset.Supersedes = prev.Supersedes
	}

	keys := []uuid.UUID{asset.ID}
	for _, k := range append(prevKeys, in.AssetID) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return asset, keys
}

// resolve returns the newest asset recorded under id together with the ids its run
// occupies.
func (p *Pipeline) resolve(id uuid.UUID) (models.Asset, []uuid.UUID, bool) {
	if st, ok := p.latest(id); ok {
		return st.asset, st.keys, true
	}
	if a, ok := p.assets[id]; ok {
		return a, nil, true
	}
	if p.library != nil {
		if a, ok := p.library.Get(id); ok {
			return a, nil, true
		}
	}
	return models.Asset{}, nil, false
}

func (p *Pipeline) tick(runID uuid.UUID) {
	st, ok := p.runs[runID]
	if !ok || st.run.Status != models.RunStatusRunning {
		return
	}

	st.run.Progress += p.cfg.TickStep
	if st.run.Progress < 100 {
		p.publish(models.EventRunProgress, st, "")
		return
	}

	st.run.Progress = 100
	p.group.Cancel(st.ticker)
	p.publish(models.EventRunProgress, st, "")
	p.complete(st)
}

func (p *Pipeline) complete(st *runState) {
	now := p.clock.Now()
	c := p.classifier.Classify(st.asset.Intake())

	st.asset = st.asset.WithClassification(c, now)
	st.run.Status = models.RunStatusCompleted
	st.run.Classification = &c
	st.run.FinishedAt = &now
	p.assets[st.asset.ID] = st.asset

	if p.library != nil {
		if err := p.library.Add(st.asset); err != nil {
			slog.Error("analysis result rejected by library",
				"session_id", p.sessionID,
				"run_id", st.run.ID,
				"asset_id", st.asset.ID,
				"error", err,
			)
			p.publish(models.EventRunFailed, st, err.Error())
			return
		}
	}

	slog.Info("analysis completed",
		"session_id", p.sessionID,
		"run_id", st.run.ID,
		"asset_id", st.asset.ID,
		"rights_status", c.RightsStatus,
		"risk", c.Risk,
	)
	p.publish(models.EventRunCompleted, st, "")
}

// Cancel halts the latest run of an asset. Cancelling a terminal run is a no-op that
// returns the run unchanged.
func (p *Pipeline) Cancel(assetID uuid.UUID) (models.Run, error) {
	st, ok := p.latest(assetID)
	if !ok {
		return models.Run{}, fmt.Errorf("asset %s: %w", assetID, ErrRunNotFound)
	}
	return p.cancel(st), nil
}

// CancelRun halts a run by id; see Cancel.
func (p *Pipeline) CancelRun(runID uuid.UUID) (models.Run, error) {
	st, ok := p.runs[runID]
	if !ok {
		return models.Run{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return p.cancel(st), nil
}

func (p *Pipeline) cancel(st *runState) models.Run {
	if st.run.Terminal() {
		return st.run
	}

	p.group.Cancel(st.ticker)
	now := p.clock.Now()
	st.run.Status = models.RunStatusCancelled
	st.run.FinishedAt = &now

	slog.Info("analysis cancelled",
		"session_id", p.sessionID,
		"run_id", st.run.ID,
		"asset_id", st.asset.ID,
		"progress", st.run.Progress,
	)
	p.publish(models.EventRunCancelled, st, "")
	return st.run
}

// Run returns a snapshot of a run, terminal runs included.
func (p *Pipeline) Run(runID uuid.UUID) (models.Run, bool) {
	st, ok := p.runs[runID]
	if !ok {
		return models.Run{}, false
	}
	return st.run, true
}

// Runs returns every run in submission order.
func (p *Pipeline) Runs() []models.Run {
	out := make([]models.Run, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.runs[id].run)
	}
	return out
}

// Active returns the running runs in submission order.
func (p *Pipeline) Active() []models.Run {
	var out []models.Run
	for _, id := range p.order {
		if st := p.runs[id]; !st.run.Terminal() {
			out = append(out, st.run)
		}
	}
	return out
}

// Close cancels every running run and rejects later submissions.
func (p *Pipeline) Close() int {
	if p.closed {
		return 0
	}
	p.closed = true

	n := 0
	for _, id := range p.order {
		if st := p.runs[id]; !st.run.Terminal() {
			p.cancel(st)
			n++
		}
	}
	p.group.CancelAll()
	return n
}

func (p *Pipeline) latest(assetID uuid.UUID) (*runState, bool) {
	runID, ok := p.byAsset[assetID]
	if !ok {
		return nil, false
	}
	return p.runs[runID], true
}

func (p *Pipeline) publish(t models.EventType, st *runState, errMsg string) {
	if p.events == nil {
		return
	}
	run := st.run
	ev := models.Event{Type: t, At: p.clock.Now(), Run: &run, Error: errMsg}
	switch t {
	case models.EventRunStarted, models.EventRunCompleted, models.EventRunFailed:
		asset := st.asset
		ev.Asset = &asset
	}
	p.events.Publish(ev)
}
