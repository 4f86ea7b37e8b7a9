// Package session holds the live state of one simulation run: the event
// buffer and the selected event.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/hervehildenbrand/attack-radar/pkg/buffer"
	"github.com/hervehildenbrand/attack-radar/pkg/generator"
	"github.com/hervehildenbrand/attack-radar/pkg/metrics"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"go.uber.org/zap"
)

const notifyQueueSize = 1024

// ErrEventNotFound is returned when selecting an id that is not buffered.
var ErrEventNotFound = errors.New("event not found in buffer")

// Run identifies one simulation run. Producers hold it and every mutation
// they request is rejected once the run has ended.
type Run struct {
	ID    uuid.UUID
	epoch uint64
}

// State is a consistent read of the session. Seq is the sequence of the
// last notification whose change State already reflects.
type State struct {
	Seq      uint64
	RunID    string
	Active   bool
	Capacity int
	Events   []models.AttackEvent
	Selected *models.AttackEvent
}

// Session owns the buffer and the selection. All mutations run under one
// lock, so an insert, its eviction and any selection change are atomic
// with respect to the other producer and to readers.
type Session struct {
	gen     *generator.Generator
	logger  *zap.Logger
	metrics *metrics.Metrics
	notify  chan models.Notification

	mu       sync.Mutex
	buf      *buffer.Buffer
	selected *models.AttackEvent
	runID    uuid.UUID
	epoch    uint64
	active   bool
	closed   bool
	seq      uint64
	dropped  uint64
}

// New creates an inactive session with an empty buffer of the given capacity.
func New(gen *generator.Generator, capacity int, logger *zap.Logger, m *metrics.Metrics) *Session {
	return &Session{
		gen:     gen,
		logger:  logger,
		metrics: m,
		notify:  make(chan models.Notification, notifyQueueSize),
		buf:     buffer.New(capacity),
	}
}

// Notifications returns the channel of state changes. It is closed by Close.
func (s *Session) Notifications() <-chan models.Notification {
	return s.notify
}

// Begin starts a new run. The buffer and selection are cleared; event ids
// keep counting from where the previous run stopped.
func (s *Session) Begin() Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.runID = uuid.New()
	s.active = true
	s.buf.Reset()
	s.selected = nil
	s.metrics.SetBufferDepth(0)

	s.emitLocked(models.Notification{Kind: models.NotifyReset, RunID: s.runID.String()})
	s.logger.Info("Run started", zap.String("run_id", s.runID.String()))
	return Run{ID: s.runID, epoch: s.epoch}
}

// End finishes run. It reports false if run was already stale.
// Buffered events stay readable until the next Begin.
func (s *Session) End(run Run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(run) {
		return false
	}
	s.epoch++
	s.active = false
	s.logger.Info("Run ended", zap.String("run_id", run.ID.String()))
	return true
}

// Seed generates n events and installs them as one batch.
func (s *Session) Seed(run Run, n int) ([]models.AttackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(run) {
		return nil, false
	}
	batch := make([]models.AttackEvent, n)
	for i := range batch {
		batch[i] = s.generateLocked()
	}
	evicted := s.buf.Insert(batch...)
	s.recordInsertLocked(models.OriginSeed, len(batch), evicted)

	for i, e := range batch {
		note := models.Notification{Kind: models.NotifyInserted, Origin: models.OriginSeed, RunID: e.RunID, Event: e}
		if i == len(batch)-1 {
			note.Evicted = evicted
		}
		s.emitLocked(note)
	}
	return batch, true
}

// Spawn generates one event and appends it to the buffer.
func (s *Session) Spawn(run Run) (models.AttackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(run) {
		return models.AttackEvent{}, false
	}
	return s.insertLocked(models.OriginScheduler), true
}

// SpawnSelected generates one event, appends it and makes it the selected
// event, replacing any previous selection.
func (s *Session) SpawnSelected(run Run) (models.AttackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentLocked(run) {
		return models.AttackEvent{}, false
	}
	event := s.insertLocked(models.OriginAnomaly)
	s.selectLocked(event, models.OriginAnomaly)
	return event, true
}

// Select makes event the selected event. The event need not be buffered.
func (s *Session) Select(event models.AttackEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(event, models.OriginUser)
}

// SelectByID selects the buffered event with the given id.
func (s *Session) SelectByID(id string) (models.AttackEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.buf.Find(id)
	if !ok {
		return models.AttackEvent{}, ErrEventNotFound
	}
	s.selectLocked(event, models.OriginUser)
	return event, nil
}

// ClearSelection dismisses the selected event. Clearing an empty selection
// is a no-op.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return
	}
	s.selected = nil
	s.emitLocked(models.Notification{Kind: models.NotifyCleared, Origin: models.OriginUser, RunID: s.runIDLocked()})
}

// Selected returns the selected event, if any.
func (s *Session) Selected() (models.AttackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return models.AttackEvent{}, false
	}
	return *s.selected, true
}

// Snapshot returns the buffered events, oldest first.
func (s *Session) Snapshot() []models.AttackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Snapshot()
}

// State returns buffer, selection and run status under a single lock.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Seq:      s.seq,
		RunID:    s.runIDLocked(),
		Active:   s.active,
		Capacity: s.buf.Cap(),
		Events:   s.buf.Snapshot(),
	}
	if s.selected != nil {
		selected := *s.selected
		st.Selected = &selected
	}
	return st
}

// Len returns the number of buffered events.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Active reports whether a run is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close closes the notification channel. Later mutations are still applied
// but no longer announced.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.notify)
}

func (s *Session) currentLocked(run Run) bool {
	return s.active && run.epoch == s.epoch
}

func (s *Session) runIDLocked() string {
	if s.runID == uuid.Nil {
		return ""
	}
	return s.runID.String()
}

func (s *Session) generateLocked() models.AttackEvent {
	event := s.gen.Generate()
	event.RunID = s.runID.String()
	return event
}

func (s *Session) insertLocked(origin string) models.AttackEvent {
	event := s.generateLocked()
	evicted := s.buf.Insert(event)
	s.recordInsertLocked(origin, 1, evicted)
	s.emitLocked(models.Notification{
		Kind:    models.NotifyInserted,
		Origin:  origin,
		RunID:   event.RunID,
		Event:   event,
		Evicted: evicted,
	})
	return event
}

func (s *Session) recordInsertLocked(origin string, n int, evicted []models.AttackEvent) {
	for i := 0; i < n; i++ {
		s.metrics.EventSpawned(origin)
	}
	s.metrics.EventsEvicted(len(evicted))
	s.metrics.SetBufferDepth(s.buf.Len())
}

func (s *Session) selectLocked(event models.AttackEvent, origin string) {
	s.selected = &event
	s.emitLocked(models.Notification{
		Kind:   models.NotifySelected,
		Origin: origin,
		RunID:  s.runIDLocked(),
		Event:  event,
	})
}

// emitLocked stamps n with the next sequence and the current buffer length,
// then queues it. It never blocks: a slow consumer loses notifications, not
// the producers' cadence.
func (s *Session) emitLocked(n models.Notification) {
	s.seq++
	n.Seq = s.seq
	n.Count = s.buf.Len()
	if s.closed {
		return
	}
	select {
	case s.notify <- n:
	default:
		s.dropped++
		s.metrics.NotificationDropped()
		if s.dropped%100 == 1 {
			s.logger.Warn("Notification queue full, dropping", zap.Uint64("dropped", s.dropped))
		}
	}
}
