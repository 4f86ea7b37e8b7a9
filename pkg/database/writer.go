// Package database archives generated attack events to PostgreSQL.
package database

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/models"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	batchSize     = 50
	batchInterval = 2 * time.Second
	queueSize     = 10000
)

// Schema creates the archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS attack_events (
	event_id       TEXT PRIMARY KEY,
	run_id         UUID,
	origin         TEXT NOT NULL,
	source_name    TEXT NOT NULL,
	source_lat     DOUBLE PRECISION NOT NULL,
	source_lon     DOUBLE PRECISION NOT NULL,
	source_country TEXT,
	target_name    TEXT NOT NULL,
	target_lat     DOUBLE PRECISION NOT NULL,
	target_lon     DOUBLE PRECISION NOT NULL,
	target_country TEXT,
	attack_type    TEXT NOT NULL,
	threat_level   TEXT NOT NULL,
	status         TEXT NOT NULL,
	cross_border   BOOLEAN NOT NULL,
	captured_at    TIMESTAMPTZ NOT NULL
)`

// Record is one archived event with the producer that created it.
type Record struct {
	Event  models.AttackEvent
	Origin string
}

// EventWriter handles batch writing of attack events to PostgreSQL.
type EventWriter struct {
	db     *sql.DB
	logger *zap.Logger
	queue  chan Record
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	flushInterval time.Duration

	running bool

	// Stats
	eventsWritten  atomic.Uint64
	eventsDropped  atomic.Uint64
	batchesWritten atomic.Uint64
}

// NewEventWriter connects to databaseURL and ensures the schema exists.
func NewEventWriter(databaseURL string, logger *zap.Logger) (*EventWriter, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL database")
	return newEventWriter(db, logger), nil
}

func newEventWriter(db *sql.DB, logger *zap.Logger) *EventWriter {
	return &EventWriter{
		db:            db,
		logger:        logger,
		queue:         make(chan Record, queueSize),
		done:          make(chan struct{}),
		flushInterval: batchInterval,
	}
}

// Start begins the background writer goroutine.
func (w *EventWriter) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.writerLoop()
	w.logger.Info("Database event writer started")
}

// Stop gracefully shuts down the writer, flushing remaining events.
func (w *EventWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	w.db.Close()
	w.logger.Info("Database event writer stopped",
		zap.Uint64("written", w.eventsWritten.Load()),
		zap.Uint64("dropped", w.eventsDropped.Load()),
		zap.Uint64("batches", w.batchesWritten.Load()))
}

// Write queues an event for batch writing. It never blocks.
func (w *EventWriter) Write(event models.AttackEvent, origin string) {
	select {
	case w.queue <- Record{Event: event, Origin: origin}:
	default:
		// Queue full, drop event
		dropped := w.eventsDropped.Add(1)
		if dropped%1000 == 1 {
			w.logger.Warn("Event queue full, dropping events", zap.Uint64("dropped", dropped))
		}
	}
}

// Stats returns writer statistics.
func (w *EventWriter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"events_written":  w.eventsWritten.Load(),
		"events_dropped":  w.eventsDropped.Load(),
		"batches_written": w.batchesWritten.Load(),
		"queue_len":       len(w.queue),
		"queue_cap":       cap(w.queue),
	}
}

func (w *EventWriter) writerLoop() {
	defer w.wg.Done()

	batch := make([]Record, 0, batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case record := <-w.queue:
			batch = append(batch, record)
			if len(batch) >= batchSize {
				w.writeBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.writeBatch(batch)
				batch = batch[:0]
			}

		case <-w.done:
			// Flush whatever is still queued
			for {
				select {
				case record := <-w.queue:
					batch = append(batch, record)
					if len(batch) >= batchSize {
						w.writeBatch(batch)
						batch = batch[:0]
					}
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				w.writeBatch(batch)
			}
			return
		}
	}
}

func (w *EventWriter) writeBatch(batch []Record) {
	if len(batch) == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		w.logger.Error("Failed to begin transaction", zap.Error(err))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertEvent)
	if err != nil {
		w.logger.Error("Failed to prepare insert", zap.Error(err))
		return
	}
	defer stmt.Close()

	written := 0
	for _, record := range batch {
		if _, err := stmt.Exec(insertArgs(record)...); err != nil {
			w.logger.Error("Failed to insert event", zap.String("id", record.Event.ID), zap.Error(err))
			return
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		w.logger.Error("Failed to commit batch", zap.Error(err))
		return
	}

	w.eventsWritten.Add(uint64(written))
	w.batchesWritten.Add(1)
}

const insertEvent = `
	INSERT INTO attack_events (
		event_id, run_id, origin,
		source_name, source_lat, source_lon, source_country,
		target_name, target_lat, target_lon, target_country,
		attack_type, threat_level, status, cross_border, captured_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (event_id) DO NOTHING`

func insertArgs(r Record) []interface{} {
	e := r.Event
	var runID interface{}
	if e.RunID != "" {
		runID = e.RunID
	}
	return []interface{}{
		e.ID, runID, r.Origin,
		e.Source.Name, e.Source.Lat, e.Source.Lon, e.Source.Country,
		e.Target.Name, e.Target.Lat, e.Target.Lon, e.Target.Country,
		string(e.AttackType), string(e.ThreatLevel), string(e.Status), e.CrossBorder, e.CapturedAt,
	}
}
