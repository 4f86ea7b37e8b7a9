// Package generator produces synthetic attack events.
package generator

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/geo"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
)

const (
	// IDPrefix starts every event id.
	IDPrefix = "ATK-"
	// IDOffset is reserved for pre-seeded or externally issued ids.
	// The first generated id is IDOffset+1.
	IDOffset = 10000
)

// ThreatWeights is the sampling table for threat levels.
var ThreatWeights = []geo.Weighted[models.ThreatLevel]{
	{Value: models.ThreatLow, Weight: 30},
	{Value: models.ThreatMedium, Weight: 35},
	{Value: models.ThreatHigh, Weight: 25},
	{Value: models.ThreatCritical, Weight: 10},
}

// StatusWeights is the sampling table for statuses.
var StatusWeights = []geo.Weighted[models.Status]{
	{Value: models.StatusActive, Weight: 50},
	{Value: models.StatusDetected, Weight: 30},
	{Value: models.StatusMitigated, Weight: 20},
}

// Generator creates attack events. It is safe for concurrent use.
type Generator struct {
	catalog *geo.Catalog
	now     func() time.Time

	mu  sync.Mutex
	rng geo.Rand

	counter atomic.Uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source. Tests use a seeded PCG.
func WithRand(rng geo.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock sets the capture time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a generator over catalog. A nil catalog selects geo.Default().
func New(catalog *geo.Catalog, opts ...Option) *Generator {
	if catalog == nil {
		catalog = geo.Default()
	}
	g := &Generator{
		catalog: catalog,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	g.counter.Store(IDOffset)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new event with a fresh id.
//
// Source and target are drawn from the catalog and the target is redrawn
// until it differs from the source. Catalogs always hold two or more
// locations, which keeps the loop finite.
func (g *Generator) Generate() models.AttackEvent {
	g.mu.Lock()
	source := g.catalog.PickWeighted(g.rng)
	target := g.catalog.PickWeighted(g.rng)
	for target.Name == source.Name {
		target = g.catalog.PickWeighted(g.rng)
	}
	attackType := models.AttackTypes[g.rng.IntN(len(models.AttackTypes))]
	threat := geo.PickTable(g.rng, ThreatWeights)
	status := geo.PickTable(g.rng, StatusWeights)
	g.mu.Unlock()

	n := g.counter.Add(1)
	captured := g.now().UTC().Truncate(time.Second)

	return models.AttackEvent{
		ID:          IDPrefix + strconv.FormatUint(n, 10),
		Source:      source.Point(),
		Target:      target.Point(),
		AttackType:  attackType,
		ThreatLevel: threat,
		Timestamp:   models.FormatTimestamp(captured),
		Status:      status,
		CrossBorder: source.Country != target.Country,
		CapturedAt:  captured,
	}
}

// Issued returns how many events have been generated.
func (g *Generator) Issued() uint64 {
	return g.counter.Load() - IDOffset
}
