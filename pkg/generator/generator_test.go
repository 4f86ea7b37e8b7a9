package generator

import (
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/geo"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() Option {
	return WithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestGenerate_SourceDiffersFromTarget(t *testing.T) {
	g := New(nil, seeded())
	for i := 0; i < 10000; i++ {
		event := g.Generate()
		if event.Source.Name == event.Target.Name {
			t.Fatalf("event %s has source == target (%s)", event.ID, event.Source.Name)
		}
	}
}

func TestGenerate_TwoLocationCatalog(t *testing.T) {
	catalog, err := geo.NewCatalog([]geo.Location{
		{Name: "A", Weight: 99},
		{Name: "B", Weight: 1},
	})
	require.NoError(t, err)

	g := New(catalog, seeded())
	for i := 0; i < 500; i++ {
		event := g.Generate()
		assert.NotEqual(t, event.Source.Name, event.Target.Name)
	}
}

func TestGenerate_EnumMembership(t *testing.T) {
	g := New(nil, seeded())
	for i := 0; i < 5000; i++ {
		event := g.Generate()
		require.True(t, event.AttackType.Valid(), "attack type %q", event.AttackType)
		require.True(t, event.ThreatLevel.Valid(), "threat level %q", event.ThreatLevel)
		require.True(t, event.Status.Valid(), "status %q", event.Status)
	}
}

func TestGenerate_IDsAreMonotonic(t *testing.T) {
	g := New(nil, seeded())

	first := g.Generate()
	assert.Equal(t, "ATK-10001", first.ID)

	prev := 10001
	for i := 0; i < 100; i++ {
		n, err := strconv.Atoi(strings.TrimPrefix(g.Generate().ID, IDPrefix))
		require.NoError(t, err)
		assert.Equal(t, prev+1, n)
		prev = n
	}
	assert.Equal(t, uint64(101), g.Issued())
}

func TestGenerate_ConcurrentIDsAreUnique(t *testing.T) {
	g := New(nil)

	const workers, perWorker = 8, 250
	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- g.Generate().ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestGenerate_Timestamp(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	fixed := time.Date(2024, 3, 9, 7, 5, 4, 987654321, loc)

	g := New(nil, seeded(), WithClock(func() time.Time { return fixed }))
	event := g.Generate()

	assert.Equal(t, "2024-03-09 04:05:04 UTC", event.Timestamp)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} UTC$`), event.Timestamp)
	assert.True(t, event.CapturedAt.Equal(time.Date(2024, 3, 9, 4, 5, 4, 0, time.UTC)))
}

func TestGenerate_CopiesCoordinates(t *testing.T) {
	g := New(nil, seeded())
	hubs := make(map[string]geo.Location)
	for _, l := range geo.Default().Locations() {
		hubs[l.Name] = l
	}

	for i := 0; i < 200; i++ {
		event := g.Generate()
		src := hubs[event.Source.Name]
		dst := hubs[event.Target.Name]
		assert.Equal(t, src.Point(), event.Source)
		assert.Equal(t, dst.Point(), event.Target)
		assert.Equal(t, src.Country != dst.Country, event.CrossBorder)
	}
}

func TestGenerate_ThreatDistribution(t *testing.T) {
	g := New(nil, seeded())

	const draws = 100000
	counts := make(map[models.ThreatLevel]int)
	for i := 0; i < draws; i++ {
		counts[g.Generate().ThreatLevel]++
	}

	for _, w := range ThreatWeights {
		expected := w.Weight / 100
		observed := float64(counts[w.Value]) / draws
		tolerance := 5 * math.Sqrt(expected*(1-expected)/draws)
		assert.InDelta(t, expected, observed, tolerance, "frequency of %s", w.Value)
	}
}

func TestGenerate_StatusDistribution(t *testing.T) {
	g := New(nil, seeded())

	const draws = 100000
	counts := make(map[models.Status]int)
	for i := 0; i < draws; i++ {
		counts[g.Generate().Status]++
	}

	for _, w := range StatusWeights {
		expected := w.Weight / 100
		observed := float64(counts[w.Value]) / draws
		tolerance := 5 * math.Sqrt(expected*(1-expected)/draws)
		assert.InDelta(t, expected, observed, tolerance, "frequency of %s", w.Value)
	}
}

func TestGenerate_AttackTypesAllAppear(t *testing.T) {
	g := New(nil, seeded())
	seen := make(map[models.AttackType]bool)
	for i := 0; i < 1000; i++ {
		seen[g.Generate().AttackType] = true
	}
	assert.Len(t, seen, len(models.AttackTypes))
}
