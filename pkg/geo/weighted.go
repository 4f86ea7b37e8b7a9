// Package geo provides the weighted location catalog used to place
// simulated attacks.
package geo

// Rand is the subset of *rand.Rand (math/rand/v2) used for sampling.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Pick selects one item with probability proportional to weightOf(item).
//
// It draws r in [0, total) and subtracts weights in table order until r
// drops to zero or below. The last item is returned if float rounding
// leaves r positive after the final subtraction. items must be non-empty.
func Pick[T any](rng Rand, items []T, weightOf func(T) float64) T {
	var total float64
	for _, item := range items {
		total += weightOf(item)
	}

	r := rng.Float64() * total
	for _, item := range items {
		r -= weightOf(item)
		if r <= 0 {
			return item
		}
	}
	return items[len(items)-1]
}

// Weighted is a label with a sampling weight.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// PickTable selects a value from a labeled weight table.
func PickTable[T any](rng Rand, table []Weighted[T]) T {
	return Pick(rng, table, func(w Weighted[T]) float64 { return w.Weight }).Value
}
