package xact

// Rand is the random source cues draw from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// chooseWeighted draws an index with probability weights[i]/sum(weights).
// Candidates are walked from last to first against the remaining mass;
// the order matters at the boundaries and fixed seeds rely on it.
func chooseWeighted(rng Rand, weights []float64) int {
	if len(weights) <= 1 {
		return 0
	}
	var mass float64
	for _, w := range weights {
		mass += w
	}
	u := rng.Float64() * mass
	remaining := mass
	for i := len(weights) - 1; i >= 0; i-- {
		remaining -= weights[i]
		if u > remaining {
			return i
		}
	}
	return 0
}

// uniform draws from [lo, hi).
func uniform(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
