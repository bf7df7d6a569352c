package timing

import (
	"math"
	"math/rand"
)

// State names one step of an intra-session Markov chain.
type State string

const (
	StateLand         State = "land"
	StateSkim         State = "skim"
	StateRead         State = "read"
	StateFollowLink   State = "follow_link"
	StateSearchRefine State = "search_refine"
	StateAdGlance     State = "ad_glance"
	StateIdle         State = "idle"
	StateLeave        State = "leave"
)

// durationRange is the (min,max) dwell bound for a state, in seconds.
type durationRange struct {
	min, max float64
}

// stateDwellRanges bounds dwell time per state before distribution shaping
// is applied. read/skim use a log-normal median+sigma instead of a bare
// range; the rest use the Beta(2,5) clustering described in SPEC_FULL.md.
var stateDwellRanges = map[State]durationRange{
	StateLand:         {2, 8},
	StateFollowLink:   {1, 5},
	StateSearchRefine: {3, 15},
	StateAdGlance:     {1, 4},
	StateIdle:         {5, 60},
}

// logNormalDwell holds the (median, sigma) for states whose dwell time
// spec.md specifies directly.
var logNormalDwell = map[State]struct{ medianSec, sigma float64 }{
	StateRead: {45, 0.6},
	StateSkim: {12, 0.5},
}

// baseTransitions is the static transition matrix: from-state -> to-state
// -> probability mass, before the fatigue adjustment is folded in.
var baseTransitions = map[State]map[State]float64{
	StateLand: {
		StateSkim: 0.45, StateRead: 0.25, StateFollowLink: 0.15,
		StateSearchRefine: 0.05, StateLeave: 0.10,
	},
	StateSkim: {
		StateRead: 0.35, StateFollowLink: 0.25, StateSearchRefine: 0.10,
		StateAdGlance: 0.05, StateIdle: 0.05, StateLeave: 0.20,
	},
	StateRead: {
		StateSkim: 0.20, StateFollowLink: 0.25, StateSearchRefine: 0.10,
		StateAdGlance: 0.05, StateIdle: 0.10, StateLeave: 0.30,
	},
	StateFollowLink: {
		StateSkim: 0.30, StateRead: 0.30, StateFollowLink: 0.10,
		StateSearchRefine: 0.05, StateAdGlance: 0.05, StateLeave: 0.20,
	},
	StateSearchRefine: {
		StateSkim: 0.40, StateRead: 0.20, StateFollowLink: 0.15,
		StateSearchRefine: 0.10, StateLeave: 0.15,
	},
	StateAdGlance: {
		StateSkim: 0.40, StateRead: 0.20, StateFollowLink: 0.15,
		StateIdle: 0.05, StateLeave: 0.20,
	},
	StateIdle: {
		StateSkim: 0.30, StateRead: 0.20, StateSearchRefine: 0.10,
		StateLeave: 0.40,
	},
}

// maxFatigue caps how much the leave probability can grow with session
// length; mirrors the add-on's per-step fatigue accrual.
const maxFatigue = 0.4

// fatiguePerStep is how much fatigue accrues per Markov step taken.
const fatiguePerStep = 0.03

// Chain drives one session's sequence of intra-session states. A Chain is
// single-session, single-goroutine: callers create one per session and
// discard it when the session ends.
type Chain struct {
	rng   *rand.Rand
	state State
	steps int
}

// NewChain starts a fresh chain in the landing state, seeded from seed so
// replay/debugging is reproducible per session.
func NewChain(seed int64) *Chain {
	return &Chain{rng: rand.New(rand.NewSource(seed)), state: StateLand}
}

// Current returns the chain's current state.
func (c *Chain) Current() State { return c.state }

// Steps returns how many transitions the chain has made so far.
func (c *Chain) Steps() int { return c.steps }

// Done reports whether the chain has reached the absorbing leave state.
func (c *Chain) Done() bool { return c.state == StateLeave }

// Step advances the chain one transition, folding in the fatigue term, and
// returns the new state.
func (c *Chain) Step() State {
	if c.Done() {
		return c.state
	}
	row := baseTransitions[c.state]
	fatigue := math.Min(maxFatigue, float64(c.steps)*fatiguePerStep)

	// Fixed iteration order so a seeded chain walks the same path every run.
	order := []State{StateLand, StateSkim, StateRead, StateFollowLink, StateSearchRefine, StateAdGlance, StateIdle, StateLeave}
	weights := make(map[State]float64, len(row)+1)
	var total float64
	for _, to := range order {
		p, ok := row[to]
		if !ok || to == StateLeave {
			continue
		}
		adjusted := p * (1 - fatigue)
		weights[to] = adjusted
		total += adjusted
	}
	leaveP := row[StateLeave] + fatigue*(1-row[StateLeave])
	weights[StateLeave] = leaveP
	total += leaveP

	r := c.rng.Float64() * total
	var cumulative float64
	next := StateLeave
	for _, to := range order {
		w, ok := weights[to]
		if !ok {
			continue
		}
		cumulative += w
		if r <= cumulative {
			next = to
			break
		}
	}

	c.state = next
	c.steps++
	return c.state
}

// betaMedianApprox is the median of the Beta(2,5) shape used by Dwell for
// states in stateDwellRanges: (alpha-1/3)/(alpha+beta-2/3).
const betaMedianApprox = 0.2632

// DwellMedian returns a state's expected dwell time in seconds, without
// sampling — used to size per-state hard timeouts (spec.md §4.5: "each
// state has a hard cap (2x its dwell median)"), which need a fixed value
// rather than a fresh draw.
func DwellMedian(state State) float64 {
	if ln, ok := logNormalDwell[state]; ok {
		return ln.medianSec
	}
	if rng, ok := stateDwellRanges[state]; ok {
		return rng.min + betaMedianApprox*(rng.max-rng.min)
	}
	return 5
}

// Dwell draws how long the chain's current state should last.
func (c *Chain) Dwell() float64 {
	if ln, ok := logNormalDwell[c.state]; ok {
		mu := math.Log(ln.medianSec)
		return math.Exp(mu + ln.sigma*c.rng.NormFloat64())
	}
	rng, ok := stateDwellRanges[c.state]
	if !ok {
		return 5
	}
	// Beta(2,5): sample via two Gamma draws, mean 2/7, clustered low.
	x := gammaSample(c.rng, 2)
	y := gammaSample(c.rng, 5)
	beta := x / (x + y)
	return rng.min + beta*(rng.max-rng.min)
}

// gammaSample draws from Gamma(shape, 1) via Marsaglia-Tsang squeeze,
// sufficient here since shape is always a small positive integer (2 or 5).
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		shape += 1
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if math.Log(u) < 0.5*x*x+d-d*v+d*math.Log(v) {
			return d * v
		}
	}
}
