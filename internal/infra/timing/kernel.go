// Package timing implements the inhomogeneous Poisson arrival process and
// the Markov intra-session state machine that together decide *when*
// traffic fires and *what shape* a session takes once it starts.
package timing

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

const (
	minEventDelay = 2 * time.Second
	maxEventDelay = time.Hour
)

// lambdaMaxMultiplier bounds the thinning envelope: the highest instantaneous
// rate CurrentLambda can produce is the base rate times the curve's peak
// (1.0) times the max weekly drift (1.15) times the max jitter (1.2), i.e.
// 1.38, so the envelope only needs a small margin over that to keep the
// accept probability reasonable.
const lambdaMaxMultiplier = 1.4

// Kernel draws successive inter-event delays from the diurnal Poisson
// process described in spec.md §3, via Lewis-Shedler thinning: sample
// candidate times from the envelope rate λ_max, accept each one with
// probability λ(t)/λ_max.
type Kernel struct {
	mu        sync.Mutex
	rng       *rand.Rand
	base      float64
	curve     [24]float64
	epoch     time.Time
	driftSeed float64
}

// NewKernel builds a Kernel for the given intensity level; its random
// source is seeded from seed, so two Kernels built with the same seed draw
// the same sequence.
func NewKernel(level domain.IntensityLevel, curve [24]float64, epoch time.Time, seed int64) *Kernel {
	base, ok := domain.LambdaBase[level]
	if !ok {
		base = domain.LambdaBase[domain.IntensityMedium]
	}
	rng := rand.New(rand.NewSource(seed))
	return &Kernel{
		rng:       rng,
		base:      base,
		curve:     curve,
		epoch:     epoch,
		driftSeed: rng.Float64() * 2 * math.Pi,
	}
}

// SetBase updates the base arrival rate in place, letting the orchestrator
// react to a live intensity change without rebuilding the kernel.
func (k *Kernel) SetBase(level domain.IntensityLevel) {
	base, ok := domain.LambdaBase[level]
	if !ok {
		return
	}
	k.mu.Lock()
	k.base = base
	k.mu.Unlock()
}

// lambdaAt is CurrentLambda sampled with a fresh jitter draw, called with
// k.mu held.
func (k *Kernel) lambdaAt(t time.Time) float64 {
	jitter := (k.rng.Float64()*2 - 1) * 0.2
	return CurrentLambda(k.base, k.curve, k.epoch, t, k.driftSeed, jitter)
}

// NextEvent returns the fire time of the next event after from, plus the
// λ sample that ultimately accepted it.
func (k *Kernel) NextEvent(from time.Time) domain.Event {
	k.mu.Lock()
	defer k.mu.Unlock()

	lambdaMax := k.base * peakWeight(k.curve) * lambdaMaxMultiplier
	if lambdaMax <= 0 {
		lambdaMax = 1
	}

	t := from
	var accepted float64
	for {
		u := k.rng.Float64()
		delay := time.Duration(-math.Log(1-u) / (lambdaMax / 3600) * float64(time.Second))
		t = t.Add(delay)

		lambda := k.lambdaAt(t)
		if k.rng.Float64() <= lambda/lambdaMax {
			accepted = lambda
			break
		}
	}

	delay := t.Sub(from)
	if delay < minEventDelay {
		t = from.Add(minEventDelay)
	} else if delay > maxEventDelay {
		t = from.Add(maxEventDelay)
	}

	return domain.Event{Tag: domain.EventSessionStart, FireAt: t, LambdaAt: accepted}
}

// peakWeight is the highest value in the diurnal curve.
func peakWeight(curve [24]float64) float64 {
	max := curve[0]
	for _, v := range curve[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// NextSessionDuration draws a session's planned duration from a log-normal
// distribution centered on meanMinutes, clamped to [minMinutes, maxMinutes].
func (k *Kernel) NextSessionDuration(meanMinutes, minMinutes, maxMinutes float64) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	mu := math.Log(meanMinutes)
	const sigma = 0.8
	sample := math.Exp(mu + sigma*k.rng.NormFloat64())
	if sample < minMinutes {
		sample = minMinutes
	} else if sample > maxMinutes {
		sample = maxMinutes
	}
	return time.Duration(sample * float64(time.Minute))
}

// NextInterSessionGap draws the idle gap before the next session starts,
// applying a longer expected gap during the 00:00-06:00 night window.
func (k *Kernel) NextInterSessionGap(now time.Time, meanMinutes float64) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	nightFactor := 1.0
	if h := now.Hour(); h >= 0 && h < 6 {
		nightFactor = 2.5
	}
	u := k.rng.Float64()
	gap := -math.Log(1-u) * meanMinutes * nightFactor
	return time.Duration(gap * float64(time.Minute))
}
