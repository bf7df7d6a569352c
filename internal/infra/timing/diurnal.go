package timing

import (
	"math"
	"time"
)

// DefaultDiurnalCurve is the default 24-hour weight table (index = local
// hour 0-23), carried over from the add-on's original hourly weights:
// quiet overnight, rising through the morning, a midday plateau, and a
// second evening peak.
var DefaultDiurnalCurve = [24]float64{
	0.15, 0.10, 0.08, 0.07, 0.08, 0.15, // 00-05
	0.35, 0.55, 0.70, 0.75, 0.70, 0.65, // 06-11
	0.70, 0.75, 0.70, 0.65, 0.70, 0.80, // 12-17
	1.00, 0.95, 0.85, 0.70, 0.45, 0.25, // 18-23
}

// hourWeight linearly interpolates the diurnal curve between hour h and
// hour h+1 using the fractional minute offset within the hour.
func hourWeight(curve [24]float64, t time.Time) float64 {
	h := t.Hour()
	frac := float64(t.Minute()*60+t.Second()) / 3600.0
	a := curve[h]
	b := curve[(h+1)%24]
	return a + (b-a)*frac
}

// weekendFactor dampens arrival rate on Saturday/Sunday relative to
// weekdays — distinct from, and layered under, the weekly drift term.
func weekendFactor(t time.Time) float64 {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return 0.7
	default:
		return 1.0
	}
}

// weeklyDrift applies a slow sinusoidal modulation across ISO weeks so the
// traffic profile doesn't repeat identically week over week. driftSeed is
// a per-instance phase offset drawn once at startup.
func weeklyDrift(epoch, now time.Time, driftSeed float64) float64 {
	weeksElapsed := now.Sub(epoch).Hours() / (24 * 7)
	return 1 + 0.15*math.Sin(2*math.Pi*weeksElapsed+driftSeed)
}

// CurrentLambda computes the instantaneous arrival rate (events/hour) at
// time now, composing the base rate with the diurnal curve, weekend
// factor, weekly drift, and a bounded per-minute jitter sample.
func CurrentLambda(base float64, curve [24]float64, epoch, now time.Time, driftSeed, jitter float64) float64 {
	lambda := base * hourWeight(curve, now) * weekendFactor(now) * weeklyDrift(epoch, now, driftSeed)
	lambda *= 1 + jitter // jitter in [-0.2, 0.2], supplied by the caller's RNG
	if lambda < 0.01 {
		lambda = 0.01
	}
	return lambda
}
