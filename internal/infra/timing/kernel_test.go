package timing

import (
	"testing"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// ─── Diurnal Curve Tests ────────────────────────────────────────────────────

func TestHourWeight_Interpolates(t *testing.T) {
	epoch := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // a Monday
	at := time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC)
	w := hourWeight(DefaultDiurnalCurve, at)
	lo, hi := DefaultDiurnalCurve[18], DefaultDiurnalCurve[19]
	if w < min(lo, hi) || w > max(lo, hi) {
		t.Errorf("hourWeight(18:30) = %f, want between %f and %f", w, lo, hi)
	}
	_ = epoch
}

func TestWeekendFactor(t *testing.T) {
	sat := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	mon := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)
	if weekendFactor(sat) >= weekendFactor(mon) {
		t.Errorf("weekend factor %f should be less than weekday factor %f", weekendFactor(sat), weekendFactor(mon))
	}
}

func TestCurrentLambda_NeverNegative(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := epoch.Add(3 * 24 * time.Hour)
	lambda := CurrentLambda(18, DefaultDiurnalCurve, epoch, now, 1.2, -0.2)
	if lambda <= 0 {
		t.Errorf("CurrentLambda = %f, want > 0", lambda)
	}
}

// ─── Kernel Tests ───────────────────────────────────────────────────────────

func TestKernel_NextEvent_RespectsBounds(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	k := NewKernel(domain.IntensityHigh, DefaultDiurnalCurve, epoch, 42)

	from := epoch.Add(18 * time.Hour) // inside the evening peak
	ev := k.NextEvent(from)

	delay := ev.FireAt.Sub(from)
	if delay < minEventDelay || delay > maxEventDelay {
		t.Errorf("NextEvent delay = %v, want within [%v, %v]", delay, minEventDelay, maxEventDelay)
	}
	if ev.LambdaAt <= 0 {
		t.Errorf("accepted LambdaAt = %f, want > 0", ev.LambdaAt)
	}
}

func TestKernel_SetBase_ChangesRate(t *testing.T) {
	epoch := time.Now()
	k := NewKernel(domain.IntensityLow, DefaultDiurnalCurve, epoch, 7)
	if k.base != domain.LambdaBase[domain.IntensityLow] {
		t.Fatalf("base = %f, want %f", k.base, domain.LambdaBase[domain.IntensityLow])
	}
	k.SetBase(domain.IntensityParanoid)
	if k.base != domain.LambdaBase[domain.IntensityParanoid] {
		t.Errorf("base after SetBase = %f, want %f", k.base, domain.LambdaBase[domain.IntensityParanoid])
	}
}

func TestKernel_NextSessionDuration_Clamped(t *testing.T) {
	k := NewKernel(domain.IntensityMedium, DefaultDiurnalCurve, time.Now(), 3)
	for i := 0; i < 50; i++ {
		d := k.NextSessionDuration(10, 2, 30)
		if d < 2*time.Minute || d > 30*time.Minute {
			t.Fatalf("NextSessionDuration = %v, want within [2m, 30m]", d)
		}
	}
}

func TestKernel_NextInterSessionGap_NightIsLonger(t *testing.T) {
	k := NewKernel(domain.IntensityMedium, DefaultDiurnalCurve, time.Now(), 9)
	day := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	night := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)

	var daySum, nightSum time.Duration
	const n = 200
	for i := 0; i < n; i++ {
		daySum += k.NextInterSessionGap(day, 5)
		nightSum += k.NextInterSessionGap(night, 5)
	}
	if nightSum <= daySum {
		t.Errorf("average night gap (%v) should exceed average day gap (%v) over %d samples", nightSum/n, daySum/n, n)
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
