package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

const defaultActivityCount = 50

// handleActivity serves GET /poisson/activity?count=N, the tail of the
// activity ring (spec.md §4.8).
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	count := defaultActivityCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}

	var entries []domain.ActivityEntry
	if s.activity != nil {
		entries = s.activity.Recent(count)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

// chartBucket is one hour's worth of per-engine activity.
type chartBucket struct {
	HourStart time.Time          `json:"hour_start"`
	ByEngine  map[string]int64   `json:"by_engine"` // engine -> bytes transferred
	Requests  map[string]int64   `json:"requests"`  // engine -> request count
}

// handleActivityChart serves GET /poisson/activity/chart: a 24-bucket
// histogram of activity per engine, one bucket per hour looking back from
// now (spec.md §4.8).
func (s *Server) handleActivityChart(w http.ResponseWriter, r *http.Request) {
	const buckets = 24
	now := time.Now()
	floor := now.Truncate(time.Hour)

	chart := make([]chartBucket, buckets)
	for i := range chart {
		chart[i] = chartBucket{
			HourStart: floor.Add(time.Duration(i-buckets+1) * time.Hour),
			ByEngine:  make(map[string]int64),
			Requests:  make(map[string]int64),
		}
	}

	if s.activity != nil {
		cutoff := floor.Add(time.Duration(-buckets+1) * time.Hour)
		for _, e := range s.activity.All() {
			if e.Timestamp.Before(cutoff) {
				continue
			}
			idx := buckets - 1 - int(floor.Sub(e.Timestamp.Truncate(time.Hour))/time.Hour)
			if idx < 0 || idx >= buckets {
				continue
			}
			chart[idx].ByEngine[e.Engine] += e.Bytes
			chart[idx].Requests[e.Engine]++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chart": chart})
}
