package domain

import (
	"hash/fnv"
	"math/rand/v2"
	"time"
)

// DateLayout is the ISO calendar date format accepted by the usage estimator.
const DateLayout = "2006-01-02"

// HourlyUsage is one point of a 24-hour usage profile.
type HourlyUsage struct {
	Hour       int  `json:"hour"`
	Usage      int  `json:"usage"`
	IsRealtime bool `json:"isRealtime"`
}

// UsageRequest identifies the profile to estimate.
type UsageRequest struct {
	StationID string
	// Date is an ISO calendar date. Empty or unparseable means today.
	Date string
}

// ResolveDate parses date in loc, falling back to today when it is empty or invalid.
// The returned string is the canonical form used for seeding.
func ResolveDate(date string, loc *time.Location) (time.Time, string) {
	today := clock.Now().In(loc)
	if d, err := time.ParseInLocation(DateLayout, date, loc); err == nil {
		return d, d.Format(DateLayout)
	}
	return today, today.Format(DateLayout)
}

// IsToday reports whether date resolves to the current calendar day in loc.
func IsToday(date string, loc *time.Location) bool {
	_, resolved := ResolveDate(date, loc)
	return resolved == clock.Now().In(loc).Format(DateLayout)
}

// EstimateHourlyUsage builds a 24-point usage profile for a station and date.
// Non-today profiles are a deterministic function of (station, date). For today,
// the current hour reports currentRate exactly and the neighboring hours are
// pulled towards it.
func EstimateHourlyUsage(req UsageRequest, currentRate int, loc *time.Location) []HourlyUsage {
	now := clock.Now().In(loc)
	_, date := ResolveDate(req.Date, loc)
	isToday := date == now.Format(DateLayout)
	currentHour := now.Hour()

	rng := rand.New(rand.NewPCG(usageSeed(req.StationID, date)))

	profile := make([]HourlyUsage, 0, 24)
	for hour := 0; hour < 24; hour++ {
		realtime := isToday && hour == currentHour
		var usage int
		if realtime {
			usage = currentRate
		} else {
			usage = baseUsage(hour, rng)
			if isToday {
				usage = nearNowUsage(usage, abs(hour-currentHour), currentRate, rng)
			}
		}
		profile = append(profile, HourlyUsage{Hour: hour, Usage: usage, IsRealtime: realtime})
	}
	return profile
}

// baseUsage draws from the time-of-day band: peak [50,80), overnight [10,30),
// otherwise [20,60).
func baseUsage(hour int, rng *rand.Rand) int {
	switch {
	case (hour >= 8 && hour <= 10) || (hour >= 18 && hour <= 20):
		return rng.IntN(30) + 50
	case hour >= 22 || hour <= 6:
		return rng.IntN(20) + 10
	default:
		return rng.IntN(40) + 20
	}
}

func nearNowUsage(usage, distance, currentRate int, rng *rand.Rand) int {
	switch {
	case distance == 1:
		return clamp(currentRate+rng.IntN(20)-10, 0, 100)
	case distance <= 3:
		multiplier := 1.0 - float64(distance)*0.1
		return clamp(int(float64(currentRate)*multiplier)+rng.IntN(15)-7, 0, 100)
	default:
		return usage
	}
}

// usageSeed derives a stable PCG seed from the station identifier and date.
func usageSeed(stationID, date string) (uint64, uint64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stationID))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(date))
	sum := h.Sum64()
	return sum, sum ^ 0x9e3779b97f4a7c15
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
