package domain

import (
	"fmt"
	"strings"
)

// IntN draws a uniform integer in [0, n). math/rand/v2.IntN satisfies it; tests
// pass the method of a seeded *rand.Rand.
type IntN func(n int) int

// PortCount estimates how many chargers a station has from its accumulated
// charger-type label.
func PortCount(chargerType string) int {
	switch {
	case strings.Contains(chargerType, TypeSeparator):
		return len(strings.Split(chargerType, TypeSeparator))
	case strings.Contains(chargerType, "Combo"):
		return 2
	default:
		return 1
	}
}

// SynthesizeChargers draws a plausible status for every port of a station that
// the live feed does not report. The result differs on every call unless intn
// is deterministic.
func SynthesizeChargers(st Station, intn IntN) ([]ChargerDetail, string) {
	total := PortCount(st.ChargerType)

	speed := SpeedFast
	if strings.Contains(st.ChargerType, ChargerTypeLabel("02")) {
		speed = SpeedSlow
	}

	details := make([]ChargerDetail, 0, total)
	counts := StatusCounts{Total: total}
	for i := 1; i <= total; i++ {
		status := drawStatus(intn(100))
		counts.add(status)
		details = append(details, ChargerDetail{
			Speed:       speed,
			ChargerType: st.ChargerType,
			Status:      status,
			ChargerID:   fmt.Sprintf("%s-%02d", st.ID, i),
		})
	}
	return details, counts.Summary()
}

// drawStatus maps a draw in [0,100) onto a 60/25/15 available/charging/maintenance split.
func drawStatus(r int) string {
	switch {
	case r < 60:
		return StatusAvailable
	case r < 85:
		return StatusCharging
	default:
		return StatusMaintenance
	}
}

// MergeLiveStatus attaches chargers and a summary to every station: live
// entries when present, synthetic ones otherwise. It returns the number of
// stations that were synthesized.
func MergeLiveStatus(stations []Station, live LiveStatus, intn IntN) int {
	synthesized := 0
	for i := range stations {
		st := &stations[i]
		if details, ok := live[st.ID]; ok {
			st.Chargers = details
			st.Status, _ = live.Summary(st.ID)
			continue
		}
		st.Chargers, st.Status = SynthesizeChargers(*st, intn)
		synthesized++
	}
	return synthesized
}
