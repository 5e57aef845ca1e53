package domain

// Status labels used in ChargerDetail.Status and in summary strings.
const (
	StatusAvailable   = "available"
	StatusCharging    = "charging"
	StatusMaintenance = "maintenance"
	StatusNoData      = "no data"
)

// Speed classes for ChargerDetail.Speed.
const (
	SpeedFast = "fast"
	SpeedSlow = "slow"
)

// ChargerDetail is the status of a single charger at a station. It is produced
// either from the live feed or by the synthetic generator and never persisted.
type ChargerDetail struct {
	Speed       string `json:"speed"`
	ChargerType string `json:"chargerType"`
	Status      string `json:"status"`
	ChargerID   string `json:"chgerId"`

	// Summary is set on the first charger of a station only.
	Summary string `json:"summary,omitempty"`
}

// Station is the canonical merged record for one charging station.
type Station struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"addr"`
	Operator    string          `json:"operator"`
	ChargerType string          `json:"chargerType"`
	Status      string          `json:"status"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Chargers    []ChargerDetail `json:"realtime"`
}

// StationLite is the lightweight projection used by clustering and region counts.
type StationLite struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"addr"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// LiveStatus maps a station identifier to the chargers reported by the live feed.
type LiveStatus map[string][]ChargerDetail

// Summary returns the station summary carried by the first charger, or
// StatusNoData when none is present.
func (l LiveStatus) Summary(stationID string) (string, bool) {
	details, ok := l[stationID]
	if !ok {
		return "", false
	}
	if len(details) == 0 || details[0].Summary == "" {
		return StatusNoData, true
	}
	return details[0].Summary, true
}

// UsageRate returns 100*charging/total for the station using integer division,
// or 0 when the station has no live entry.
func (l LiveStatus) UsageRate(stationID string) int {
	details := l[stationID]
	if len(details) == 0 {
		return 0
	}
	charging := 0
	for _, d := range details {
		if d.Status == StatusCharging {
			charging++
		}
	}
	return charging * 100 / len(details)
}
