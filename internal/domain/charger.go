package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// TypeSeparator joins charger-type segments in an accumulated label.
const TypeSeparator = "+"

// TypeOther is the label for charger-type codes outside the fixed table.
const TypeOther = "other"

var (
	// rawStatusParenRe matches "N(M)", e.g. "3(1)".
	rawStatusParenRe = regexp.MustCompile(`^\d+\(\d+\)$`)
	// rawStatusSlashRe matches "N/M", e.g. "4/2".
	rawStatusSlashRe = regexp.MustCompile(`^\d+/\d+$`)
	// rawStatusCountRe matches a bare integer.
	rawStatusCountRe = regexp.MustCompile(`^\d+$`)
)

// ChargerTypeLabel maps a charger-type code from the bulk dataset or live feed
// to its display label.
func ChargerTypeLabel(code string) string {
	switch code {
	case "01":
		return "DC fast/CHAdeMO"
	case "02":
		return "AC slow"
	case "03":
		return "DC Combo"
	case "04":
		return "CHAdeMO+AC 3-phase"
	case "05":
		return "CHAdeMO+DC Combo"
	case "06":
		return "CHAdeMO+DC Combo+AC 3-phase"
	default:
		return TypeOther
	}
}

// ChargerStatusLabel maps a live-feed stat code to a status label.
func ChargerStatusLabel(code string) string {
	switch code {
	case "1":
		return StatusAvailable
	case "2":
		return StatusCharging
	case "3":
		return StatusMaintenance
	default:
		return StatusNoData
	}
}

// ChargerSpeed derives the speed class from a charger-type code.
func ChargerSpeed(code string) string {
	if code == "02" {
		return SpeedSlow
	}
	return SpeedFast
}

// MergeChargerType unions label into existing segment by segment, preserving
// first-appearance order and skipping segments already present.
func MergeChargerType(existing, label string) string {
	if existing == "" {
		return label
	}
	segments := strings.Split(existing, TypeSeparator)
	for _, seg := range strings.Split(label, TypeSeparator) {
		if !containsString(segments, seg) {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, TypeSeparator)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// NormalizeStatus rewrites a raw bulk-dataset status into "N/M available".
// Unrecognized shapes become StatusNoData.
func NormalizeStatus(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case rawStatusParenRe.MatchString(raw):
		raw = strings.NewReplacer("(", "/", ")", "").Replace(raw)
		return raw + " " + StatusAvailable
	case rawStatusSlashRe.MatchString(raw):
		return raw + " " + StatusAvailable
	case rawStatusCountRe.MatchString(raw):
		return raw + "/" + raw + " " + StatusAvailable
	default:
		return StatusNoData
	}
}

// StatusCounts tallies charger statuses for one station.
type StatusCounts struct {
	Total       int
	Available   int
	Charging    int
	Maintenance int
}

// CountStatuses tallies the status labels of the given chargers.
func CountStatuses(details []ChargerDetail) StatusCounts {
	c := StatusCounts{Total: len(details)}
	for _, d := range details {
		c.add(d.Status)
	}
	return c
}

func (c *StatusCounts) add(status string) {
	switch status {
	case StatusAvailable:
		c.Available++
	case StatusCharging:
		c.Charging++
	case StatusMaintenance:
		c.Maintenance++
	}
}

// Summary renders the station summary string. Priority order: all charging,
// all maintenance, all available, any charging, any maintenance, else available.
func (c StatusCounts) Summary() string {
	n := c.Total
	switch {
	case c.Charging == n:
		return fmt.Sprintf("%d/%d %s", n, n, StatusCharging)
	case c.Maintenance == n:
		return fmt.Sprintf("%d/%d %s", n, n, StatusMaintenance)
	case c.Available == n:
		return fmt.Sprintf("%d/%d %s", n, n, StatusAvailable)
	case c.Charging > 0:
		return fmt.Sprintf("%d/%d %s", c.Charging, n, StatusCharging)
	case c.Maintenance > 0:
		return fmt.Sprintf("%d/%d %s", c.Maintenance, n, StatusMaintenance)
	default:
		return fmt.Sprintf("%d/%d %s", c.Available, n, StatusAvailable)
	}
}

// Summarize attaches the station summary to the first charger of every station.
func (l LiveStatus) Summarize() {
	for _, details := range l {
		if len(details) == 0 {
			continue
		}
		details[0].Summary = CountStatuses(details).Summary()
	}
}
