// Command validate checks a bulk station dataset before it is deployed. It runs
// both parse paths used by the service and reports row counts, skipped rows,
// duplicate identifiers, charger-type and status coverage, coordinate sanity
// and region coverage.
//
// Usage:
//
//	go run ./cmd/validate -data data/stations.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/couchcryptid/ev-station-service/internal/adapter/csvsource"
	"github.com/couchcryptid/ev-station-service/internal/domain"
)

// Bounding box of the service area; stations outside it have swapped or broken coordinates.
const (
	minLat = 33.0
	maxLat = 39.0
	minLng = 124.0
	maxLng = 132.0
)

// maxReported caps the detailed errors printed per phase.
const maxReported = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataPath := flag.String("data", "", "path to the bulk station CSV")
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataPath); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== Station Dataset Validation ===")
	fmt.Println()

	stations, fullStats, err := parseFile(path, csvsource.ParseStations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: full parse: %v\n", err)
		return 1
	}
	lite, liteStats, err := parseFile(path, csvsource.ParseLightweight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: lightweight parse: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRows(stations, fullStats),
		validateProjection(stations, lite),
		validateCoverage(stations),
		validateCoordinates(stations),
		validateRegions(lite),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d read, %d skipped (full), %d skipped (lightweight)\n",
		fullStats.Rows, fullStats.Skipped, liteStats.Skipped)
	fmt.Printf("Stations: %d full, %d lightweight, %d duplicate rows merged\n",
		len(stations), len(lite), fullStats.DuplicateIDs)

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Printf("  %s\n", n)
		}
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func parseFile[T any](path string, parse func(io.Reader) ([]T, csvsource.Stats, error)) ([]T, csvsource.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, csvsource.Stats{}, err
	}
	defer f.Close()
	return parse(f)
}

// ── Phase 1: Rows ──

func validateRows(stations []domain.Station, stats csvsource.Stats) *phase {
	p := &phase{name: "Phase 1: Rows and identifiers"}
	if stats.Rows == 0 {
		p.errorf("dataset has no data rows")
		return p
	}
	if len(stations) == 0 {
		p.errorf("no usable stations in %d rows", stats.Rows)
	}
	if stats.Skipped*2 > stats.Rows {
		p.errorf("more than half of the rows were skipped (%d of %d)", stats.Skipped, stats.Rows)
	}
	for _, st := range stations {
		if st.ID == "" {
			p.errorf("station with empty identifier: %q", st.Name)
		}
	}
	return p
}

// ── Phase 2: Projection parity ──
// Both parse paths must agree on which stations exist.

func validateProjection(stations []domain.Station, lite []domain.StationLite) *phase {
	p := &phase{name: "Phase 2: Lightweight projection parity"}

	full := make(map[string]domain.Station, len(stations))
	for _, st := range stations {
		full[st.ID] = st
	}
	seen := make(map[string]bool, len(lite))
	for _, l := range lite {
		seen[l.ID] = true
		if _, ok := full[l.ID]; !ok {
			p.errorf("%s: in lightweight projection only", l.ID)
		}
	}
	for _, st := range stations {
		if !seen[st.ID] {
			p.errorf("%s: in full list only", st.ID)
		}
	}
	return p
}

// ── Phase 3: Charger type and status coverage ──
// Unknown type codes map to the "other" label and are reported, not failed.

func validateCoverage(stations []domain.Station) *phase {
	p := &phase{name: "Phase 3: Charger type and status coverage"}

	types := make(map[string]int)
	noStatus := 0
	for _, st := range stations {
		types[st.ChargerType]++
		if st.Status == domain.StatusNoData {
			noStatus++
		}
		if st.ChargerType == "" {
			p.errorf("%s: empty charger type label", st.ID)
		}
	}

	labels := make([]string, 0, len(types))
	for l := range types {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		p.notef("%-40s %d", l, types[l])
	}
	p.notef("stations with only unknown charger type codes: %d", types[domain.TypeOther])
	p.notef("stations without a recognizable status: %d", noStatus)
	return p
}

// ── Phase 4: Coordinates ──

func validateCoordinates(stations []domain.Station) *phase {
	p := &phase{name: "Phase 4: Coordinates within service area"}
	for _, st := range stations {
		if st.Lat < minLat || st.Lat > maxLat || st.Lng < minLng || st.Lng > maxLng {
			p.errorf("%s: (%.5f, %.5f) outside service area", st.ID, st.Lat, st.Lng)
		}
	}
	return p
}

// ── Phase 5: Regions ──
// Unmatched addresses are reported but do not fail validation.

func validateRegions(lite []domain.StationLite) *phase {
	p := &phase{name: "Phase 5: Region coverage"}
	matched := 0
	for _, r := range domain.CountRegions(lite) {
		p.notef("%-20s %d", r.Name, r.Count)
		matched += r.Count
	}
	p.notef("unmatched addresses: %d", len(lite)-matched)
	return p
}
