// Package csvsource loads the bulk charging-station dataset.
package csvsource

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/ev-station-service/internal/domain"
)

// ErrSourceMissing reports that the bulk dataset cannot be opened. No request
// that needs station data can be served without it.
var ErrSourceMissing = errors.New("station dataset missing")

// minFields is the column count of a usable row:
// id, name, addr, operator, lat, lng, chargerTypeCode, statusRaw.
const minFields = 8

// lightFields is the number of leading commas the lightweight path needs to
// reach the longitude column.
const lightFields = 5

// Stats describes one parse pass over the dataset.
type Stats struct {
	Rows         int // data rows read, header excluded
	Skipped      int // rows dropped as malformed
	Stations     int // unique station identifiers
	DuplicateIDs int // rows merged into an earlier identifier
}

// Source reads the bulk dataset from a file path.
type Source struct {
	path   string
	logger *slog.Logger
}

// NewSource creates a Source for the dataset at path.
func NewSource(path string, logger *slog.Logger) *Source {
	return &Source{path: path, logger: logger}
}

// Check verifies the dataset file can be opened.
func (s *Source) Check() error {
	f, err := s.open()
	if err != nil {
		return err
	}
	return f.Close()
}

// LoadStations parses the full merged station list.
func (s *Source) LoadStations(_ context.Context) ([]domain.Station, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stations, stats, err := ParseStations(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.logParsed("full", stats)
	return stations, nil
}

// LoadLightweight parses the id/name/addr/lat/lng projection.
func (s *Source) LoadLightweight(_ context.Context) ([]domain.StationLite, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stations, stats, err := ParseLightweight(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.logParsed("lightweight", stats)
	return stations, nil
}

func (s *Source) open() (*os.File, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceMissing, s.path, err)
	}
	return f, nil
}

func (s *Source) logParsed(kind string, stats Stats) {
	s.logger.Debug("station dataset parsed",
		"kind", kind,
		"rows", stats.Rows,
		"skipped", stats.Skipped,
		"stations", stats.Stations,
		"duplicate_ids", stats.DuplicateIDs,
	)
}

// ParseStations reads the full dataset. Rows sharing an identifier are merged:
// the latest row wins for name, address, operator and coordinates, the
// charger-type label is unioned, and the first-seen status is kept. Stations
// are returned in order of first appearance.
func ParseStations(r io.Reader) ([]domain.Station, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return parseRecords(cr)
}

// recordReader is the subset of *csv.Reader the full parse uses.
type recordReader interface {
	Read() ([]string, error)
}

// parseRecords merges records into stations. The first record is the header,
// even when it is malformed.
func parseRecords(cr recordReader) ([]domain.Station, Stats, error) {
	var stats Stats
	index := make(map[string]int)
	var stations []domain.Station

	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if header {
			header = false
			if err == nil || isParseError(err) {
				continue
			}
		}
		if err != nil {
			if isParseError(err) {
				stats.Rows++
				stats.Skipped++
				continue
			}
			return nil, stats, err
		}
		stats.Rows++

		if len(rec) < minFields {
			stats.Skipped++
			continue
		}
		lat, errLat := parseCoord(rec[4])
		lng, errLng := parseCoord(rec[5])
		if errLat != nil || errLng != nil {
			stats.Skipped++
			continue
		}

		id := strings.TrimSpace(rec[0])
		label := domain.ChargerTypeLabel(strings.TrimSpace(rec[6]))

		i, seen := index[id]
		if !seen {
			i = len(stations)
			index[id] = i
			stations = append(stations, domain.Station{
				ID:     id,
				Status: domain.NormalizeStatus(rec[7]),
			})
		} else {
			stats.DuplicateIDs++
		}

		st := &stations[i]
		st.Name = strings.TrimSpace(rec[1])
		st.Address = strings.TrimSpace(rec[2])
		st.Operator = strings.TrimSpace(rec[3])
		st.Lat = lat
		st.Lng = lng
		st.ChargerType = domain.MergeChargerType(st.ChargerType, label)
	}

	stats.Stations = len(stations)
	return stations, stats, nil
}

func isParseError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr)
}

// ParseLightweight reads only the leading five columns of each row by locating
// commas directly. Every extraction is bounded by the row length; a row whose
// commas or coordinates cannot be located or parsed is skipped. The first row
// for an identifier wins.
func ParseLightweight(r io.Reader) ([]domain.StationLite, Stats, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var stats Stats
	seen := make(map[string]struct{}, 2048)
	stations := make([]domain.StationLite, 0, 2048)

	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		stats.Rows++

		st, ok := parseLightRow(sc.Text())
		if !ok {
			stats.Skipped++
			continue
		}
		if _, dup := seen[st.ID]; dup {
			stats.DuplicateIDs++
			continue
		}
		seen[st.ID] = struct{}{}
		stations = append(stations, st)
	}
	if err := sc.Err(); err != nil {
		return nil, stats, err
	}

	stats.Stations = len(stations)
	return stations, stats, nil
}

func parseLightRow(line string) (domain.StationLite, bool) {
	var commas [lightFields]int
	from := 0
	for i := range commas {
		idx := strings.IndexByte(line[from:], ',')
		if idx < 0 {
			return domain.StationLite{}, false
		}
		commas[i] = from + idx
		from = commas[i] + 1
	}

	lngEnd := len(line)
	if idx := strings.IndexByte(line[from:], ','); idx >= 0 {
		lngEnd = from + idx
	}

	lat, err := parseCoord(line[commas[3]+1 : commas[4]])
	if err != nil {
		return domain.StationLite{}, false
	}
	lng, err := parseCoord(line[from:lngEnd])
	if err != nil {
		return domain.StationLite{}, false
	}

	return domain.StationLite{
		ID:      strings.TrimSpace(line[:commas[0]]),
		Name:    strings.TrimSpace(line[commas[0]+1 : commas[1]]),
		Address: strings.TrimSpace(line[commas[1]+1 : commas[2]]),
		Lat:     lat,
		Lng:     lng,
	}, true
}

func parseCoord(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
