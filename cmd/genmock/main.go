// Command genmock writes a deterministic mock bulk station dataset for local
// runs and fixtures. The output covers every charger-type code, every raw
// status shape, duplicated identifiers and malformed rows, and is parsed back
// with the service's own loader to report what the service will see.
//
// Usage:
//
//	go run ./cmd/genmock -out data/stations.csv -stations 5000 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/ev-station-service/internal/adapter/csvsource"
	"github.com/couchcryptid/ev-station-service/internal/domain"
)

var header = []string{"statId", "statNm", "addr", "busiNm", "lat", "lng", "chgerType", "stat"}

var (
	typeCodes = []string{"01", "02", "03", "04", "05", "06", "07"}
	operators = []string{"환경부", "한국전력", "에버온", "차지비", "GS차지비", "SK일렉링크"}
	sites     = []string{"시청", "구청", "공영주차장", "주민센터", "이마트", "도서관", "체육센터", "휴게소"}
	districts = []string{"중구", "동구", "서구", "남구", "북구"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the mock CSV")
	count := flag.Int("stations", 1000, "number of distinct stations")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" || *count < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -stations > 0")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	rows := generate(rng, *count)

	if err := writeCSV(*out, rows); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	log.Printf("wrote %d rows to %s", len(rows), *out)

	return printStats(*out)
}

// generate builds the data rows. Every station gets one to three rows; every
// 50th station is followed by a short row and a row with a broken latitude.
func generate(rng *rand.Rand, count int) [][]string {
	regions := domain.Regions()
	rows := make([][]string, 0, count*2)

	for i := 1; i <= count; i++ {
		region := regions[rng.IntN(len(regions))]
		id := fmt.Sprintf("ME%06d", i)
		district := districts[rng.IntN(len(districts))]
		name := district + " " + sites[rng.IntN(len(sites))]
		addr := fmt.Sprintf("%s %s %d", region.Name, district, 1+rng.IntN(300))
		operator := operators[rng.IntN(len(operators))]
		lat := region.Lat + (rng.Float64()-0.5)*0.2
		lng := region.Lng + (rng.Float64()-0.5)*0.2

		for dup := range 1 + rng.IntN(3) {
			rows = append(rows, []string{
				id,
				name,
				addr,
				operator,
				formatCoord(lat + float64(dup)*0.0002),
				formatCoord(lng + float64(dup)*0.0002),
				typeCodes[rng.IntN(len(typeCodes))],
				rawStatus(rng),
			})
		}

		if i%50 == 0 {
			rows = append(rows,
				[]string{fmt.Sprintf("BAD%06d", i), name, addr},
				[]string{fmt.Sprintf("BAD%06d", i), name, addr, operator, "n/a", formatCoord(lng), "02", "1"},
			)
		}
	}
	return rows
}

// rawStatus draws one of the raw status shapes found in the source data.
func rawStatus(rng *rand.Rand) string {
	total := 1 + rng.IntN(8)
	free := rng.IntN(total + 1)
	switch rng.IntN(4) {
	case 0:
		return fmt.Sprintf("%d(%d)", total, free)
	case 1:
		return fmt.Sprintf("%d/%d", total, free)
	case 2:
		return strconv.Itoa(total)
	default:
		return "점검중"
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

func printStats(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stations, stats, err := csvsource.ParseStations(f)
	if err != nil {
		return fmt.Errorf("parse back: %w", err)
	}

	synthesized := domain.MergeLiveStatus(stations, domain.LiveStatus{}, rand.IntN)
	byType := make(map[string]int)
	for _, st := range stations {
		byType[st.ChargerType]++
	}

	fmt.Println()
	fmt.Println("=== Generated Dataset ===")
	fmt.Printf("  Rows:            %d\n", stats.Rows)
	fmt.Printf("  Skipped rows:    %d\n", stats.Skipped)
	fmt.Printf("  Stations:        %d\n", stats.Stations)
	fmt.Printf("  Duplicate rows:  %d\n", stats.DuplicateIDs)
	fmt.Printf("  Synthetic ready: %d\n", synthesized)
	fmt.Printf("  Charger type labels: %d distinct\n", len(byType))
	return nil
}
