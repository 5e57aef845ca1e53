package domain

import (
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultDivisionSize is the grid division count used when a request omits it.
const DefaultDivisionSize = 10

// minChunk keeps tiny station sets on a single worker.
const minChunk = 512

// ClusterRequest describes the bounding box and grid for clustering. The box
// spans center±delta on each axis.
type ClusterRequest struct {
	Lat, Lng           float64
	LatDelta, LngDelta float64
	LatDivisions       int
	LngDivisions       int
}

// Cluster is one non-empty grid cell. Lat/Lng is the mean of the member
// stations' coordinates, not the cell center.
type Cluster struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"latitude"`
	Lng   float64 `json:"longitude"`
	Count int     `json:"count"`
}

type cellKey struct {
	lat, lng int
}

func (k cellKey) String() string {
	return strconv.Itoa(k.lat) + "_" + strconv.Itoa(k.lng)
}

type cellAcc struct {
	count  int
	sumLat float64
	sumLng float64
}

type grid struct {
	minLat, maxLat, minLng, maxLng float64
	latStep, lngStep               float64
	latDivs, lngDivs               int
}

func newGrid(req ClusterRequest) (grid, bool) {
	g := grid{
		minLat:  req.Lat - req.LatDelta,
		maxLat:  req.Lat + req.LatDelta,
		minLng:  req.Lng - req.LngDelta,
		maxLng:  req.Lng + req.LngDelta,
		latDivs: req.LatDivisions,
		lngDivs: req.LngDivisions,
	}
	if g.maxLat <= g.minLat || g.maxLng <= g.minLng || g.latDivs < 1 || g.lngDivs < 1 {
		return grid{}, false
	}
	g.latStep = (g.maxLat - g.minLat) / float64(g.latDivs)
	g.lngStep = (g.maxLng - g.minLng) / float64(g.lngDivs)
	return g, true
}

func (g grid) contains(lat, lng float64) bool {
	return lat >= g.minLat && lat <= g.maxLat && lng >= g.minLng && lng <= g.maxLng
}

func (g grid) cell(lat, lng float64) cellKey {
	return cellKey{
		lat: cellIndex(lat, g.minLat, g.latStep, g.latDivs),
		lng: cellIndex(lng, g.minLng, g.lngStep, g.lngDivs),
	}
}

// cellIndex floors (coord-min)/step and clamps it into [0, divs-1].
func cellIndex(coord, lo, step float64, divs int) int {
	idx := int(math.Floor((coord - lo) / step))
	return clamp(idx, 0, divs-1)
}

// ClusterStations bins the stations inside the request's bounding box into a
// lat/lng grid and returns one Cluster per non-empty cell, ordered by cell ID.
// A degenerate box yields an empty result. Accumulation runs in parallel over
// station chunks; the per-cell merge is commutative so worker order does not
// matter.
func ClusterStations(stations []StationLite, req ClusterRequest) []Cluster {
	g, ok := newGrid(req)
	if !ok {
		return []Cluster{}
	}

	cells := xsync.NewMapOf[cellKey, cellAcc]()

	var eg errgroup.Group
	for _, chunk := range chunkStations(stations, runtime.GOMAXPROCS(0)) {
		eg.Go(func() error {
			for _, st := range chunk {
				if !g.contains(st.Lat, st.Lng) {
					continue
				}
				cells.Compute(g.cell(st.Lat, st.Lng), func(acc cellAcc, _ bool) (cellAcc, bool) {
					acc.count++
					acc.sumLat += st.Lat
					acc.sumLng += st.Lng
					return acc, false
				})
			}
			return nil
		})
	}
	_ = eg.Wait()

	clusters := make([]Cluster, 0, cells.Size())
	cells.Range(func(k cellKey, acc cellAcc) bool {
		if acc.count > 0 {
			clusters = append(clusters, Cluster{
				ID:    k.String(),
				Lat:   acc.sumLat / float64(acc.count),
				Lng:   acc.sumLng / float64(acc.count),
				Count: acc.count,
			})
		}
		return true
	})
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters
}

func chunkStations(stations []StationLite, workers int) [][]StationLite {
	if workers < 1 {
		workers = 1
	}
	size := (len(stations) + workers - 1) / workers
	if size < minChunk {
		size = minChunk
	}
	var chunks [][]StationLite
	for start := 0; start < len(stations); start += size {
		end := min(start+size, len(stations))
		chunks = append(chunks, stations[start:end])
	}
	return chunks
}
