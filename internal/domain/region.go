package domain

import "strings"

// Region is a named administrative area with a fixed display centroid and the
// number of stations whose address starts with its name.
type Region struct {
	Name  string  `json:"regionName"`
	Lat   float64 `json:"latitude"`
	Lng   float64 `json:"longitude"`
	Count int     `json:"count"`
}

// regions is matched in order; the first name that prefixes an address wins.
var regions = []Region{
	{Name: "서울특별시", Lat: 37.5665, Lng: 126.9780},
	{Name: "인천광역시", Lat: 37.4636, Lng: 126.6480},
	{Name: "광주광역시", Lat: 35.1595, Lng: 126.8526},
	{Name: "대구광역시", Lat: 35.8714, Lng: 128.6014},
	{Name: "울산광역시", Lat: 35.5384, Lng: 129.3114},
	{Name: "대전광역시", Lat: 36.3504, Lng: 127.3845},
	{Name: "부산광역시", Lat: 35.1796, Lng: 129.0756},
	{Name: "경기도", Lat: 37.3500, Lng: 127.1500},
	{Name: "강원특별자치도", Lat: 37.7000, Lng: 128.3000},
	{Name: "충청남도", Lat: 36.6000, Lng: 126.8000},
	{Name: "충청북도", Lat: 36.9900, Lng: 127.9000},
	{Name: "경상북도", Lat: 36.2000, Lng: 128.8000},
	{Name: "경상남도", Lat: 35.2000, Lng: 128.1000},
	{Name: "전라북도", Lat: 35.7000, Lng: 127.1000},
	{Name: "전라남도", Lat: 34.8000, Lng: 126.9000},
	{Name: "제주특별자치도", Lat: 33.3800, Lng: 126.5500},
}

// Regions returns a copy of the fixed region list in match order, with zero counts.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// CountRegions counts stations per region by address prefix and returns only
// regions with at least one station, in the fixed list order.
func CountRegions(stations []StationLite) []Region {
	counts := Regions()
	for _, st := range stations {
		if st.Address == "" {
			continue
		}
		for i := range counts {
			if strings.HasPrefix(st.Address, counts[i].Name) {
				counts[i].Count++
				break
			}
		}
	}

	out := make([]Region, 0, len(counts))
	for _, r := range counts {
		if r.Count > 0 {
			out = append(out, r)
		}
	}
	return out
}
