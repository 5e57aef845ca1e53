package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegions_FixedList(t *testing.T) {
	list := Regions()
	require.Len(t, list, 16)
	assert.Equal(t, "서울특별시", list[0].Name)
	assert.Equal(t, "제주특별자치도", list[15].Name)

	list[0].Count = 99
	assert.Zero(t, Regions()[0].Count, "Regions should return a copy")
}

func TestCountRegions(t *testing.T) {
	stations := []StationLite{
		{ID: "1", Address: "서울특별시 강남구 테헤란로 1"},
		{ID: "2", Address: "서울특별시"},
		{ID: "3", Address: "제주특별자치도 제주시 연동"},
		{ID: "4", Address: "경기도 수원시"},
		{ID: "5", Address: "Seoul, somewhere"},
		{ID: "6", Address: ""},
	}

	regions := CountRegions(stations)
	require.Len(t, regions, 3)

	assert.Equal(t, "서울특별시", regions[0].Name)
	assert.Equal(t, 2, regions[0].Count)
	assert.Equal(t, "경기도", regions[1].Name)
	assert.Equal(t, 1, regions[1].Count)
	assert.Equal(t, "제주특별자치도", regions[2].Name)
	assert.Equal(t, 1, regions[2].Count)
	assert.Equal(t, 33.38, regions[2].Lat)
}

func TestCountRegions_FirstListedPrefixWins(t *testing.T) {
	saved := regions
	t.Cleanup(func() { regions = saved })
	regions = []Region{
		{Name: "경기"},
		{Name: "경기도"},
	}

	got := CountRegions([]StationLite{{ID: "1", Address: "경기도 성남시"}})
	require.Len(t, got, 1)
	assert.Equal(t, "경기", got[0].Name)
	assert.Equal(t, 1, got[0].Count)
}

func TestCountRegions_NoMatchesIsEmpty(t *testing.T) {
	assert.Empty(t, CountRegions([]StationLite{{ID: "1", Address: "Tokyo"}}))
}
