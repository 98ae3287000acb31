// Package geo provides spherical-earth distance math and the precomputed
// station distance index used by route queries.
package geo

import (
	"math"
	"sort"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

const earthRadiusKm = 6371

// Haversine calculates the great-circle distance between two points in km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// StationDistance is one neighbor entry in a station's distance list.
type StationDistance struct {
	StationID string
	Km        float64
}

// DistanceIndex holds, for every geocoded station, all other geocoded
// stations sorted by ascending distance. Built once per dataset revision
// and treated as immutable afterwards.
type DistanceIndex struct {
	neighbors map[string][]StationDistance
}

// BuildDistanceIndex computes the full pairwise index. Stations with the
// (0,0) sentinel coordinate are excluded entirely.
func BuildDistanceIndex(data *timetable.Dataset) *DistanceIndex {
	valid := make(map[string]*timetable.Station)
	for id, st := range data.Stations {
		if st.HasCoordinates() {
			valid[id] = st
		}
	}

	idx := &DistanceIndex{neighbors: make(map[string][]StationDistance, len(valid))}
	for fromID, from := range valid {
		distances := make([]StationDistance, 0, len(valid)-1)
		for toID, to := range valid {
			if fromID == toID {
				continue
			}
			distances = append(distances, StationDistance{
				StationID: toID,
				Km:        Haversine(from.Lat, from.Lon, to.Lat, to.Lon),
			})
		}
		sort.Slice(distances, func(i, j int) bool { return distances[i].Km < distances[j].Km })
		idx.neighbors[fromID] = distances
	}
	return idx
}

// Neighbors returns the ascending distance list for a station, or nil.
func (idx *DistanceIndex) Neighbors(stationID string) []StationDistance {
	return idx.neighbors[stationID]
}

// Distance returns the distance between two stations, or false when either
// station is missing from the index.
func (idx *DistanceIndex) Distance(fromID, toID string) (float64, bool) {
	for _, d := range idx.neighbors[fromID] {
		if d.StationID == toID {
			return d.Km, true
		}
	}
	return 0, false
}

// Within returns all stations within radiusKm of the given station. The
// neighbor list is sorted ascending, so the scan stops at the first entry
// outside the radius.
func (idx *DistanceIndex) Within(stationID string, radiusKm float64) []string {
	var nearby []string
	for _, d := range idx.neighbors[stationID] {
		if d.Km > radiusKm {
			break
		}
		nearby = append(nearby, d.StationID)
	}
	return nearby
}

// Nearest picks the candidate closest to the reference station. The reference
// itself wins outright when it is a candidate. Returns false when no
// candidate is reachable through the index.
func (idx *DistanceIndex) Nearest(referenceID string, candidates map[string]bool) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if candidates[referenceID] {
		return referenceID, true
	}
	for _, d := range idx.neighbors[referenceID] {
		if candidates[d.StationID] {
			return d.StationID, true
		}
	}
	return "", false
}
