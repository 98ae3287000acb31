package routes

import (
	"errors"
	"fmt"

	"github.com/Jisangain/find-my-br-train/internal/geo"
	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// radiusFraction sizes the nearby search radius as a share of the direct
// from-to distance.
const radiusFraction = 0.15

// suggestionLimit caps "did you mean" hints on unknown-station errors.
const suggestionLimit = 5

// ErrNoCoordinates is returned when a requested station has the (0,0)
// sentinel and cannot take part in distance queries.
var ErrNoCoordinates = errors.New("station coordinates not available")

// ErrNoDistance is returned when the stations are known but absent from the
// distance index.
var ErrNoDistance = errors.New("could not calculate distance between stations")

// UnknownStationError carries the unmatched input plus close station ids.
type UnknownStationError struct {
	Input       string
	Suggestions []string
}

func (e *UnknownStationError) Error() string {
	return fmt.Sprintf("station not found: %q (similar: %v)", e.Input, e.Suggestions)
}

// Alternative is one train that serves the journey through nearby stations.
// FromNearby/ToNearby are reduced to the single best boarding and alighting
// stations for that train.
type Alternative struct {
	FromNearby []string `json:"from_nearby"`
	ToNearby   []string `json:"to_nearby"`
}

// NearbyResult is the answer to one nearby-route query.
type NearbyResult struct {
	From              string                 `json:"from_station"`
	To                string                 `json:"to_station"`
	DirectDistanceKm  float64                `json:"direct_distance_km"`
	AlternativeTrains map[string]Alternative `json:"alternative_trains"`
	Total             int                    `json:"total_alternative_routes"`
}

// NearbyFinder answers ad-hoc alternate-route queries using the distance
// index and the regular-stop projection. All inputs are immutable snapshots
// built once per revision.
type NearbyFinder struct {
	data       *timetable.Dataset
	index      *geo.DistanceIndex
	projection Projection
}

// NewNearbyFinder wires a finder over one revision's indexes.
func NewNearbyFinder(data *timetable.Dataset, index *geo.DistanceIndex, projection Projection) *NearbyFinder {
	return &NearbyFinder{data: data, index: index, projection: projection}
}

// Find surfaces trains that do not serve the pair directly but stop at
// stations geographically close to both endpoints, in the right order.
func (f *NearbyFinder) Find(fromInput, toInput string) (*NearbyResult, error) {
	fromID, ok := f.data.ResolveStation(fromInput)
	if !ok {
		return nil, &UnknownStationError{Input: fromInput, Suggestions: f.data.SuggestStations(fromInput, suggestionLimit)}
	}
	toID, ok := f.data.ResolveStation(toInput)
	if !ok {
		return nil, &UnknownStationError{Input: toInput, Suggestions: f.data.SuggestStations(toInput, suggestionLimit)}
	}

	if !f.data.Station(fromID).HasCoordinates() || !f.data.Station(toID).HasCoordinates() {
		return nil, ErrNoCoordinates
	}

	directDistance, ok := f.index.Distance(fromID, toID)
	if !ok {
		return nil, ErrNoDistance
	}

	direct := f.projection.DirectTrains(fromID, toID)
	radius := directDistance * radiusFraction

	nearFrom := asSet(f.index.Within(fromID, radius))
	nearFrom[fromID] = true
	nearTo := asSet(f.index.Within(toID, radius))
	nearTo[toID] = true

	alternatives := make(map[string]Alternative)
	for trainID, stops := range f.projection {
		if direct[trainID] {
			continue
		}
		if !servesInOrder(stops, nearFrom, nearTo) {
			continue
		}

		boardables := make(map[string]bool)
		alightables := make(map[string]bool)
		for _, sid := range stops {
			if nearFrom[sid] {
				boardables[sid] = true
			}
			if nearTo[sid] {
				alightables[sid] = true
			}
		}

		alternatives[trainID] = Alternative{
			FromNearby: reduceToNearest(f.index, fromID, boardables),
			ToNearby:   reduceToNearest(f.index, toID, alightables),
		}
	}

	return &NearbyResult{
		From:              fromID,
		To:                toID,
		DirectDistanceKm:  directDistance,
		AlternativeTrains: alternatives,
		Total:             len(alternatives),
	}, nil
}

// servesInOrder reports whether some near-from stop precedes some near-to
// stop on the train's route.
func servesInOrder(stops []string, nearFrom, nearTo map[string]bool) bool {
	seenFrom := false
	for _, sid := range stops {
		if seenFrom && nearTo[sid] {
			return true
		}
		if nearFrom[sid] {
			seenFrom = true
		}
	}
	return false
}

// reduceToNearest collapses the candidate set to the single station closest
// to the true endpoint, keeping the full set only when the index cannot rank
// the candidates.
func reduceToNearest(index *geo.DistanceIndex, referenceID string, candidates map[string]bool) []string {
	if nearest, ok := index.Nearest(referenceID, candidates); ok {
		return []string{nearest}
	}
	all := make([]string, 0, len(candidates))
	for sid := range candidates {
		all = append(all, sid)
	}
	return all
}

func asSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
