package timetable

import "strings"

// StopType classifies a timetable entry.
type StopType int

const (
	// StopRegular is a stop where passengers board and alight.
	StopRegular StopType = 1
	// StopPassThrough is a stop the train passes without boarding.
	StopPassThrough StopType = -1
	// StopUnknown is a placeholder entry.
	StopUnknown StopType = 0
)

// Boardable reports whether the stop is part of the train's served route
// (regular or pass-through, but not a placeholder).
func (t StopType) Boardable() bool {
	return t == StopRegular || t == StopPassThrough
}

// Stop is one timetable entry of a train. Time is the scheduled clock time
// as "HH:MM", or NoTime when the schedule has no time for this stop.
type Stop struct {
	StationID string
	Type      StopType
	Time      string
}

// Station is immutable reference data loaded once per revision.
// A (0,0) coordinate means the station has not been geocoded.
type Station struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// HasCoordinates reports whether the station has real coordinates.
func (s *Station) HasCoordinates() bool {
	return !(s.Lat == 0 && s.Lon == 0)
}

// Train is an ordered stop sequence in timetable order; index 0 is the origin.
type Train struct {
	ID    string
	Name  string
	Stops []Stop
}

// Dataset is one revision of the static timetable and station tables.
// Raw holds the original document bytes for clients that want the full dump.
type Dataset struct {
	Revision int
	Trains   map[string]*Train
	Stations map[string]*Station
	Raw      []byte
}

// Station returns the station for an exact id, or nil.
func (d *Dataset) Station(id string) *Station {
	return d.Stations[id]
}

// Train returns the train for an exact id, or nil.
func (d *Dataset) Train(id string) *Train {
	return d.Trains[id]
}

// TrainName returns the display name for a train id, falling back to the id.
func (d *Dataset) TrainName(id string) string {
	if t := d.Trains[id]; t != nil && t.Name != "" {
		return t.Name
	}
	return id
}

// StationName returns the display name for a station id, falling back to the id.
func (d *Dataset) StationName(id string) string {
	if s := d.Stations[id]; s != nil && s.Name != "" {
		return s.Name
	}
	return id
}

// ResolveStation matches free-text input against station ids, case-insensitively.
// Returns the canonical id and true on a match.
func (d *Dataset) ResolveStation(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if _, ok := d.Stations[input]; ok {
		return input, true
	}
	lower := strings.ToLower(input)
	for id := range d.Stations {
		if strings.ToLower(id) == lower {
			return id, true
		}
	}
	return "", false
}

// SuggestStations returns up to limit station ids that contain the input as a
// substring (or vice versa), case-insensitively. Used for "did you mean" hints.
func (d *Dataset) SuggestStations(input string, limit int) []string {
	lower := strings.ToLower(strings.TrimSpace(input))
	var matches []string
	for id := range d.Stations {
		idLower := strings.ToLower(id)
		if strings.Contains(idLower, lower) || strings.Contains(lower, idLower) {
			matches = append(matches, id)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches
}
