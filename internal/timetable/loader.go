package timetable

import (
	"encoding/json"
	"fmt"
	"os"
)

// rawDataset mirrors the data.json document produced by the data pipeline.
// Each tid_to_stations entry is a [stationID, stopType, "HH:MM"] triple;
// the time element may be missing or null.
type rawDataset struct {
	Revision      int                     `json:"Revision"`
	TrainStations map[string][][]any      `json:"tid_to_stations"`
	StationLocs   map[string][2]float64   `json:"sid_to_sloc"`
	StationNames  map[string]string       `json:"sid_to_sname"`
	TrainNames    map[string]string       `json:"train_names"`
}

// Load reads and decodes a revisioned dataset document from disk.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(b)
}

// Parse decodes a dataset document.
func Parse(b []byte) (*Dataset, error) {
	var raw rawDataset
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	d := &Dataset{
		Revision: raw.Revision,
		Trains:   make(map[string]*Train, len(raw.TrainStations)),
		Stations: make(map[string]*Station, len(raw.StationLocs)),
		Raw:      b,
	}

	for id, loc := range raw.StationLocs {
		d.Stations[id] = &Station{
			ID:   id,
			Name: raw.StationNames[id],
			Lat:  loc[0],
			Lon:  loc[1],
		}
	}
	// Stations that only appear in the name table still get an entry, with
	// the (0,0) "coordinates unknown" sentinel.
	for id, name := range raw.StationNames {
		if _, ok := d.Stations[id]; !ok {
			d.Stations[id] = &Station{ID: id, Name: name}
		}
	}

	for tid, entries := range raw.TrainStations {
		train := &Train{ID: tid, Name: raw.TrainNames[tid]}
		for i, entry := range entries {
			stop, err := parseStop(entry)
			if err != nil {
				return nil, fmt.Errorf("train %s stop %d: %w", tid, i, err)
			}
			train.Stops = append(train.Stops, stop)
		}
		d.Trains[tid] = train
	}

	return d, nil
}

func parseStop(entry []any) (Stop, error) {
	if len(entry) < 2 {
		return Stop{}, fmt.Errorf("want [station, type, time], got %d elements", len(entry))
	}
	sid, ok := entry[0].(string)
	if !ok {
		return Stop{}, fmt.Errorf("station id is %T, want string", entry[0])
	}
	stype, ok := entry[1].(float64)
	if !ok {
		return Stop{}, fmt.Errorf("stop type is %T, want number", entry[1])
	}
	stop := Stop{StationID: sid, Type: StopType(int(stype)), Time: NoTime}
	if len(entry) > 2 {
		if t, ok := entry[2].(string); ok && t != "" {
			stop.Time = t
		}
	}
	return stop, nil
}
