package routes

import (
	"errors"
	"testing"

	"github.com/Jisangain/find-my-br-train/internal/geo"
	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// nearbyDataset lays stations on a line roughly 0.01 degrees (~1.1 km) apart:
//
//	A --- B ----------------------- C --- D
//	       \_ AltB            AltC _/
//
// Train "direct" serves A->C. Train "alt" serves AltB->AltC, where AltB is
// close to A and AltC close to C.
func nearbyDataset() *timetable.Dataset {
	st := func(id string, lat, lon float64) *timetable.Station {
		return &timetable.Station{ID: id, Name: id, Lat: lat, Lon: lon}
	}
	return &timetable.Dataset{
		Revision: 1,
		Stations: map[string]*timetable.Station{
			"A":    st("A", 23.70, 90.40),
			"AltB": st("AltB", 23.72, 90.40),
			"C":    st("C", 24.70, 90.40),
			"AltC": st("AltC", 24.68, 90.40),
			"D":    st("D", 25.70, 90.40),
			"NoGeo": st("NoGeo", 0, 0),
		},
		Trains: map[string]*timetable.Train{
			"direct": {ID: "direct", Stops: []timetable.Stop{
				{StationID: "A", Type: timetable.StopRegular, Time: "08:00"},
				{StationID: "C", Type: timetable.StopRegular, Time: "10:00"},
			}},
			"alt": {ID: "alt", Stops: []timetable.Stop{
				{StationID: "AltB", Type: timetable.StopRegular, Time: "08:30"},
				{StationID: "AltC", Type: timetable.StopRegular, Time: "10:30"},
			}},
			"wrongway": {ID: "wrongway", Stops: []timetable.Stop{
				{StationID: "AltC", Type: timetable.StopRegular, Time: "08:30"},
				{StationID: "AltB", Type: timetable.StopRegular, Time: "10:30"},
			}},
		},
	}
}

func newTestFinder(data *timetable.Dataset) *NearbyFinder {
	return NewNearbyFinder(data, geo.BuildDistanceIndex(data), ProjectRoutes(data))
}

func TestNearbyFindsAlternative(t *testing.T) {
	finder := newTestFinder(nearbyDataset())

	res, err := finder.Find("A", "C")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if _, ok := res.AlternativeTrains["direct"]; ok {
		t.Error("direct train must not be listed as an alternative")
	}
	if _, ok := res.AlternativeTrains["wrongway"]; ok {
		t.Error("train serving the stations in reverse order must not match")
	}

	alt, ok := res.AlternativeTrains["alt"]
	if !ok {
		t.Fatalf("alternative train missing, got %v", res.AlternativeTrains)
	}
	if len(alt.FromNearby) != 1 || alt.FromNearby[0] != "AltB" {
		t.Errorf("from_nearby = %v, want [AltB]", alt.FromNearby)
	}
	if len(alt.ToNearby) != 1 || alt.ToNearby[0] != "AltC" {
		t.Errorf("to_nearby = %v, want [AltC]", alt.ToNearby)
	}
	if res.Total != len(res.AlternativeTrains) {
		t.Errorf("total = %d, want %d", res.Total, len(res.AlternativeTrains))
	}
}

func TestNearbyCaseInsensitiveLookup(t *testing.T) {
	finder := newTestFinder(nearbyDataset())

	res, err := finder.Find("a", "c")
	if err != nil {
		t.Fatalf("Find with lowercase ids: %v", err)
	}
	if res.From != "A" || res.To != "C" {
		t.Errorf("resolved pair = %s->%s", res.From, res.To)
	}
}

func TestNearbyUnknownStation(t *testing.T) {
	finder := newTestFinder(nearbyDataset())

	_, err := finder.Find("Alt", "C")
	var unknown *UnknownStationError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownStationError, got %v", err)
	}
	if len(unknown.Suggestions) == 0 {
		t.Error("expected substring suggestions for partial input")
	}
}

func TestNearbyRejectsUnlocatedStation(t *testing.T) {
	finder := newTestFinder(nearbyDataset())

	if _, err := finder.Find("NoGeo", "C"); !errors.Is(err, ErrNoCoordinates) {
		t.Errorf("want ErrNoCoordinates, got %v", err)
	}
}

func TestProjectionDirectTrains(t *testing.T) {
	proj := ProjectRoutes(nearbyDataset())

	direct := proj.DirectTrains("A", "C")
	if !direct["direct"] {
		t.Error("A->C should be served by the direct train")
	}
	if len(direct) != 1 {
		t.Errorf("direct set = %v", direct)
	}
	if d := proj.DirectTrains("C", "A"); len(d) != 0 {
		t.Errorf("reverse direction should have no direct trains, got %v", d)
	}
}

func TestProjectionDropsNonRegularStops(t *testing.T) {
	data := nearbyDataset()
	data.Trains["direct"].Stops = append(data.Trains["direct"].Stops,
		timetable.Stop{StationID: "D", Type: timetable.StopPassThrough, Time: "11:00"})

	proj := ProjectRoutes(data)
	for _, sid := range proj["direct"] {
		if sid == "D" {
			t.Error("pass-through stop survived projection")
		}
	}
}
