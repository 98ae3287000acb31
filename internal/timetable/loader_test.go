package timetable

import "testing"

const sampleDataset = `{
	"Revision": 7,
	"tid_to_stations": {
		"701": [
			["Dhaka", 1, "08:00"],
			["Tongi", -1, "08:25"],
			["Airport", 0],
			["Chattogram", 1, "13:30"]
		]
	},
	"sid_to_sloc": {
		"Dhaka": [23.7104, 90.4074],
		"Tongi": [23.8897, 90.4058],
		"Chattogram": [22.3569, 91.7832],
		"Ghost": [0, 0]
	},
	"sid_to_sname": {
		"Dhaka": "Dhaka Kamalapur",
		"Chattogram": "Chattogram",
		"Orphan": "Orphan Halt"
	},
	"train_names": {"701": "Subarna Express"}
}`

func TestParseDataset(t *testing.T) {
	d, err := Parse([]byte(sampleDataset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if d.Revision != 7 {
		t.Errorf("revision = %d, want 7", d.Revision)
	}

	train := d.Train("701")
	if train == nil {
		t.Fatal("train 701 missing")
	}
	if train.Name != "Subarna Express" {
		t.Errorf("train name = %q", train.Name)
	}
	if len(train.Stops) != 4 {
		t.Fatalf("got %d stops, want 4", len(train.Stops))
	}
	if train.Stops[0].Type != StopRegular || train.Stops[0].Time != "08:00" {
		t.Errorf("first stop = %+v", train.Stops[0])
	}
	if train.Stops[1].Type != StopPassThrough {
		t.Errorf("second stop type = %v, want pass-through", train.Stops[1].Type)
	}
	if train.Stops[2].Type != StopUnknown || train.Stops[2].Time != NoTime {
		t.Errorf("placeholder stop = %+v", train.Stops[2])
	}

	if d.Station("Ghost").HasCoordinates() {
		t.Error("(0,0) station should report no coordinates")
	}
	// Name-only stations still get an entry with the sentinel coordinate.
	orphan := d.Station("Orphan")
	if orphan == nil {
		t.Fatal("name-only station missing")
	} else if orphan.HasCoordinates() {
		t.Error("name-only station should have sentinel coordinates")
	}
}

func TestResolveStation(t *testing.T) {
	d, err := Parse([]byte(sampleDataset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if id, ok := d.ResolveStation("dhaka"); !ok || id != "Dhaka" {
		t.Errorf("ResolveStation(dhaka) = %q, %v", id, ok)
	}
	if id, ok := d.ResolveStation(" Tongi "); !ok || id != "Tongi" {
		t.Errorf("ResolveStation with whitespace = %q, %v", id, ok)
	}
	if _, ok := d.ResolveStation("Nowhere"); ok {
		t.Error("unknown station should not resolve")
	}

	suggestions := d.SuggestStations("chatto", 5)
	if len(suggestions) != 1 || suggestions[0] != "Chattogram" {
		t.Errorf("suggestions = %v", suggestions)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"00:00", 0, true},
		{"08:30", 510, true},
		{"23:59", 1439, true},
		{NoTime, 0, false},
		{"", 0, false},
		{"8am", 0, false},
		{"12", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			m, ok := ParseClock(tc.in)
			if m != tc.minutes || ok != tc.ok {
				t.Errorf("ParseClock(%q) = %d, %v; want %d, %v", tc.in, m, ok, tc.minutes, tc.ok)
			}
		})
	}
}

func TestWaitMinutes(t *testing.T) {
	if got := WaitMinutes(600, 630); got != 30 {
		t.Errorf("same-day wait = %d, want 30", got)
	}
	// Arrival 23:50, departure 00:10 next day.
	if got := WaitMinutes(1430, 10); got != 20 {
		t.Errorf("midnight wait = %d, want 20", got)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	if got := NormalizeTimestamp(1700000000); got != 1700000000 {
		t.Errorf("seconds value changed: %d", got)
	}
	if got := NormalizeTimestamp(1700000000123); got != 1700000000 {
		t.Errorf("milliseconds not normalized: %d", got)
	}
	// Boundary: exactly the threshold stays in seconds.
	if got := NormalizeTimestamp(2500000000); got != 2500000000 {
		t.Errorf("threshold value changed: %d", got)
	}
}
