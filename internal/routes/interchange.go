package routes

import (
	"context"
	"log"
	"time"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// maxOptionsPerPair caps how many interchange options are kept per station pair.
const maxOptionsPerPair = 5

// StationPair is the ordered (from, to) key of an interchange route list.
type StationPair struct {
	From string
	To   string
}

// Option is one two-train journey: board Train1 at the pair's from station,
// change at Interchange, take Train2 to the pair's to station.
type Option struct {
	Train1      string `json:"train1"`
	Train2      string `json:"train2"`
	Interchange string `json:"interchange"`
}

// Table holds all precomputed interchange options for one dataset revision.
type Table struct {
	Revision int
	Routes   map[StationPair][]Option
}

// commonStation records one station served by both trains of a pair, with
// its index and scheduled time on each.
type commonStation struct {
	stationID  string
	train1Idx  int
	train1Time string
	train2Idx  int
	train2Time string
}

// BuildTable precomputes the best two-train interchanges for every station
// pair without direct service. Worst case O(trains² × stops²); the context
// is checked between train pairs so shutdown can abandon the run.
func BuildTable(ctx context.Context, data *timetable.Dataset) (*Table, error) {
	start := time.Now()
	table := &Table{Revision: data.Revision, Routes: make(map[StationPair][]Option)}

	trainIDs := make([]string, 0, len(data.Trains))
	for id := range data.Trains {
		trainIDs = append(trainIDs, id)
	}

	for _, t1 := range trainIDs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		train1 := data.Trains[t1]
		for _, t2 := range trainIDs {
			if t1 == t2 {
				continue
			}
			train2 := data.Trains[t2]

			common := commonStations(train1.Stops, train2.Stops)
			if len(common) == 0 {
				continue
			}

			addPairOptions(table.Routes, t1, train1.Stops, t2, train2.Stops, common)
		}
	}

	log.Printf("interchange: precomputed %d station pairs from %d trains in %s",
		len(table.Routes), len(trainIDs), time.Since(start).Round(time.Millisecond))
	return table, nil
}

// commonStations pairs every boardable stop of train1 with every matching
// boardable stop of train2 by station id.
func commonStations(stops1, stops2 []timetable.Stop) []commonStation {
	var common []commonStation
	for i, s1 := range stops1 {
		if !s1.Type.Boardable() {
			continue
		}
		for j, s2 := range stops2 {
			if !s2.Type.Boardable() {
				continue
			}
			if s1.StationID == s2.StationID {
				common = append(common, commonStation{
					stationID:  s1.StationID,
					train1Idx:  i,
					train1Time: s1.Time,
					train2Idx:  j,
					train2Time: s2.Time,
				})
			}
		}
	}
	return common
}

func addPairOptions(routes map[StationPair][]Option, t1 string, stops1 []timetable.Stop, t2 string, stops2 []timetable.Stop, common []commonStation) {
	for fromIdx, from := range stops1 {
		if !from.Type.Boardable() {
			continue
		}
		for toIdx, to := range stops2 {
			if !to.Type.Boardable() {
				continue
			}
			if from.StationID == to.StationID {
				continue
			}
			// A two-train path is only interesting when no single train
			// already covers the pair.
			if reachesAfter(stops1, to.StationID, fromIdx) ||
				reachesBefore(stops2, from.StationID, toIdx) {
				continue
			}

			best, ok := bestInterchange(common, fromIdx, toIdx)
			if !ok {
				continue
			}

			key := StationPair{From: from.StationID, To: to.StationID}
			option := Option{Train1: t1, Train2: t2, Interchange: best}
			if len(routes[key]) >= maxOptionsPerPair || containsOption(routes[key], option) {
				continue
			}
			routes[key] = append(routes[key], option)
		}
	}
}

// reachesAfter reports whether the train serves toID at a later index than
// fromIdx, i.e. it already covers the journey by itself.
func reachesAfter(stops []timetable.Stop, toID string, fromIdx int) bool {
	for i, s := range stops {
		if i > fromIdx && s.Type.Boardable() && s.StationID == toID {
			return true
		}
	}
	return false
}

// reachesBefore reports whether the train serves fromID before toIdx.
func reachesBefore(stops []timetable.Stop, fromID string, toIdx int) bool {
	for i, s := range stops {
		if i < toIdx && s.Type.Boardable() && s.StationID == fromID {
			return true
		}
	}
	return false
}

// bestInterchange selects the common station strictly between the boarding
// index on train1 and the alighting index on train2 with the largest
// non-negative wait between train1's arrival and train2's departure.
func bestInterchange(common []commonStation, fromIdx, toIdx int) (string, bool) {
	best := ""
	maxWait := -1
	for _, c := range common {
		if c.train1Idx <= fromIdx || c.train2Idx >= toIdx {
			continue
		}
		arrival, ok := timetable.ParseClock(c.train1Time)
		if !ok {
			continue
		}
		departure, ok := timetable.ParseClock(c.train2Time)
		if !ok {
			continue
		}
		wait := timetable.WaitMinutes(arrival, departure)
		if wait > maxWait {
			maxWait = wait
			best = c.stationID
		}
	}
	return best, best != ""
}

func containsOption(options []Option, o Option) bool {
	for _, existing := range options {
		if existing == o {
			return true
		}
	}
	return false
}

// Lookup returns the option list for an ordered station pair.
func (t *Table) Lookup(fromID, toID string) []Option {
	return t.Routes[StationPair{From: fromID, To: toID}]
}
