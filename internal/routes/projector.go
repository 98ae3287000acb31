// Package routes precomputes interchange options between station pairs and
// answers nearby-alternative queries against the distance index.
package routes

import "github.com/Jisangain/find-my-br-train/internal/timetable"

// Projection maps each train id to its ordered regular-stop station ids.
// Pass-through and placeholder stops are removed; what remains is the route
// as a passenger can actually use it.
type Projection map[string][]string

// ProjectRoutes builds the regular-stop projection for every train.
func ProjectRoutes(data *timetable.Dataset) Projection {
	proj := make(Projection, len(data.Trains))
	for id, train := range data.Trains {
		var stops []string
		for _, stop := range train.Stops {
			if stop.Type == timetable.StopRegular {
				stops = append(stops, stop.StationID)
			}
		}
		proj[id] = stops
	}
	return proj
}

// DirectTrains returns the trains serving from before to, in stop order.
func (p Projection) DirectTrains(fromID, toID string) map[string]bool {
	direct := make(map[string]bool)
	for trainID, stops := range p {
		fromIdx, toIdx := -1, -1
		for i, sid := range stops {
			if sid == fromID && fromIdx == -1 {
				fromIdx = i
			}
			if sid == toID && toIdx == -1 {
				toIdx = i
			}
		}
		if fromIdx >= 0 && toIdx >= 0 && fromIdx < toIdx {
			direct[trainID] = true
		}
	}
	return direct
}
