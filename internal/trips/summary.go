package trips

import (
	"sort"
	"strings"

	"github.com/nexusride/nexusride-web/internal/backend"
)

// Totals aggregates seat counts over a set of trips.
type Totals struct {
	Trips     int
	Capacity  int
	Booked    int
	Available int
}

// Add folds one trip into the totals.
func (t *Totals) Add(trip backend.Trip) {
	t.Trips++
	t.Capacity += trip.TotalCapacity
	t.Booked += trip.BookedSeats
	t.Available += trip.AvailableSeats
}

// Sum totals every trip.
func Sum(trips []backend.Trip) Totals {
	var t Totals
	for _, trip := range trips {
		t.Add(trip)
	}
	return t
}

// RouteGroup is the trips of one route, earliest first.
type RouteGroup struct {
	RouteName string
	Trips     []backend.Trip
	Totals    Totals
}

// GroupByRoute buckets trips by route name. Groups are sorted by name and
// trips within a group by date then start time. Trips without a route name
// land in "Unassigned".
func GroupByRoute(trips []backend.Trip) []RouteGroup {
	index := make(map[string]int)
	var groups []RouteGroup
	for _, trip := range trips {
		name := strings.TrimSpace(trip.RouteName)
		if name == "" {
			name = "Unassigned"
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, RouteGroup{RouteName: name})
		}
		groups[i].Trips = append(groups[i].Trips, trip)
		groups[i].Totals.Add(trip)
	}

	sort.Slice(groups, func(a, b int) bool { return groups[a].RouteName < groups[b].RouteName })
	for _, g := range groups {
		sort.SliceStable(g.Trips, func(a, b int) bool {
			if g.Trips[a].TripDate != g.Trips[b].TripDate {
				return g.Trips[a].TripDate < g.Trips[b].TripDate
			}
			return g.Trips[a].StartTime < g.Trips[b].StartTime
		})
	}
	return groups
}

// OnRoute keeps the trips whose route name matches name.
func OnRoute(trips []backend.Trip, name string) []backend.Trip {
	var out []backend.Trip
	for _, trip := range trips {
		if strings.EqualFold(strings.TrimSpace(trip.RouteName), strings.TrimSpace(name)) {
			out = append(out, trip)
		}
	}
	return out
}
