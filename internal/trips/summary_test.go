package trips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusride/nexusride-web/internal/backend"
)

func sampleTrips() []backend.Trip {
	return []backend.Trip{
		{ID: "TRP-3", RouteName: "Route-2", TripDate: "2026-01-24", StartTime: "17:30", TotalCapacity: 28, BookedSeats: 10, AvailableSeats: 18},
		{ID: "TRP-1", RouteName: "Route-1", TripDate: "2026-01-24", StartTime: "07:45", TotalCapacity: 32, BookedSeats: 30, AvailableSeats: 2},
		{ID: "TRP-2", RouteName: "Route-2", TripDate: "2026-01-24", StartTime: "08:15", TotalCapacity: 28, BookedSeats: 21, AvailableSeats: 7},
		{ID: "TRP-0", RouteName: "Route-2", TripDate: "2026-01-23", StartTime: "18:00", TotalCapacity: 28, BookedSeats: 28, AvailableSeats: 0},
	}
}

func TestGroupByRoute(t *testing.T) {
	groups := GroupByRoute(sampleTrips())
	require.Len(t, groups, 2)

	assert.Equal(t, "Route-1", groups[0].RouteName)
	assert.Equal(t, Totals{Trips: 1, Capacity: 32, Booked: 30, Available: 2}, groups[0].Totals)

	assert.Equal(t, "Route-2", groups[1].RouteName)
	var ids []backend.ID
	for _, trip := range groups[1].Trips {
		ids = append(ids, trip.ID)
	}
	assert.Equal(t, []backend.ID{"TRP-0", "TRP-2", "TRP-3"}, ids)
	assert.Equal(t, Totals{Trips: 3, Capacity: 84, Booked: 59, Available: 25}, groups[1].Totals)
}

func TestGroupByRouteUnassigned(t *testing.T) {
	groups := GroupByRoute([]backend.Trip{{ID: "X", TotalCapacity: 10}})
	require.Len(t, groups, 1)
	assert.Equal(t, "Unassigned", groups[0].RouteName)
	assert.Empty(t, GroupByRoute(nil))
}

func TestSum(t *testing.T) {
	assert.Equal(t, Totals{Trips: 4, Capacity: 116, Booked: 89, Available: 27}, Sum(sampleTrips()))
	assert.Equal(t, Totals{}, Sum(nil))
}

func TestOnRoute(t *testing.T) {
	assert.Len(t, OnRoute(sampleTrips(), "route-2"), 3)
	assert.Empty(t, OnRoute(sampleTrips(), "Route-9"))
}

func TestCatalog(t *testing.T) {
	routes := Catalog()
	require.Len(t, routes, 2)
	assert.Equal(t, "Tongi Station Road", routes[0].ToCampus()[0])
	assert.Equal(t, "Tongi Station Road", routes[0].GoingHome()[5])
	assert.Equal(t, "Motijheel", routes[1].GoingHome()[0])

	routes[0].Stops[0] = "changed"
	assert.Equal(t, "Tongi Station Road", Catalog()[0].Stops[0])

	route, ok := RouteForStop(" mirpur 10 ")
	require.True(t, ok)
	assert.Equal(t, "Route-2", route.Name)
	assert.False(t, KnownStop("Gulshan"))

	_, ok = RouteByID("ROUTE-1")
	assert.True(t, ok)
}
