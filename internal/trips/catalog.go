package trips

import "strings"

// Route is a shuttle line with its stops in the to-campus order.
type Route struct {
	ID    string
	Name  string
	Stops []string
}

// ToCampus lists the stops in boarding order towards the campus.
func (r Route) ToCampus() []string {
	return r.Stops
}

// GoingHome lists the stops in reverse for the evening run.
func (r Route) GoingHome() []string {
	out := make([]string, len(r.Stops))
	for i, stop := range r.Stops {
		out[len(r.Stops)-1-i] = stop
	}
	return out
}

var catalog = []Route{
	{
		ID:    "route-1",
		Name:  "Route-1",
		Stops: []string{"Tongi Station Road", "Uttara Sector 7", "Airport", "Banani", "Mohakhali", "Farmgate"},
	},
	{
		ID:    "route-2",
		Name:  "Route-2",
		Stops: []string{"Abdullahpur", "Mirpur 10", "Agargaon", "Bijoy Sarani", "Shahbagh", "Motijheel"},
	},
}

// Catalog returns a copy of the known routes.
func Catalog() []Route {
	out := make([]Route, len(catalog))
	for i, r := range catalog {
		r.Stops = append([]string(nil), r.Stops...)
		out[i] = r
	}
	return out
}

// RouteByID finds a route by id, case-insensitively.
func RouteByID(id string) (Route, bool) {
	for _, r := range catalog {
		if strings.EqualFold(r.ID, strings.TrimSpace(id)) {
			return r, true
		}
	}
	return Route{}, false
}

// RouteForStop returns the route serving stop.
func RouteForStop(stop string) (Route, bool) {
	stop = strings.TrimSpace(stop)
	for _, r := range catalog {
		for _, s := range r.Stops {
			if strings.EqualFold(s, stop) {
				return r, true
			}
		}
	}
	return Route{}, false
}

// KnownStop reports whether stop belongs to any route.
func KnownStop(stop string) bool {
	_, ok := RouteForStop(stop)
	return ok
}
