package storage

// Store defines the interface over the static route/stop dataset. The
// dataset is seeded once at startup and served read-mostly; live
// connection state never touches it.
type Store interface {
	// Route operations
	SaveRoute(route *Route) error
	GetRoute(id string) (*Route, error)
	GetAllRoutes() ([]*Route, error)
	CountRoutes() (int, error)

	// Stop operations
	SaveStop(stop *Stop) error
	GetStopsByRoute(routeID string) ([]*Stop, error)

	// Lifecycle
	Close() error
}

// Route is one transit route in the static dataset
type Route struct {
	ID          string `json:"id"`
	ShortName   string `json:"short_name"`
	LongName    string `json:"long_name"`
	Description string `json:"description,omitempty"`
}

// Stop is one stop along a route
type Stop struct {
	ID       string  `json:"id"`
	RouteID  string  `json:"route_id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Sequence int     `json:"sequence"`
}
