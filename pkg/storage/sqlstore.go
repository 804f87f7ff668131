package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/spawnx1/REALTIMETRACKING/pkg/errors"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectMySQL
	dialectPostgres
)

// sqlStore implements Store over database/sql. Queries are written with
// `?` placeholders and rebound for backends that number theirs.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	return &sqlStore{db: db, d: d}
}

// rebind converts `?` placeholders to `$N` for Postgres
func (s *sqlStore) rebind(query string) string {
	if s.d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) SaveRoute(route *Route) error {
	var query string
	switch s.d {
	case dialectMySQL:
		query = `INSERT INTO routes (id, short_name, long_name, description) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE short_name = VALUES(short_name), long_name = VALUES(long_name), description = VALUES(description)`
	case dialectPostgres:
		query = `INSERT INTO routes (id, short_name, long_name, description) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET short_name = EXCLUDED.short_name, long_name = EXCLUDED.long_name, description = EXCLUDED.description`
	default:
		query = `INSERT INTO routes (id, short_name, long_name, description) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET short_name = excluded.short_name, long_name = excluded.long_name, description = excluded.description`
	}

	_, err := s.db.Exec(s.rebind(query), route.ID, route.ShortName, route.LongName, route.Description)
	if err != nil {
		return fmt.Errorf("save route %s: %w", route.ID, err)
	}
	return nil
}

func (s *sqlStore) GetRoute(id string) (*Route, error) {
	query := s.rebind(`SELECT id, short_name, long_name, description FROM routes WHERE id = ?`)

	route := &Route{}
	err := s.db.QueryRow(query, id).Scan(&route.ID, &route.ShortName, &route.LongName, &route.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", id, err)
	}
	return route, nil
}

func (s *sqlStore) GetAllRoutes() ([]*Route, error) {
	rows, err := s.db.Query(`SELECT id, short_name, long_name, description FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var routes []*Route
	for rows.Next() {
		route := &Route{}
		if err := rows.Scan(&route.ID, &route.ShortName, &route.LongName, &route.Description); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

func (s *sqlStore) CountRoutes() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM routes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count routes: %w", err)
	}
	return n, nil
}

func (s *sqlStore) SaveStop(stop *Stop) error {
	var query string
	switch s.d {
	case dialectMySQL:
		query = `INSERT INTO stops (id, route_id, name, lat, lon, sequence) VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE route_id = VALUES(route_id), name = VALUES(name), lat = VALUES(lat), lon = VALUES(lon), sequence = VALUES(sequence)`
	case dialectPostgres:
		query = `INSERT INTO stops (id, route_id, name, lat, lon, sequence) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET route_id = EXCLUDED.route_id, name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon, sequence = EXCLUDED.sequence`
	default:
		query = `INSERT INTO stops (id, route_id, name, lat, lon, sequence) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET route_id = excluded.route_id, name = excluded.name, lat = excluded.lat, lon = excluded.lon, sequence = excluded.sequence`
	}

	_, err := s.db.Exec(s.rebind(query), stop.ID, stop.RouteID, stop.Name, stop.Lat, stop.Lon, stop.Sequence)
	if err != nil {
		return fmt.Errorf("save stop %s: %w", stop.ID, err)
	}
	return nil
}

func (s *sqlStore) GetStopsByRoute(routeID string) ([]*Stop, error) {
	query := s.rebind(`SELECT id, route_id, name, lat, lon, sequence FROM stops WHERE route_id = ? ORDER BY sequence`)

	rows, err := s.db.Query(query, routeID)
	if err != nil {
		return nil, fmt.Errorf("list stops for route %s: %w", routeID, err)
	}
	defer rows.Close()

	var stops []*Stop
	for rows.Next() {
		stop := &Stop{}
		if err := rows.Scan(&stop.ID, &stop.RouteID, &stop.Name, &stop.Lat, &stop.Lon, &stop.Sequence); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
