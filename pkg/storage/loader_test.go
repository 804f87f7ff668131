package storage

import (
	"os"
	"path/filepath"
	"testing"
)

// memStore is an in-memory Store for loader tests
type memStore struct {
	routes map[string]*Route
	stops  map[string]*Stop
}

func newMemStore() *memStore {
	return &memStore{routes: make(map[string]*Route), stops: make(map[string]*Stop)}
}

func (m *memStore) SaveRoute(r *Route) error { m.routes[r.ID] = r; return nil }
func (m *memStore) GetRoute(id string) (*Route, error) {
	return m.routes[id], nil
}
func (m *memStore) GetAllRoutes() ([]*Route, error) {
	var out []*Route
	for _, r := range m.routes {
		out = append(out, r)
	}
	return out, nil
}
func (m *memStore) CountRoutes() (int, error) { return len(m.routes), nil }
func (m *memStore) SaveStop(s *Stop) error    { m.stops[s.ID] = s; return nil }
func (m *memStore) GetStopsByRoute(routeID string) ([]*Stop, error) {
	var out []*Stop
	for _, s := range m.stops {
		if s.RouteID == routeID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m *memStore) Close() error { return nil }

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDataset(t *testing.T) {
	path := writeDataset(t, `{
		"routes": [
			{
				"id": "r1",
				"short_name": "10",
				"long_name": "Downtown Loop",
				"stops": [
					{"id": "s1", "name": "Main St", "lat": 40.0, "lon": -3.0, "sequence": 1},
					{"id": "s2", "name": "Second Ave", "lat": 40.1, "lon": -3.1, "sequence": 2}
				]
			},
			{"id": "r2", "short_name": "22", "long_name": "Airport Express"}
		]
	}`)

	store := newMemStore()
	routes, stops, err := LoadDataset(store, path)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if routes != 2 || stops != 2 {
		t.Errorf("Expected 2 routes and 2 stops, got %d and %d", routes, stops)
	}
	if store.stops["s1"].RouteID != "r1" {
		t.Error("Stop should inherit its route's ID")
	}
}

func TestLoadDatasetMissingFile(t *testing.T) {
	if _, _, err := LoadDataset(newMemStore(), "/nonexistent/dataset.json"); err == nil {
		t.Error("LoadDataset should fail for a missing file")
	}
}

func TestLoadDatasetMalformedJSON(t *testing.T) {
	path := writeDataset(t, `{"routes": [`)
	if _, _, err := LoadDataset(newMemStore(), path); err == nil {
		t.Error("LoadDataset should fail for malformed JSON")
	}
}

func TestLoadDatasetRouteWithoutID(t *testing.T) {
	path := writeDataset(t, `{"routes": [{"short_name": "10"}]}`)
	if _, _, err := LoadDataset(newMemStore(), path); err == nil {
		t.Error("LoadDataset should reject routes without an id")
	}
}
