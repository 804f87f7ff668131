package storage

import (
	"encoding/json"
	"fmt"
	"os"
)

// datasetFile is the on-disk JSON shape of the static route/stop dataset
type datasetFile struct {
	Routes []datasetRoute `json:"routes"`
}

type datasetRoute struct {
	ID          string        `json:"id"`
	ShortName   string        `json:"short_name"`
	LongName    string        `json:"long_name"`
	Description string        `json:"description"`
	Stops       []datasetStop `json:"stops"`
}

type datasetStop struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Sequence int     `json:"sequence"`
}

// LoadDataset seeds the store from a JSON dataset file. Returns the number
// of routes and stops written. Existing entries with matching IDs are
// overwritten, so reloading the same file is safe.
func LoadDataset(store Store, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read dataset file: %w", err)
	}

	var file datasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("parse dataset file: %w", err)
	}

	routes, stops := 0, 0
	for _, dr := range file.Routes {
		if dr.ID == "" {
			return routes, stops, fmt.Errorf("dataset route missing id")
		}
		if err := store.SaveRoute(&Route{
			ID:          dr.ID,
			ShortName:   dr.ShortName,
			LongName:    dr.LongName,
			Description: dr.Description,
		}); err != nil {
			return routes, stops, err
		}
		routes++

		for _, ds := range dr.Stops {
			if ds.ID == "" {
				return routes, stops, fmt.Errorf("dataset stop missing id on route %s", dr.ID)
			}
			if err := store.SaveStop(&Stop{
				ID:       ds.ID,
				RouteID:  dr.ID,
				Name:     ds.Name,
				Lat:      ds.Lat,
				Lon:      ds.Lon,
				Sequence: ds.Sequence,
			}); err != nil {
				return routes, stops, err
			}
			stops++
		}
	}

	return routes, stops, nil
}
