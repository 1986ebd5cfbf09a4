// Package dataset embeds the sample client portfolio and seeds it into a
// store.
package dataset

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Mr-Dark-debug/pulse/internal/database"
	"github.com/Mr-Dark-debug/pulse/pkg/timeutil"
)

//go:embed sample.yaml
var sampleYAML []byte

type file struct {
	Clients []*database.Client `yaml:"clients"`
}

// Load parses the embedded sample portfolio.
func Load() ([]*database.Client, error) {
	return Parse(sampleYAML)
}

// Parse decodes and validates a portfolio document.
func Parse(data []byte) ([]*database.Client, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}

	seen := make(map[string]bool, len(f.Clients))
	for i, c := range f.Clients {
		switch {
		case c.ClientID == "":
			return nil, fmt.Errorf("client %d: missing id", i)
		case seen[c.ClientID]:
			return nil, fmt.Errorf("client %s: duplicate id", c.ClientID)
		case c.Name == "" || c.Manager == "" || c.Industry == "":
			return nil, fmt.Errorf("client %s: name, manager and industry are required", c.ClientID)
		case c.Health < 0 || c.Health > 100:
			return nil, fmt.Errorf("client %s: health %v outside 0-100", c.ClientID, c.Health)
		}
		seen[c.ClientID] = true
	}
	return f.Clients, nil
}

// SeedIfEmpty loads the sample portfolio into store when it has no clients.
// It returns the number of clients inserted.
func SeedIfEmpty(store database.Store) (int, error) {
	n, err := store.CountClients()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	return Seed(store)
}

// Seed upserts the sample portfolio into store.
func Seed(store database.Store) (int, error) {
	clients, err := Load()
	if err != nil {
		return 0, err
	}
	now := timeutil.NowNano()
	for _, c := range clients {
		c.UpdatedAt = now
	}
	if err := store.BatchInsertClients(clients); err != nil {
		return 0, fmt.Errorf("seeding sample clients: %w", err)
	}
	return len(clients), nil
}
