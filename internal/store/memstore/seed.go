package memstore

import (
	"fmt"
	"os"

	"asset-custody-api/internal/models"

	"gopkg.in/yaml.v3"
)

type principalEntry struct {
	ID          string `yaml:"id"`
	Role        string `yaml:"role"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

// LoadPrincipals reads a YAML list of principals for seeding a Store
func LoadPrincipals(path string) ([]models.Principal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read principals %s: %w", path, err)
	}
	var entries []principalEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse principals %s: %w", path, err)
	}

	out := make([]models.Principal, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("principals %s: entry %d has no id", path, i)
		}
		if !models.IsValidRole(e.Role) {
			return nil, fmt.Errorf("principals %s: %s has unknown role %q", path, e.ID, e.Role)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("principals %s: duplicate id %s", path, e.ID)
		}
		seen[e.ID] = true
		out = append(out, models.Principal{
			ID:          e.ID,
			Role:        models.Role(e.Role),
			DisplayName: e.DisplayName,
			Email:       e.Email,
		})
	}
	return out, nil
}
