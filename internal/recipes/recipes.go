// Package recipes carries the recipe list bundled with the import endpoint.
package recipes

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"nutriplan/api/internal/models"
)

//go:embed recipes.json
var bundled []byte

// Bundled decodes the embedded recipe list.
func Bundled() ([]models.Recipe, error) {
	var list []models.Recipe
	if err := json.Unmarshal(bundled, &list); err != nil {
		return nil, fmt.Errorf("decode bundled recipes: %w", err)
	}
	return list, nil
}
