package models

// Recipe is a document in the recipe directory. The import endpoint
// skip-inserts these by ID; nothing in this service edits them afterwards.
type Recipe struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Calories     int      `json:"calories,omitempty"`
	PrepMinutes  int      `json:"prepMinutes,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
}
