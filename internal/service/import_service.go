package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/models"
)

const recipeKeyPrefix = "recipe_"

// ImportResult reports one import run.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// ImportService loads the bundled recipe list into the recipe directory,
// skip-inserting by id: a recipe that already exists is counted and left
// alone, never overwritten.
type ImportService struct {
	store   kv.Store
	recipes []models.Recipe
	log     zerolog.Logger
	mu      sync.Mutex
}

func NewImportService(store kv.Store, recipes []models.Recipe, log zerolog.Logger) *ImportService {
	return &ImportService{
		store:   store,
		recipes: recipes,
		log:     log,
	}
}

// Run performs the skip-insert pass. Unlike the degrading read paths
// elsewhere, a storage fault here fails the run: a half-finished import with
// silently dropped recipes would be worse than an explicit 500.
func (s *ImportService) Run(ctx context.Context) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := ImportResult{Total: len(s.recipes)}

	for _, recipe := range s.recipes {
		key := recipeKeyPrefix + recipe.ID

		if _, err := s.store.Get(ctx, key); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, kv.ErrNotFound) {
			return result, fmt.Errorf("check recipe %s: %w", recipe.ID, err)
		}

		raw, err := json.Marshal(recipe)
		if err != nil {
			return result, fmt.Errorf("marshal recipe %s: %w", recipe.ID, err)
		}
		if err := s.store.Set(ctx, key, raw); err != nil {
			return result, fmt.Errorf("store recipe %s: %w", recipe.ID, err)
		}
		result.Inserted++
	}

	s.log.Info().
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Int("total", result.Total).
		Msg("recipe import finished")

	return result, nil
}
