package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nutriplan/api/internal/cache"
	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/models"
	"nutriplan/api/internal/security"
)

var (
	ErrMissingIdentifiers = errors.New("recipe id and user id are required")
	ErrRatingNotInteger   = errors.New("rating must be a whole number")
	ErrRatingOutOfRange   = errors.New("rating must be between 1 and 5")
	ErrEmptyReply         = errors.New("reply content is required")
	ErrRatingNotFound     = errors.New("target rating not found")
)

const ratingsKey = "recipe_ratings"

// recipeAggregate pairs a recipe id with its ratings. The ledger document is
// an ordered list of these, so tie-breaks in TopRated stay stable across
// serialization.
type recipeAggregate struct {
	RecipeID string `json:"recipeId"`
	models.RecipeRatings
}

// AddRatingResult reports whether the upsert inserted or updated, plus the
// refreshed aggregate numbers.
type AddRatingResult struct {
	IsUpdate      bool    `json:"isUpdate"`
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int     `json:"totalRatings"`
}

// ReplyRole is the default role recorded on a reply when the caller supplies
// none.
const DefaultReplyRole = security.RoleNutritionist

// RatingService owns per-recipe rating collections: one rating per
// (recipe, user), derived averages recomputed after every mutation, and
// append-only moderator replies. Every mutation rewrites the whole ledger
// document; two racing writers overwrite each other last-writer-wins, an
// accepted property of the storage medium.
type RatingService struct {
	store     kv.Store
	cache     *cache.TTL
	ratingTTL time.Duration
	log       zerolog.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewRatingService(store kv.Store, ttlCache *cache.TTL, ratingTTL time.Duration, log zerolog.Logger) *RatingService {
	if ratingTTL <= 0 {
		ratingTTL = 5 * time.Minute
	}
	return &RatingService{
		store:     store,
		cache:     ttlCache,
		ratingTTL: ratingTTL,
		log:       log,
		now:       time.Now,
	}
}

// WithClock substitutes the time source. Test hook.
func (s *RatingService) WithClock(now func() time.Time) *RatingService {
	s.now = now
	return s
}

func ratingCacheKey(recipeID string) string {
	return "rating_" + recipeID
}

// GetRecipeRatings returns a recipe's aggregate, serving from the cache when
// fresh and repopulating it on a miss. Unknown recipes yield an empty
// aggregate.
func (s *RatingService) GetRecipeRatings(ctx context.Context, recipeID string) models.RecipeRatings {
	var cached models.RecipeRatings
	if s.cache.Get(ctx, ratingCacheKey(recipeID), &cached) {
		return cached
	}

	ledger := s.loadLedger(ctx)
	result := models.RecipeRatings{Ratings: []models.Rating{}}
	if idx := findRecipe(ledger, recipeID); idx != -1 {
		result = ledger[idx].RecipeRatings
	}

	s.cache.Set(ctx, ratingCacheKey(recipeID), result, s.ratingTTL)
	return result
}

// UserRating returns userID's rating of the recipe, or nil.
func (s *RatingService) UserRating(ctx context.Context, recipeID, userID string) *models.Rating {
	aggregate := s.GetRecipeRatings(ctx, recipeID)
	if idx := aggregate.Find(userID); idx != -1 {
		rating := aggregate.Ratings[idx]
		return &rating
	}
	return nil
}

// AddRating upserts a rating keyed by user. The rating must be an integer in
// [1,5]; validation failures return a descriptive error and leave the ledger
// untouched. Updating preserves the existing reply thread.
func (s *RatingService) AddRating(ctx context.Context, recipeID string, rating float64, userID, comment string) (AddRatingResult, error) {
	if recipeID == "" || userID == "" {
		return AddRatingResult{}, ErrMissingIdentifiers
	}
	if math.IsNaN(rating) || rating != math.Trunc(rating) {
		return AddRatingResult{}, ErrRatingNotInteger
	}
	value := int(rating)
	if value < 1 || value > 5 {
		return AddRatingResult{}, ErrRatingOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.loadLedger(ctx)
	idx := findRecipe(ledger, recipeID)
	if idx == -1 {
		ledger = append(ledger, recipeAggregate{
			RecipeID:      recipeID,
			RecipeRatings: models.RecipeRatings{Ratings: []models.Rating{}},
		})
		idx = len(ledger) - 1
	}
	aggregate := &ledger[idx]

	entry := models.Rating{
		UserID:    userID,
		Rating:    value,
		Comment:   comment,
		Timestamp: s.now(),
		Replies:   []models.Reply{},
	}

	existing := aggregate.Find(userID)
	isUpdate := existing != -1
	if isUpdate {
		entry.Replies = aggregate.Ratings[existing].Replies
		aggregate.Ratings[existing] = entry
	} else {
		aggregate.Ratings = append(aggregate.Ratings, entry)
	}

	aggregate.Recompute()
	s.saveLedger(ctx, ledger)
	s.cache.Set(ctx, ratingCacheKey(recipeID), aggregate.RecipeRatings, s.ratingTTL)

	return AddRatingResult{
		IsUpdate:      isUpdate,
		AverageRating: aggregate.AverageRating,
		TotalRatings:  aggregate.TotalRatings,
	}, nil
}

// RemoveRating deletes userID's rating of the recipe and recomputes the
// aggregate. Callers remove their own entry; the privileged path lets an
// authorized moderator remove anyone's. Whether the caller is actually
// authorized is the router guard's concern, not this ledger's. Reports false
// when no matching entry existed.
func (s *RatingService) RemoveRating(ctx context.Context, recipeID, userID string, privileged bool) bool {
	if privileged {
		s.log.Info().Str("recipe_id", recipeID).Str("user_id", userID).Msg("privileged rating removal")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.loadLedger(ctx)
	idx := findRecipe(ledger, recipeID)
	if idx == -1 {
		return false
	}
	aggregate := &ledger[idx]

	target := aggregate.Find(userID)
	if target == -1 {
		return false
	}

	aggregate.Ratings = append(aggregate.Ratings[:target], aggregate.Ratings[target+1:]...)
	aggregate.Recompute()

	s.saveLedger(ctx, ledger)
	s.cache.Set(ctx, ratingCacheKey(recipeID), aggregate.RecipeRatings, s.ratingTTL)
	return true
}

// AddReply appends a moderator reply to an existing rating. Replies are
// append-only and order-preserving; empty content and missing targets fail
// without mutating anything.
func (s *RatingService) AddReply(ctx context.Context, recipeID, targetUserID, replierUserID string, replierRole security.Role, content string) ([]models.Reply, error) {
	if recipeID == "" || targetUserID == "" || replierUserID == "" {
		return nil, ErrMissingIdentifiers
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyReply
	}
	if replierRole == "" {
		replierRole = DefaultReplyRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.loadLedger(ctx)
	idx := findRecipe(ledger, recipeID)
	if idx == -1 {
		return nil, ErrRatingNotFound
	}
	aggregate := &ledger[idx]

	target := aggregate.Find(targetUserID)
	if target == -1 {
		return nil, ErrRatingNotFound
	}

	reply := models.Reply{
		UserID:    replierUserID,
		Role:      replierRole,
		Content:   content,
		Timestamp: s.now(),
	}
	aggregate.Ratings[target].Replies = append(aggregate.Ratings[target].Replies, reply)

	s.saveLedger(ctx, ledger)
	s.cache.Set(ctx, ratingCacheKey(recipeID), aggregate.RecipeRatings, s.ratingTTL)

	return aggregate.Ratings[target].Replies, nil
}

// TopRated lists recipe ids ordered by average rating, best first. Recipes
// with no ratings are excluded; ties keep ledger order thanks to the stable
// sort.
func (s *RatingService) TopRated(ctx context.Context, limit int) []string {
	if limit <= 0 {
		limit = 10
	}

	ledger := s.loadLedger(ctx)

	rated := make([]recipeAggregate, 0, len(ledger))
	for _, aggregate := range ledger {
		if aggregate.TotalRatings > 0 {
			rated = append(rated, aggregate)
		}
	}

	sort.SliceStable(rated, func(i, j int) bool {
		return rated[i].AverageRating > rated[j].AverageRating
	})

	if len(rated) > limit {
		rated = rated[:limit]
	}

	ids := make([]string, len(rated))
	for i, aggregate := range rated {
		ids[i] = aggregate.RecipeID
	}
	return ids
}

// loadLedger reads the whole ratings document; faults degrade to an empty
// ledger after logging.
func (s *RatingService) loadLedger(ctx context.Context) []recipeAggregate {
	raw, err := s.store.Get(ctx, ratingsKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error().Err(err).Msg("load ratings ledger")
		}
		return nil
	}

	var ledger []recipeAggregate
	if err := json.Unmarshal(raw, &ledger); err != nil {
		s.log.Error().Err(err).Msg("corrupt ratings ledger")
		return nil
	}
	return ledger
}

// saveLedger writes the whole ratings document back. Best effort.
func (s *RatingService) saveLedger(ctx context.Context, ledger []recipeAggregate) {
	raw, err := json.Marshal(ledger)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal ratings ledger")
		return
	}
	if err := s.store.Set(ctx, ratingsKey, raw); err != nil {
		s.log.Error().Err(err).Msg("save ratings ledger")
	}
}

func findRecipe(ledger []recipeAggregate, recipeID string) int {
	for i, aggregate := range ledger {
		if aggregate.RecipeID == recipeID {
			return i
		}
	}
	return -1
}
