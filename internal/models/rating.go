package models

import (
	"time"

	"nutriplan/api/internal/security"
)

// Reply is a moderator response attached to a rating. Replies are append-only;
// nothing in this service edits or removes them.
type Reply struct {
	UserID    string        `json:"userId"`
	Role      security.Role `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

// Rating is one user's rating of one recipe. A user has at most one per
// recipe; re-rating mutates it in place and keeps the replies.
type Rating struct {
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"` // integer in [1,5]
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
	Replies   []Reply   `json:"replies"`
}

// RecipeRatings aggregates a recipe's ratings. AverageRating and TotalRatings
// are derived from Ratings after every mutation, never stored independently.
type RecipeRatings struct {
	Ratings       []Rating `json:"ratings"`
	AverageRating float64  `json:"averageRating"`
	TotalRatings  int      `json:"totalRatings"`
}

// Recompute refreshes the derived aggregate values from the rating list.
func (r *RecipeRatings) Recompute() {
	r.TotalRatings = len(r.Ratings)
	if r.TotalRatings == 0 {
		r.AverageRating = 0
		return
	}

	sum := 0
	for _, rating := range r.Ratings {
		sum += rating.Rating
	}
	r.AverageRating = float64(sum) / float64(r.TotalRatings)
}

// Find returns the index of userID's rating, or -1.
func (r *RecipeRatings) Find(userID string) int {
	for i, rating := range r.Ratings {
		if rating.UserID == userID {
			return i
		}
	}
	return -1
}
