package client

import "github.com/nhlakes/fishing-conditions/internal/fishing"

// Color names the display color for a stored rating string.
func Color(rating string) string {
	switch fishing.Rating(rating) {
	case fishing.RatingExcellent:
		return "green"
	case fishing.RatingGood, fishing.RatingFair:
		return "gold"
	case fishing.RatingTough:
		return "orange"
	case fishing.RatingNoFishing:
		return "red"
	default:
		return "gray"
	}
}

// Explanation renders the coarse condition text for a stored rating string.
func Explanation(rating string) string {
	return fishing.GenericExplanation(fishing.Rating(rating))
}
