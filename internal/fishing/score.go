package fishing

import (
	"strings"

	"github.com/nhlakes/fishing-conditions/internal/common"
)

// Rating buckets, best to worst.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingTough     Rating = "Tough"
	RatingNoFishing Rating = "No Fishing"
	RatingUnknown   Rating = "Unknown"
)

// Base wind labels. Wind dominates the assessment; everything else is a note.
const (
	BaseLiteWind  = "Lite Wind"
	BaseModerate  = "Moderate Wind"
	BaseHighWind  = "High Wind"
	BaseNoFishing = "Absolutely No Fishing"
)

// Thresholds carries every tunable cut-off the scorer uses. Deployments
// retune these through configuration, never by editing code.
type Thresholds struct {
	WindExcellentMax float64 // mph, inclusive
	WindGoodMax      float64
	WindFairMax      float64
	WindToughMax     float64
	GustGusty        float64
	TempColdMax      float64
	TempHotMin       float64
	PressureLow      float64 // inHg
}

// DefaultThresholds returns the values the site has always fished by.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindExcellentMax: 4,
		WindGoodMax:      6,
		WindFairMax:      8,
		WindToughMax:     10,
		GustGusty:        15,
		TempColdMax:      50,
		TempHotMin:       85,
		PressureLow:      29.92,
	}
}

// Assessment is the scorer's verdict for one observation.
type Assessment struct {
	Base   string
	Rating Rating
	Notes  []string
}

// Label renders the full condition string: the wind base label followed by
// the triggered notes in parentheses. With no base the notes stand alone.
func (a Assessment) Label() string {
	joined := strings.Join(a.Notes, ", ")
	if a.Base == "" {
		return joined
	}
	if joined == "" {
		return a.Base
	}
	return a.Base + " (" + joined + ")"
}

// Score maps normalized metrics to a fishing condition. Wind speed picks the
// base label and rating; gust, temperature, pressure and the summary text
// append notes in that fixed order and never override the wind verdict.
// Above the tough cut-off the label is a hard stop regardless of how
// pleasant the other factors look.
func Score(m Metrics, t Thresholds) Assessment {
	var a Assessment

	switch {
	case m.WindSpeed <= t.WindExcellentMax:
		a.Base, a.Rating = BaseLiteWind, RatingExcellent
	case m.WindSpeed <= t.WindGoodMax:
		a.Base, a.Rating = BaseModerate, RatingGood
	case m.WindSpeed <= t.WindFairMax:
		a.Base, a.Rating = BaseModerate, RatingFair
	case m.WindSpeed <= t.WindToughMax:
		a.Base, a.Rating = BaseHighWind, RatingTough
	default:
		a.Base, a.Rating = BaseNoFishing, RatingNoFishing
	}

	if m.GustKnown && m.WindGust > t.GustGusty {
		a.Notes = append(a.Notes, "Gusty")
	}

	switch {
	case m.TempF < t.TempColdMax:
		a.Notes = append(a.Notes, "Cold")
	case m.TempF > t.TempHotMin:
		a.Notes = append(a.Notes, "Too Hot")
	default:
		a.Notes = append(a.Notes, "Comfortable Temp")
	}

	if m.Pressure < t.PressureLow {
		a.Notes = append(a.Notes, "Low Pressure")
	} else {
		a.Notes = append(a.Notes, "High Pressure")
	}

	if note := summaryNote(m.Summary); note != "" {
		a.Notes = append(a.Notes, note)
	}

	return a
}

// summaryNote matches the free-text summary against known keyword groups.
// First group to match wins; unmatched text contributes nothing. This text
// matching is a best-effort fallback and never feeds back into the rating.
func summaryNote(summary string) string {
	s := strings.ToLower(summary)
	switch {
	case common.HasAny(s, "clear", "sunny"):
		return "Clear skies, good visibility"
	case common.HasAny(s, "cloudy", "overcast"):
		return "Cloud cover can boost fish activity"
	case common.HasAny(s, "rain", "shower"):
		return "Rain may slow the bite"
	default:
		return ""
	}
}

// RatingFromBase recovers the rating bucket from a stored base label when a
// row predates the explicit rating column. "Moderate Wind" spans two rating
// tiers, so the recovery is intentionally optimistic.
func RatingFromBase(base string) Rating {
	switch {
	case strings.HasPrefix(base, BaseLiteWind):
		return RatingExcellent
	case strings.HasPrefix(base, BaseModerate):
		return RatingGood
	case strings.HasPrefix(base, BaseHighWind):
		return RatingTough
	case strings.HasPrefix(base, BaseNoFishing):
		return RatingNoFishing
	default:
		return RatingUnknown
	}
}

// GenericExplanation degrades a rating to one of the three coarse
// explanations shown when an observation carries no per-factor notes.
func GenericExplanation(r Rating) string {
	switch r {
	case RatingExcellent, RatingGood:
		return "Favorable conditions"
	case RatingTough, RatingNoFishing:
		return "Challenging conditions"
	default:
		return "Moderate conditions"
	}
}
