package domain

import "fmt"

// Hybrid ranking constants.
const (
	// RecencyTimeConstantHours is the decay constant for recency scores (one week).
	RecencyTimeConstantHours = 168.0

	// NeutralPreference is the user preference score until personalisation exists.
	NeutralPreference = 0.5
)

// RankingWeights are the coefficients of the hybrid score.
// They are not normalised; weights summing to 1 keep scores in [0,1].
type RankingWeights struct {
	Relevance      float64 `json:"relevance"`
	Recency        float64 `json:"recency"`
	SourceTrust    float64 `json:"source_trust"`
	UserPreference float64 `json:"user_preference"`
}

// DefaultRankingWeights returns 0.4/0.2/0.2/0.2.
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		Relevance:      0.4,
		Recency:        0.2,
		SourceTrust:    0.2,
		UserPreference: 0.2,
	}
}

// Sum returns the total of all weights.
func (w RankingWeights) Sum() float64 {
	return w.Relevance + w.Recency + w.SourceTrust + w.UserPreference
}

// Validate rejects negative weights.
func (w RankingWeights) Validate() error {
	if w.Relevance < 0 || w.Recency < 0 || w.SourceTrust < 0 || w.UserPreference < 0 {
		return fmt.Errorf("%w: ranking weights must be non-negative", ErrInvalidInput)
	}
	return nil
}
