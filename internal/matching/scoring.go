package matching

import (
	"fmt"
	"math"
	"sort"
)

// Strategy names accepted by ScorerFor and the run configuration.
const (
	StrategyAbsoluteDifference = "absolute-difference"
	StrategyEuclidean          = "euclidean"
	StrategyWeighted           = "weighted"
	StrategyPolarization       = "polarization"
)

// Scorer computes a symmetric dissimilarity score for a respondent pair.
// Scorers may assume both answer vectors share the same length; the
// Matcher validates input before any scorer runs.
type Scorer interface {
	Score(left, right Respondent) (float64, error)
	Name() string
}

// ScorerFor resolves a strategy name to a scorer. Weights are only
// consulted by the weighted strategy; passing an empty slice there is an
// error.
func ScorerFor(strategy string, weights []float64) (Scorer, error) {
	switch strategy {
	case "", StrategyAbsoluteDifference:
		return AbsoluteDifferenceScorer{}, nil
	case StrategyEuclidean:
		return EuclideanDistanceScorer{}, nil
	case StrategyWeighted:
		return NewWeightedScorer(weights)
	case StrategyPolarization:
		return DefaultPolarizationScorer(), nil
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", strategy)
	}
}

// AbsoluteDifferenceScorer sums per-question absolute differences. It is
// the default strategy and agrees exactly with the integer TotalDiff the
// Matcher reports. Every difference counts equally.
type AbsoluteDifferenceScorer struct{}

func (AbsoluteDifferenceScorer) Score(left, right Respondent) (float64, error) {
	total := 0
	for k := range left.Answers {
		d := left.Answers[k] - right.Answers[k]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return float64(total), nil
}

func (AbsoluteDifferenceScorer) Name() string { return StrategyAbsoluteDifference }

// EuclideanDistanceScorer takes the square root of the summed squared
// differences. Relative to the absolute-difference strategy it rewards
// one large disagreement over many small ones.
type EuclideanDistanceScorer struct{}

func (EuclideanDistanceScorer) Score(left, right Respondent) (float64, error) {
	sum := 0
	for k := range left.Answers {
		d := left.Answers[k] - right.Answers[k]
		sum += d * d
	}
	return math.Sqrt(float64(sum)), nil
}

func (EuclideanDistanceScorer) Name() string { return StrategyEuclidean }

// WeightedScorer multiplies each question's absolute difference by a
// caller-supplied positive weight, letting some questions matter more
// than others.
type WeightedScorer struct {
	weights []float64
}

// NewWeightedScorer validates the weight vector: it must be non-empty
// and strictly positive.
func NewWeightedScorer(weights []float64) (*WeightedScorer, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("weighted scorer: weights must not be empty")
	}
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("weighted scorer: weight %d must be positive, got %v", i, w)
		}
	}
	return &WeightedScorer{weights: weights}, nil
}

// EqualWeights builds a weighted scorer with weight 1.0 for each of the
// given number of questions; it scores identically to the
// absolute-difference strategy.
func EqualWeights(questions int) *WeightedScorer {
	weights := make([]float64, questions)
	for i := range weights {
		weights[i] = 1.0
	}
	return &WeightedScorer{weights: weights}
}

// NumQuestions returns the number of weights, which must match Q.
func (s *WeightedScorer) NumQuestions() int { return len(s.weights) }

// Weights exposes the configured weight vector.
func (s *WeightedScorer) Weights() []float64 { return s.weights }

func (s *WeightedScorer) Score(left, right Respondent) (float64, error) {
	if len(left.Answers) != len(s.weights) {
		return 0, fmt.Errorf("weighted scorer: %d weights for %d questions", len(s.weights), len(left.Answers))
	}
	total := 0.0
	for k := range left.Answers {
		d := left.Answers[k] - right.Answers[k]
		if d < 0 {
			d = -d
		}
		total += float64(d) * s.weights[k]
	}
	return total, nil
}

func (s *WeightedScorer) Name() string { return StrategyWeighted }

// PolarizationScorer amplifies disagreement between strongly held
// positions: each side of a question contributes a multiplier based on
// how extreme its answer is, and the absolute difference is scaled by
// the product of the two multipliers. Two moderates disagreeing score
// like the absolute-difference strategy; two extremists score much
// higher.
type PolarizationScorer struct {
	extremeMultiplier  float64
	leanMultiplier     float64
	moderateMultiplier float64
}

// NewPolarizationScorer builds a scorer with custom multipliers for
// extreme (1 or 7), lean (2 or 6), and moderate (3-5) answers.
func NewPolarizationScorer(extreme, lean, moderate float64) *PolarizationScorer {
	return &PolarizationScorer{
		extremeMultiplier:  extreme,
		leanMultiplier:     lean,
		moderateMultiplier: moderate,
	}
}

// DefaultPolarizationScorer uses 1.5x / 1.2x / 1.0x multipliers.
func DefaultPolarizationScorer() *PolarizationScorer {
	return NewPolarizationScorer(1.5, 1.2, 1.0)
}

func (s *PolarizationScorer) answerWeight(answer int) float64 {
	switch answer {
	case 1, 7:
		return s.extremeMultiplier
	case 2, 6:
		return s.leanMultiplier
	case 3, 4, 5:
		return s.moderateMultiplier
	default:
		return 1.0
	}
}

func (s *PolarizationScorer) Score(left, right Respondent) (float64, error) {
	total := 0.0
	for k := range left.Answers {
		d := left.Answers[k] - right.Answers[k]
		if d < 0 {
			d = -d
		}
		total += float64(d) * s.answerWeight(left.Answers[k]) * s.answerWeight(right.Answers[k])
	}
	return total, nil
}

func (s *PolarizationScorer) Name() string { return StrategyPolarization }

// Pairing is one committed pair under a strategy scorer. Unlike
// Assignment it carries the strategy score instead of the per-question
// integer breakdown.
type Pairing struct {
	LeftID  string  `json:"leftId"`
	RightID string  `json:"rightId"`
	Score   float64 `json:"score"`
}

// StrategyResult is MatchWith's output.
type StrategyResult struct {
	Strategy  string    `json:"strategy"`
	Pairings  []Pairing `json:"pairings"`
	Unmatched []string  `json:"unmatched"`
}

// MatchWith runs the same validate / score-all-pairs / rank / greedy
// pipeline as Match, but ranks by the given scorer. Ties are broken by
// first-seen generation order, so the output stays deterministic for a
// fixed input order. Callers needing the integer per-question breakdown
// should use Match with the default strategy instead.
func (m *Matcher) MatchWith(scorer Scorer, respondents []Respondent) (StrategyResult, error) {
	if err := m.validate(respondents); err != nil {
		return StrategyResult{}, err
	}

	result := StrategyResult{
		Strategy:  scorer.Name(),
		Pairings:  []Pairing{},
		Unmatched: []string{},
	}
	switch len(respondents) {
	case 0:
		return result, nil
	case 1:
		result.Unmatched = []string{respondents[0].ID}
		return result, nil
	}

	type scored struct {
		left, right int
		score       float64
		ord         int
	}
	n := len(respondents)
	pairs := make([]scored, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			score, err := scorer.Score(respondents[i], respondents[j])
			if err != nil {
				return StrategyResult{}, err
			}
			pairs = append(pairs, scored{left: i, right: j, score: score, ord: len(pairs)})
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].score != pairs[b].score {
			return pairs[a].score > pairs[b].score
		}
		return pairs[a].ord < pairs[b].ord
	})

	ranked := make([]candidate, len(pairs))
	for i, p := range pairs {
		ranked[i] = candidate{left: respondents[p.left].ID, right: respondents[p.right].ID}
	}
	chosen, unmatched := greedySelect(respondents, ranked)

	for _, idx := range chosen {
		p := pairs[idx]
		result.Pairings = append(result.Pairings, Pairing{
			LeftID:  respondents[p.left].ID,
			RightID: respondents[p.right].ID,
			Score:   p.score,
		})
	}
	result.Unmatched = unmatched
	return result, nil
}
