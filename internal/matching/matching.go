// Package matching pairs questionnaire respondents so that overall
// dissimilarity across the committed pairs is maximized under a
// one-partner-per-person constraint.
//
// The pairing strategy is a greedy heuristic: every unordered pair is
// scored, pairs are ranked by descending dissimilarity, and the highest
// available pair is committed first. This favors O(n^2 log n) simplicity
// and determinism over optimality; it is NOT a maximum-weight perfect
// matching (that would need a Blossom-style solver).
package matching

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Default answer scale. Questionnaire items are answered on a closed
// integer range, 1 = strongly disagree .. 7 = strongly agree.
const (
	DefaultScaleMin = 1
	DefaultScaleMax = 7
)

// Respondent is one participant's questionnaire answer vector plus a
// stable identifier. Within one matching run every respondent must carry
// the same number of answers.
type Respondent struct {
	ID      string `json:"id"`
	Answers []int  `json:"answers"`
}

// Assignment is one committed pair. LeftID precedes RightID by input
// position, which keeps the pair canonical.
type Assignment struct {
	LeftID          string `json:"leftId"`
	RightID         string `json:"rightId"`
	TotalDiff       int    `json:"totalDiff"`
	PerQuestionDiff []int  `json:"perQuestionDiff"`
}

// Result holds the committed assignments plus every respondent that
// received no partner, in input order. The identifiers across
// Assignments and Unmatched always partition the input set exactly.
type Result struct {
	Assignments []Assignment `json:"assignments"`
	Unmatched   []string     `json:"unmatched"`
}

// Invalid-input error codes surfaced to callers.
const (
	CodeDuplicateRespondent  = "DUPLICATE_RESPONDENT"
	CodeEmptyAnswers         = "EMPTY_ANSWERS"
	CodeAnswerLengthMismatch = "ANSWER_LENGTH_MISMATCH"
	CodeAnswerOutOfRange     = "ANSWER_OUT_OF_RANGE"
)

// ErrInvalidInput is the sentinel wrapped by every InvalidInputError.
var ErrInvalidInput = errors.New("invalid matching input")

// InvalidInputError reports a contract violation in the input set along
// with the offending respondent identifiers. These are caller bugs:
// retrying without changing the input reproduces the same failure.
type InvalidInputError struct {
	Code string
	IDs  []string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: respondents [%s]", e.Code, strings.Join(e.IDs, ", "))
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// Matcher runs the greedy opposite-matching pipeline. The zero value is
// not usable; construct with NewMatcher.
type Matcher struct {
	scaleMin int
	scaleMax int
	// scoringWorkers > 1 parallelizes pairwise scoring. Ranking and
	// commitment always run on a single goroutine.
	scoringWorkers int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithScale overrides the accepted answer range.
func WithScale(min, max int) Option {
	return func(m *Matcher) {
		m.scaleMin = min
		m.scaleMax = max
	}
}

// WithScoringWorkers sets the number of goroutines used for pairwise
// scoring. Output is byte-identical regardless of the worker count.
func WithScoringWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.scoringWorkers = n
		}
	}
}

// NewMatcher returns a Matcher with the default 1-7 scale and serial
// scoring.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		scaleMin:       DefaultScaleMin,
		scaleMax:       DefaultScaleMax,
		scoringWorkers: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match is the package-level entry point using default settings.
func Match(respondents []Respondent) (Result, error) {
	return NewMatcher().Match(respondents)
}

// MaxTotalDiff returns the upper bound for a pair's total dissimilarity
// given the question count: Q * (scaleMax - scaleMin).
func (m *Matcher) MaxTotalDiff(questions int) int {
	return questions * (m.scaleMax - m.scaleMin)
}

// Match scores every unordered respondent pair, ranks the pairs by
// descending total dissimilarity (ties broken by first-seen generation
// order, so the result is fully deterministic for a fixed input order),
// greedily commits non-conflicting pairs, and reports the unmatched
// remainder. All arithmetic is exact integer arithmetic.
//
// Zero respondents yield an empty result; a single respondent yields no
// assignments and that respondent as the remainder. Duplicate
// identifiers, empty answer vectors, mismatched vector lengths, and
// out-of-scale answers fail with an InvalidInputError before any output
// is produced.
func (m *Matcher) Match(respondents []Respondent) (Result, error) {
	if err := m.validate(respondents); err != nil {
		return Result{}, err
	}

	result := Result{
		Assignments: []Assignment{},
		Unmatched:   []string{},
	}
	switch len(respondents) {
	case 0:
		return result, nil
	case 1:
		result.Unmatched = []string{respondents[0].ID}
		return result, nil
	}

	pairs := m.scorePairs(respondents)

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].totalDiff != pairs[b].totalDiff {
			return pairs[a].totalDiff > pairs[b].totalDiff
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
		result.Assignments = append(result.Assignments, Assignment{
			LeftID:          respondents[p.left].ID,
			RightID:         respondents[p.right].ID,
			TotalDiff:       p.totalDiff,
			PerQuestionDiff: p.perQuestionDiff,
		})
	}
	result.Unmatched = unmatched
	return result, nil
}

// scoredPair is one exhaustively generated candidate pair. ord is the
// generation index, used as the deterministic tie-break key.
type scoredPair struct {
	left, right     int
	perQuestionDiff []int
	totalDiff       int
	ord             int
}

// scorePairs computes all n(n-1)/2 pair scores. The pair at (i, j) lands
// at a position derived solely from (i, j), so a parallel run fills the
// identical slice a serial run would.
func (m *Matcher) scorePairs(respondents []Respondent) []scoredPair {
	n := len(respondents)
	pairs := make([]scoredPair, n*(n-1)/2)

	scoreRow := func(i int) {
		base := i*(n-1) - i*(i-1)/2 // index of pair (i, i+1)
		for j := i + 1; j < n; j++ {
			ord := base + (j - i - 1)
			diffs := make([]int, len(respondents[i].Answers))
			total := 0
			for k := range diffs {
				d := respondents[i].Answers[k] - respondents[j].Answers[k]
				if d < 0 {
					d = -d
				}
				diffs[k] = d
				total += d
			}
			pairs[ord] = scoredPair{
				left:            i,
				right:           j,
				perQuestionDiff: diffs,
				totalDiff:       total,
				ord:             ord,
			}
		}
	}

	if m.scoringWorkers <= 1 || n < 4 {
		for i := 0; i < n-1; i++ {
			scoreRow(i)
		}
		return pairs
	}

	var wg sync.WaitGroup
	for w := 0; w < m.scoringWorkers; w++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for i := start; i < n-1; i += m.scoringWorkers {
				scoreRow(i)
			}
		}(w)
	}
	wg.Wait()
	return pairs
}

// candidate is a ranked pair reduced to its endpoints, shared between
// the integer and strategy-scored pipelines.
type candidate struct {
	left, right string
}

// greedySelect scans the ranked candidates from the top and commits each
// pair whose endpoints are both still free. It returns the indices of
// the committed candidates in rank order, plus the unmatched remainder
// in input order.
func greedySelect(respondents []Respondent, ranked []candidate) ([]int, []string) {
	matched := make(map[string]bool, len(respondents))
	chosen := make([]int, 0, len(respondents)/2)

	for i, c := range ranked {
		if matched[c.left] || matched[c.right] {
			continue
		}
		matched[c.left] = true
		matched[c.right] = true
		chosen = append(chosen, i)
	}

	unmatched := []string{}
	for _, r := range respondents {
		if !matched[r.ID] {
			unmatched = append(unmatched, r.ID)
		}
	}
	return chosen, unmatched
}

// validate enforces the input contract: unique identifiers, a shared
// answer length Q >= 1, and answers within the configured scale.
func (m *Matcher) validate(respondents []Respondent) error {
	seen := make(map[string]bool, len(respondents))
	var dups []string
	for _, r := range respondents {
		if seen[r.ID] {
			dups = append(dups, r.ID)
			continue
		}
		seen[r.ID] = true
	}
	if len(dups) > 0 {
		return &InvalidInputError{Code: CodeDuplicateRespondent, IDs: dups}
	}

	if len(respondents) == 0 {
		return nil
	}

	var empty []string
	for _, r := range respondents {
		if len(r.Answers) == 0 {
			empty = append(empty, r.ID)
		}
	}
	if len(empty) > 0 {
		return &InvalidInputError{Code: CodeEmptyAnswers, IDs: empty}
	}

	q := len(respondents[0].Answers)
	var mismatched []string
	for _, r := range respondents[1:] {
		if len(r.Answers) != q {
			mismatched = append(mismatched, r.ID)
		}
	}
	if len(mismatched) > 0 {
		return &InvalidInputError{Code: CodeAnswerLengthMismatch, IDs: mismatched}
	}

	var outOfRange []string
	for _, r := range respondents {
		for _, a := range r.Answers {
			if a < m.scaleMin || a > m.scaleMax {
				outOfRange = append(outOfRange, r.ID)
				break
			}
		}
	}
	if len(outOfRange) > 0 {
		return &InvalidInputError{Code: CodeAnswerOutOfRange, IDs: outOfRange}
	}
	return nil
}
