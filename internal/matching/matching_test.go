package matching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func respondent(id string, answers ...int) Respondent {
	return Respondent{ID: id, Answers: answers}
}

func allIDs(r Result) map[string]int {
	counts := map[string]int{}
	for _, a := range r.Assignments {
		counts[a.LeftID]++
		counts[a.RightID]++
	}
	for _, id := range r.Unmatched {
		counts[id]++
	}
	return counts
}

// ==========================
// Core Scenarios
// ==========================

func TestMatch_OppositeExtremesWin(t *testing.T) {
	// diff(A,B)=18, diff(A,C)=diff(B,C)=9: the extreme pair is committed
	// and the moderate respondent is left over.
	result, err := Match([]Respondent{
		respondent("A", 1, 1, 1),
		respondent("B", 7, 7, 7),
		respondent("C", 4, 4, 4),
	})
	require.NoError(t, err)

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, "A", result.Assignments[0].LeftID)
	assert.Equal(t, "B", result.Assignments[0].RightID)
	assert.Equal(t, 18, result.Assignments[0].TotalDiff)
	assert.Equal(t, []string{"C"}, result.Unmatched)
}

func TestMatch_PerQuestionBreakdown(t *testing.T) {
	result, err := Match([]Respondent{
		respondent("1", 1, 2, 3),
		respondent("2", 7, 6, 5),
	})
	require.NoError(t, err)

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, []int{6, 4, 2}, result.Assignments[0].PerQuestionDiff)
	assert.Equal(t, 12, result.Assignments[0].TotalDiff)
	assert.Empty(t, result.Unmatched)
}

func TestMatch_EmptyInput(t *testing.T) {
	result, err := Match(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Assignments)
	assert.Empty(t, result.Unmatched)
}

func TestMatch_SingleRespondent(t *testing.T) {
	result, err := Match([]Respondent{respondent("only", 4, 4)})
	require.NoError(t, err)
	assert.Empty(t, result.Assignments)
	assert.Equal(t, []string{"only"}, result.Unmatched)
}

// ==========================
// Input Validation
// ==========================

func TestMatch_DuplicateIdentifiers(t *testing.T) {
	_, err := Match([]Respondent{
		respondent("dup", 1, 2),
		respondent("other", 3, 4),
		respondent("dup", 5, 6),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, CodeDuplicateRespondent, invalid.Code)
	assert.Equal(t, []string{"dup"}, invalid.IDs)
}

func TestMatch_AnswerLengthMismatch(t *testing.T) {
	_, err := Match([]Respondent{
		respondent("a", 1, 2, 3),
		respondent("b", 1, 2),
		respondent("c", 1, 2, 3),
		respondent("d", 1),
	})
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, CodeAnswerLengthMismatch, invalid.Code)
	assert.Equal(t, []string{"b", "d"}, invalid.IDs)
}

func TestMatch_EmptyAnswerVector(t *testing.T) {
	_, err := Match([]Respondent{
		respondent("a", 1, 2),
		{ID: "hollow"},
	})
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, CodeEmptyAnswers, invalid.Code)
	assert.Equal(t, []string{"hollow"}, invalid.IDs)
}

func TestMatch_AnswerOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		answers []int
	}{
		{"below scale", []int{0, 4, 4}},
		{"above scale", []int{4, 8, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Match([]Respondent{
				respondent("ok", 1, 7, 4),
				{ID: "bad", Answers: tt.answers},
			})
			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, CodeAnswerOutOfRange, invalid.Code)
			assert.Equal(t, []string{"bad"}, invalid.IDs)
		})
	}
}

func TestMatch_CustomScale(t *testing.T) {
	m := NewMatcher(WithScale(0, 10))
	result, err := m.Match([]Respondent{
		respondent("low", 0, 0),
		respondent("high", 10, 10),
	})
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, 20, result.Assignments[0].TotalDiff)
	assert.Equal(t, 20, m.MaxTotalDiff(2))
}

// ==========================
// Tie-Break & Determinism
// ==========================

func TestMatch_TieBreakIsGenerationOrder(t *testing.T) {
	// All four pairwise scores between {a,b} x {c,d} tie at 6 and the
	// within-group pairs tie at 0. The first generated pair (a,c) must
	// win, forcing (b,d) as the second assignment.
	input := []Respondent{
		respondent("a", 1, 1),
		respondent("b", 1, 1),
		respondent("c", 4, 4),
		respondent("d", 4, 4),
	}
	result, err := Match(input)
	require.NoError(t, err)

	require.Len(t, result.Assignments, 2)
	assert.Equal(t, "a", result.Assignments[0].LeftID)
	assert.Equal(t, "c", result.Assignments[0].RightID)
	assert.Equal(t, "b", result.Assignments[1].LeftID)
	assert.Equal(t, "d", result.Assignments[1].RightID)
	assert.Empty(t, result.Unmatched)
}

func TestMatch_Deterministic(t *testing.T) {
	input := []Respondent{
		respondent("r1", 1, 7, 3, 5),
		respondent("r2", 7, 1, 5, 4),
		respondent("r3", 2, 2, 2, 2),
		respondent("r4", 6, 6, 6, 6),
		respondent("r5", 4, 4, 4, 4),
	}

	first, err := Match(input)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		again, err := Match(input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatch_ParallelScoringMatchesSerial(t *testing.T) {
	input := make([]Respondent, 0, 31)
	for i := 0; i < 31; i++ {
		input = append(input, Respondent{
			ID:      string(rune('A' + i)),
			Answers: []int{i%7 + 1, (i*3)%7 + 1, (i*5)%7 + 1, 7 - i%7},
		})
	}

	serial, err := NewMatcher().Match(input)
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 8} {
		parallel, err := NewMatcher(WithScoringWorkers(workers)).Match(input)
		require.NoError(t, err)
		assert.Equal(t, serial, parallel, "workers=%d", workers)
	}
}

// ==========================
// Structural Invariants
// ==========================

func TestMatch_PartitionInvariant(t *testing.T) {
	input := []Respondent{
		respondent("p1", 1, 2, 3),
		respondent("p2", 7, 6, 5),
		respondent("p3", 3, 3, 3),
		respondent("p4", 5, 5, 5),
		respondent("p5", 2, 4, 6),
	}
	result, err := Match(input)
	require.NoError(t, err)

	counts := allIDs(result)
	assert.Len(t, counts, len(input))
	for _, r := range input {
		assert.Equal(t, 1, counts[r.ID], "respondent %s must appear exactly once", r.ID)
	}
}

func TestMatch_TopPairAlwaysCommitted(t *testing.T) {
	// Nothing can claim either endpoint of the single highest-scoring
	// pair before it is considered.
	input := []Respondent{
		respondent("mild1", 3, 4),
		respondent("extreme1", 1, 1),
		respondent("mild2", 4, 3),
		respondent("extreme2", 7, 7),
	}
	result, err := Match(input)
	require.NoError(t, err)

	found := false
	for _, a := range result.Assignments {
		if a.LeftID == "extreme1" && a.RightID == "extreme2" {
			found = true
			assert.Equal(t, 12, a.TotalDiff)
		}
	}
	assert.True(t, found, "highest-scoring pair must always be committed")
}

func TestMatch_ScoreBounds(t *testing.T) {
	input := []Respondent{
		respondent("b1", 1, 1, 1, 1),
		respondent("b2", 7, 7, 7, 7),
		respondent("b3", 1, 7, 1, 7),
		respondent("b4", 7, 1, 7, 1),
	}
	result, err := Match(input)
	require.NoError(t, err)

	limit := NewMatcher().MaxTotalDiff(4)
	for _, a := range result.Assignments {
		assert.GreaterOrEqual(t, a.TotalDiff, 0)
		assert.LessOrEqual(t, a.TotalDiff, limit)
		sum := 0
		for _, d := range a.PerQuestionDiff {
			assert.GreaterOrEqual(t, d, 0)
			sum += d
		}
		assert.Equal(t, a.TotalDiff, sum)
	}
}

func TestMatch_Parity(t *testing.T) {
	even := []Respondent{
		respondent("e1", 1, 1),
		respondent("e2", 7, 7),
		respondent("e3", 2, 3),
		respondent("e4", 6, 5),
	}
	result, err := Match(even)
	require.NoError(t, err)
	assert.Len(t, result.Assignments, 2)
	assert.Empty(t, result.Unmatched)

	odd := append(even, respondent("e5", 4, 4))
	result, err = Match(odd)
	require.NoError(t, err)
	assert.Len(t, result.Unmatched, 1)
}
