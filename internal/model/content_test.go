package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind     ContentKind
		from, to ContentStatus
		want     bool
	}{
		{KindHomework, StatusDraft, StatusAssigned, true},
		{KindHomework, StatusAssigned, StatusSubmitted, true},
		{KindHomework, StatusAssigned, StatusGraded, true},
		{KindHomework, StatusSubmitted, StatusGraded, true},
		{KindHomework, StatusDraft, StatusSubmitted, false},
		{KindHomework, StatusDraft, StatusGraded, false},
		{KindHomework, StatusGraded, StatusAssigned, false},
		{KindHomework, StatusAssigned, StatusCompleted, false},
		{KindQuiz, StatusSubmitted, StatusGraded, true},
		{KindQuiz, StatusGraded, StatusSubmitted, false},
		{KindLesson, StatusDraft, StatusAssigned, true},
		{KindLesson, StatusAssigned, StatusCompleted, true},
		{KindLesson, StatusDraft, StatusCompleted, false},
		{KindLesson, StatusAssigned, StatusSubmitted, false},
		{KindLesson, StatusCompleted, StatusAssigned, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.kind, tc.from, tc.to), "%s %s->%s", tc.kind, tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusGraded.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusAssigned.Terminal())
	assert.False(t, StatusDraft.Terminal())
}

func TestParseContentKind(t *testing.T) {
	k, ok := ParseContentKind("quizzes")
	assert.True(t, ok)
	assert.Equal(t, KindQuiz, k)
	assert.Equal(t, "quizzes", k.Table())

	k, ok = ParseContentKind("Homework")
	assert.True(t, ok)
	assert.Equal(t, KindHomework, k)

	_, ok = ParseContentKind("essays")
	assert.False(t, ok)
}

func TestQuestionValidate(t *testing.T) {
	valid := []Question{
		{Type: QuestionMultipleChoice, Prompt: "2+2?", Choices: []string{"3", "4"}, AnswerIndex: intPtr(1)},
		{Type: QuestionShortAnswer, Prompt: "Capital of France?", ExpectedAnswer: "Paris"},
		{Type: QuestionDiagram, Prompt: "Draw a right triangle"},
		{Type: QuestionSourceReference, Prompt: "Summarise the table", SourcePage: 3},
	}
	for _, q := range valid {
		assert.NoError(t, q.Validate(), q.Prompt)
	}

	invalid := []Question{
		{Type: QuestionMultipleChoice, Prompt: "  ", Choices: []string{"a", "b"}, AnswerIndex: intPtr(0)},
		{Type: QuestionMultipleChoice, Prompt: "one choice", Choices: []string{"a"}, AnswerIndex: intPtr(0)},
		{Type: QuestionMultipleChoice, Prompt: "bad index", Choices: []string{"a", "b"}, AnswerIndex: intPtr(2)},
		{Type: QuestionMultipleChoice, Prompt: "no index", Choices: []string{"a", "b"}},
		{Type: QuestionShortAnswer, Prompt: "no answer"},
		{Type: QuestionSourceReference, Prompt: "no page"},
		{Type: "essay", Prompt: "unknown"},
	}
	for _, q := range invalid {
		assert.Error(t, q.Validate(), q.Prompt)
	}
}

func TestNormalizeQuestionType(t *testing.T) {
	for in, want := range map[string]QuestionType{
		"MCQ":              QuestionMultipleChoice,
		"multiple_choice":  QuestionMultipleChoice,
		" short-answer ":   QuestionShortAnswer,
		"source_reference": QuestionSourceReference,
	} {
		got, ok := NormalizeQuestionType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeQuestionType("essay")
	assert.False(t, ok)
}

func TestClampMastery(t *testing.T) {
	assert.Equal(t, 0.0, ClampMastery(-0.5))
	assert.Equal(t, 1.0, ClampMastery(1.7))
	assert.Equal(t, 0.42, ClampMastery(0.42))
	assert.Equal(t, 0.0, ClampMastery(math.NaN()))
}
