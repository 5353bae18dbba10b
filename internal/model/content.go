package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type ContentKind string

const (
	KindHomework ContentKind = "homework"
	KindQuiz     ContentKind = "quiz"
	KindLesson   ContentKind = "lesson"
)

var ContentKinds = []ContentKind{KindHomework, KindQuiz, KindLesson}

// ParseContentKind accepts both the singular kind and the plural route segment.
func ParseContentKind(s string) (ContentKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "homework", "homeworks":
		return KindHomework, true
	case "quiz", "quizzes":
		return KindQuiz, true
	case "lesson", "lessons":
		return KindLesson, true
	}
	return "", false
}

// Table is the table holding items of this kind.
func (k ContentKind) Table() string {
	switch k {
	case KindHomework:
		return "homeworks"
	case KindQuiz:
		return "quizzes"
	case KindLesson:
		return "lessons"
	}
	return ""
}

// Graded reports whether items of this kind end in a score given by a tutor.
func (k ContentKind) Graded() bool {
	return k == KindHomework || k == KindQuiz
}

// RequiresDueDate reports whether assigning needs a due timestamp.
func (k ContentKind) RequiresDueDate() bool {
	return k == KindHomework || k == KindLesson
}

type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusAssigned  ContentStatus = "assigned"
	StatusSubmitted ContentStatus = "submitted"
	StatusGraded    ContentStatus = "graded"
	StatusCompleted ContentStatus = "completed"
)

// ParseContentStatus accepts only the exact, lower-case status names.
func ParseContentStatus(s string) (ContentStatus, bool) {
	switch st := ContentStatus(s); st {
	case StatusDraft, StatusAssigned, StatusSubmitted, StatusGraded, StatusCompleted:
		return st, true
	}
	return "", false
}

func (s ContentStatus) Terminal() bool {
	return s == StatusGraded || s == StatusCompleted
}

var transitions = map[ContentKind]map[ContentStatus][]ContentStatus{
	KindHomework: {
		StatusDraft:     {StatusAssigned},
		StatusAssigned:  {StatusSubmitted, StatusGraded},
		StatusSubmitted: {StatusGraded},
	},
	KindQuiz: {
		StatusDraft:     {StatusAssigned},
		StatusAssigned:  {StatusSubmitted, StatusGraded},
		StatusSubmitted: {StatusGraded},
	},
	KindLesson: {
		StatusDraft:    {StatusAssigned},
		StatusAssigned: {StatusCompleted},
	},
}

// CanTransition reports whether kind allows moving from one status to another.
func CanTransition(kind ContentKind, from, to ContentStatus) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	case "":
		return DifficultyMedium, true
	}
	return "", false
}

type QuestionType string

const (
	QuestionMultipleChoice  QuestionType = "multiple-choice"
	QuestionShortAnswer     QuestionType = "short-answer"
	QuestionDiagram         QuestionType = "diagram"
	QuestionSourceReference QuestionType = "source-reference"
)

var questionTypeAliases = map[string]QuestionType{
	"multiple-choice":  QuestionMultipleChoice,
	"multiple_choice":  QuestionMultipleChoice,
	"multiplechoice":   QuestionMultipleChoice,
	"mcq":              QuestionMultipleChoice,
	"choice":           QuestionMultipleChoice,
	"short-answer":     QuestionShortAnswer,
	"short_answer":     QuestionShortAnswer,
	"shortanswer":      QuestionShortAnswer,
	"open":             QuestionShortAnswer,
	"diagram":          QuestionDiagram,
	"drawing":          QuestionDiagram,
	"source-reference": QuestionSourceReference,
	"source_reference": QuestionSourceReference,
	"reference":        QuestionSourceReference,
}

// NormalizeQuestionType maps loose spellings onto a known question type.
func NormalizeQuestionType(s string) (QuestionType, bool) {
	t, ok := questionTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Question is owned by exactly one content item and stored inline with it.
type Question struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Choices        []string     `json:"choices,omitempty"`
	AnswerIndex    *int         `json:"answerIndex,omitempty"`
	ExpectedAnswer string       `json:"expectedAnswer,omitempty"`
	SourcePage     int          `json:"sourcePage,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
}

var ErrEmptyPrompt = errors.New("question prompt is empty")

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return ErrEmptyPrompt
	}
	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Choices) < 2 {
			return fmt.Errorf("multiple-choice question needs at least 2 choices, got %d", len(q.Choices))
		}
		for i, c := range q.Choices {
			if strings.TrimSpace(c) == "" {
				return fmt.Errorf("choice %d is empty", i)
			}
		}
		if q.AnswerIndex == nil || *q.AnswerIndex < 0 || *q.AnswerIndex >= len(q.Choices) {
			return errors.New("multiple-choice answer index is out of range")
		}
	case QuestionShortAnswer:
		if strings.TrimSpace(q.ExpectedAnswer) == "" {
			return errors.New("short-answer question has no expected answer")
		}
	case QuestionSourceReference:
		if q.SourcePage < 1 {
			return fmt.Errorf("source-reference question has invalid page %d", q.SourcePage)
		}
	case QuestionDiagram:
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

// Answers maps question ids to the student's raw answers.
type Answers map[string]string

// ContentItem is a homework, quiz or lesson. All kinds share one shape and
// live in a table per kind.
type ContentItem struct {
	UUIDModel
	Kind             ContentKind                   `gorm:"size:20;not null" json:"kind"`
	TutorID          uint                          `gorm:"not null;index" json:"tutorId"`
	StudentID        uint                          `gorm:"not null;index" json:"studentId"`
	SkillID          *uint                         `gorm:"index" json:"skillId,omitempty"`
	Title            string                        `gorm:"size:255;not null" json:"title"`
	Description      string                        `gorm:"type:text" json:"description"`
	Status           ContentStatus                 `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Difficulty       Difficulty                    `gorm:"size:20" json:"difficulty"`
	DueAt            *time.Time                    `json:"dueAt,omitempty"`
	Questions        datatypes.JSONSlice[Question] `json:"questions"`
	Body             string                        `gorm:"type:text" json:"body,omitempty"`
	Answers          datatypes.JSONType[Answers]   `json:"answers,omitempty"`
	Score            *float64                      `json:"score,omitempty"`
	SourceDocumentID *string                       `gorm:"type:varchar(36)" json:"sourceDocumentId,omitempty"`
	Version          int64                         `gorm:"not null;default:1" json:"version"`
	AssignedAt       *time.Time                    `json:"assignedAt,omitempty"`
	SubmittedAt      *time.Time                    `json:"submittedAt,omitempty"`
	GradedAt         *time.Time                    `json:"gradedAt,omitempty"`
	CompletedAt      *time.Time                    `json:"completedAt,omitempty"`
}

// QuestionIndex returns the position of the question with id, or -1.
func (c *ContentItem) QuestionIndex(id string) int {
	for i, q := range c.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Homework, Quiz and Lesson give each kind its own table for migrations.
type Homework struct{ ContentItem }

func (Homework) TableName() string { return "homeworks" }

type Quiz struct{ ContentItem }

func (Quiz) TableName() string { return "quizzes" }

type Lesson struct{ ContentItem }

func (Lesson) TableName() string { return "lessons" }
