package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/llm"
	"tutorhub_backend/pkg/logger"
	"tutorhub_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerationSpec is the normalized input of one generation call.
type GenerationSpec struct {
	Kind         model.ContentKind
	Topic        string
	Difficulty   model.Difficulty
	Count        int
	SourceText   string
	Instructions string
	// StudentContext is the student's current standing, weakest first.
	StudentContext []MasteryView
	// AvoidPrompts lists questions already on the item.
	AvoidPrompts []string
}

type GeneratedContent struct {
	Title     string
	Body      string
	Questions []model.Question
	// Dropped counts backend questions that failed validation.
	Dropped int
}

// ContentGenerator turns a GenerationSpec into validated questions using
// the configured backend.
type ContentGenerator struct {
	Provider llm.Provider
	Config   config.GenerationConfig
	Timeout  time.Duration
}

func NewContentGenerator(provider llm.Provider, cfg config.GenerationConfig, timeout time.Duration) *ContentGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ContentGenerator{Provider: provider, Config: cfg, Timeout: timeout}
}

const generationSystemPrompt = `You are an experienced tutor writing practice material for one student.

Rules:
- Produce exactly the requested number of questions, matched to the topic and difficulty.
- Every question has a "type": one of multiple-choice, short-answer, diagram, source-reference.
- multiple-choice: give 3 to 5 "choices" and the zero-based "answer_index" of the single correct choice.
- short-answer: give the "expected_answer" as a short string.
- diagram: ask the student to draw or label something; describe what a correct diagram shows in "explanation".
- source-reference: only when source material is provided; set "source_page" to the page the answer is found on.
- Questions must be self-contained and must not repeat any question listed under "Already on this item".
- Add a one-sentence "explanation" for each question.
- Return a short "title" for the whole set.`

const lessonSystemAddendum = `
This is a lesson: write a clear markdown "body" that teaches the topic step by step, then add the requested number of check-for-understanding questions.`

var contentSchema = &llm.Schema{
	Name:        "tutoring-content",
	Description: "A set of practice questions with an optional lesson body",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"body":  map[string]any{"type": "string"},
			// Question fields are checked one by one in normalizeQuestion so a
			// single mistyped question is dropped instead of the whole set.
			"questions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object"},
			},
		},
		"required": []string{"questions"},
	},
}

type generatedPayload struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Questions []json.RawMessage `json:"questions"`
}

// rawQuestion is deliberately loose; normalizeQuestion turns it into a
// model.Question or rejects it.
type rawQuestion struct {
	Type           string   `json:"type"`
	Prompt         string   `json:"prompt"`
	Question       string   `json:"question"`
	Choices        []string `json:"choices"`
	Options        []string `json:"options"`
	AnswerIndex    *int     `json:"answer_index"`
	Answer         string   `json:"answer"`
	ExpectedAnswer string   `json:"expected_answer"`
	SourcePage     int      `json:"source_page"`
	Explanation    string   `json:"explanation"`
}

// Generate calls the backend once (plus the provider's retry) and returns
// only questions that pass validation.
func (g *ContentGenerator) Generate(ctx context.Context, spec GenerationSpec) (*GeneratedContent, error) {
	if err := g.validateSpec(&spec); err != nil {
		return nil, err
	}

	req := llm.UserPrompt(g.systemPrompt(spec.Kind), g.buildUserMessage(spec))
	req.Schema = contentSchema
	req.MaxTokens = g.Config.MaxTokens
	req.Temperature = g.Config.Temperature

	raw, err := g.call(ctx, "generate-"+string(spec.Kind), req)
	if err != nil {
		monitoring.GenerationRequests.WithLabelValues(string(spec.Kind), "backend_error").Inc()
		return nil, err
	}

	var payload generatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		monitoring.GenerationRequests.WithLabelValues(string(spec.Kind), "invalid").Inc()
		return nil, &util.GenerationError{Err: fmt.Errorf("decode generated content: %w", err)}
	}

	out := &GeneratedContent{
		Title: strings.TrimSpace(payload.Title),
		Body:  strings.TrimSpace(payload.Body),
	}
	for i, item := range payload.Questions {
		q, err := normalizeQuestion(item)
		if err != nil {
			out.Dropped++
			logger.Log.Info("Dropping malformed generated question",
				zap.String("kind", string(spec.Kind)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		out.Questions = append(out.Questions, q)
	}
	if len(out.Questions) > spec.Count {
		out.Questions = out.Questions[:spec.Count]
	}
	if out.Dropped > 0 {
		monitoring.GenerationDroppedQuestions.WithLabelValues(string(spec.Kind)).Add(float64(out.Dropped))
	}

	if len(out.Questions) == 0 && (spec.Kind.Graded() || out.Body == "") {
		monitoring.GenerationRequests.WithLabelValues(string(spec.Kind), "empty").Inc()
		return nil, util.ErrGenerationEmptyResult
	}

	monitoring.GenerationRequests.WithLabelValues(string(spec.Kind), "ok").Inc()
	return out, nil
}

func (g *ContentGenerator) validateSpec(spec *GenerationSpec) error {
	kind, ok := model.ParseContentKind(string(spec.Kind))
	if !ok {
		return util.NewValidationError("kind", "unknown content kind %q", spec.Kind)
	}
	spec.Kind = kind
	spec.Topic = strings.TrimSpace(spec.Topic)
	if spec.Topic == "" {
		return util.NewValidationError("topic", "a topic or skill is required")
	}
	d, ok := model.ParseDifficulty(string(spec.Difficulty))
	if !ok {
		return util.NewValidationError("difficulty", "difficulty must be easy, medium or hard")
	}
	spec.Difficulty = d
	if spec.Count < 1 || spec.Count > g.Config.MaxQuestions {
		return util.NewValidationError("count", "question count must be between 1 and %d", g.Config.MaxQuestions)
	}
	return nil
}

// call runs one backend request under the generation timeout and maps
// backend failures onto GenerationError.
func (g *ContentGenerator) call(ctx context.Context, purpose string, req llm.Request) (json.RawMessage, error) {
	cctx, cancel := context.WithTimeout(llm.WithPurpose(ctx, purpose), g.Timeout)
	defer cancel()

	resp, err := g.Provider.Generate(cctx, req)
	if err == nil {
		return resp.Content, nil
	}

	// The caller went away; nothing to report to anyone.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Invalid content and truncation are not worth retrying from the client.
	retryable := llm.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
	return nil, &util.GenerationError{Retryable: retryable, Err: err}
}

func (g *ContentGenerator) systemPrompt(kind model.ContentKind) string {
	if kind == model.KindLesson {
		return generationSystemPrompt + lessonSystemAddendum
	}
	return generationSystemPrompt
}

func (g *ContentGenerator) buildUserMessage(spec GenerationSpec) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Content kind: %s\n", spec.Kind)
	fmt.Fprintf(&b, "Topic: %s\n", spec.Topic)
	fmt.Fprintf(&b, "Difficulty: %s\n", spec.Difficulty)
	fmt.Fprintf(&b, "Number of questions: %d\n", spec.Count)

	if spec.Instructions != "" {
		fmt.Fprintf(&b, "\nTutor instructions:\n%s\n", strings.TrimSpace(spec.Instructions))
	}

	if len(spec.StudentContext) > 0 {
		b.WriteString("\nStudent's current mastery (0-100%), weakest first:\n")
		for i, v := range spec.StudentContext {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %.0f%%\n", v.SkillName, v.Mastery*100)
		}
	}

	if len(spec.AvoidPrompts) > 0 {
		b.WriteString("\nAlready on this item:\n")
		for i, p := range spec.AvoidPrompts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
	}

	if src := truncateRunes(strings.TrimSpace(spec.SourceText), g.Config.MaxSourceChars); src != "" {
		b.WriteString("\nSource material, each page starting with [page N]:\n")
		b.WriteString(src)
		b.WriteString("\n")
	} else {
		b.WriteString("\nNo source material: do not produce source-reference questions.\n")
	}

	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func normalizeQuestion(raw json.RawMessage) (model.Question, error) {
	var rq rawQuestion
	if err := json.Unmarshal(raw, &rq); err != nil {
		return model.Question{}, fmt.Errorf("decode question: %w", err)
	}

	prompt := strings.TrimSpace(rq.Prompt)
	if prompt == "" {
		prompt = strings.TrimSpace(rq.Question)
	}
	choices := rq.Choices
	if len(choices) == 0 {
		choices = rq.Options
	}
	for i := range choices {
		choices[i] = strings.TrimSpace(choices[i])
	}

	qt, ok := model.NormalizeQuestionType(rq.Type)
	if !ok {
		if strings.TrimSpace(rq.Type) != "" || len(choices) < 2 {
			return model.Question{}, fmt.Errorf("unknown question type %q", rq.Type)
		}
		qt = model.QuestionMultipleChoice
	}

	q := model.Question{
		ID:          uuid.NewString(),
		Type:        qt,
		Prompt:      prompt,
		Explanation: strings.TrimSpace(rq.Explanation),
	}

	switch qt {
	case model.QuestionMultipleChoice:
		q.Choices = choices
		q.AnswerIndex = rq.AnswerIndex
		if q.AnswerIndex == nil {
			q.AnswerIndex = resolveAnswerIndex(rq.Answer, choices)
		}
	case model.QuestionShortAnswer:
		q.ExpectedAnswer = strings.TrimSpace(rq.ExpectedAnswer)
		if q.ExpectedAnswer == "" {
			q.ExpectedAnswer = strings.TrimSpace(rq.Answer)
		}
	case model.QuestionSourceReference:
		q.SourcePage = rq.SourcePage
		q.ExpectedAnswer = strings.TrimSpace(rq.ExpectedAnswer)
	}

	if err := q.Validate(); err != nil {
		return model.Question{}, err
	}
	return q, nil
}

// resolveAnswerIndex accepts a letter ("B", "b)"), a 0-based number or
// the text of a choice.
func resolveAnswerIndex(answer string, choices []string) *int {
	a := strings.TrimSpace(answer)
	if a == "" {
		return nil
	}
	for i, c := range choices {
		if strings.EqualFold(a, c) {
			return &i
		}
	}
	letter := strings.TrimRight(a, ").: ")
	if len(letter) == 1 {
		ch := strings.ToUpper(letter)[0]
		if ch >= 'A' && ch <= 'Z' {
			idx := int(ch - 'A')
			return &idx
		}
	}
	if n, err := strconv.Atoi(a); err == nil {
		return &n
	}
	return nil
}

// submittedChoice maps a student's answer to a choice. Only the exact
// text of a choice or an in-range letter label counts; anything else is
// wrong rather than guessed at.
func submittedChoice(answer string, choices []string) *int {
	a := strings.TrimSpace(answer)
	if a == "" {
		return nil
	}
	for i, c := range choices {
		if strings.EqualFold(a, c) {
			return &i
		}
	}
	letter := strings.TrimRight(a, ").: ")
	if len(letter) != 1 {
		return nil
	}
	ch := strings.ToUpper(letter)[0]
	if ch < 'A' || ch > 'Z' {
		return nil
	}
	if idx := int(ch - 'A'); idx < len(choices) {
		return &idx
	}
	return nil
}

// TopicSuggestion is a candidate skill for a subject.
type TopicSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var topicSchema = &llm.Schema{
	Name:        "topic-suggestions",
	Description: "Candidate skills for a subject",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topics": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"topics"},
	},
}

// SuggestTopics asks the backend for up to count distinct skills that make
// up subject.
func (g *ContentGenerator) SuggestTopics(ctx context.Context, subject string, count int) ([]TopicSuggestion, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, util.NewValidationError("subject", "subject is required")
	}
	max := g.Config.MaxTopicSuggests
	if max <= 0 {
		max = 15
	}
	if count <= 0 || count > max {
		count = max
	}

	req := llm.UserPrompt(
		"You design curricula for private tutors. List the distinct skills a student must master for the subject, in the order they are usually taught. Names are short (at most 5 words).",
		fmt.Sprintf("Subject: %s\nNumber of skills: %d", subject, count),
	)
	req.Schema = topicSchema
	req.MaxTokens = g.Config.MaxTokens
	req.Temperature = g.Config.Temperature

	raw, err := g.call(ctx, "suggest-topics", req)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Topics []TopicSuggestion `json:"topics"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &util.GenerationError{Err: fmt.Errorf("decode topics: %w", err)}
	}

	seen := make(map[string]bool)
	out := make([]TopicSuggestion, 0, count)
	for _, t := range payload.Topics {
		name := strings.Join(strings.Fields(t.Name), " ")
		key := strings.ToLower(name)
		if name == "" || len(name) > 100 || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, TopicSuggestion{Name: name, Description: strings.TrimSpace(t.Description)})
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, util.ErrGenerationEmptyResult
	}
	return out, nil
}
