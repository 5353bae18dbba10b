package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/internal/model"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/logger"
	"tutorhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   uint
	Role model.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == model.Admin }

const defaultQuestionCount = 5

type GenerationRequest struct {
	Kind             model.ContentKind
	StudentID        uint
	SkillID          *uint
	Topic            string
	Difficulty       string
	Count            int
	SourceDocumentID string
	Instructions     string
	DueAt            *time.Time
	Title            string
}

type DraftUpdate struct {
	Title       *string
	Description *string
	Body        *string
	DueAt       *time.Time
	Questions   []QuestionEdit
}

type QuestionEdit struct {
	ID             string
	Prompt         *string
	Choices        []string
	AnswerIndex    *int
	ExpectedAnswer *string
	Explanation    *string
}

type GradeRequest struct {
	// Score overrides the computed score when set.
	Score *float64
	// Verdicts marks questions right or wrong by hand; they take precedence
	// over automatic checking and are the only way non-choice questions count.
	Verdicts map[string]bool
}

// ContentService owns the lifecycle of homework, quizzes and lessons.
type ContentService struct {
	DB        *gorm.DB
	Repo      *repository.ContentRepository
	UserRepo  *repository.UserRepository
	SkillRepo *repository.SkillRepository
	DocRepo   *repository.DocumentRepository
	Mastery   *MasteryService
	Selector  *SkillSelector
	Generator *ContentGenerator
	Config    config.GenerationConfig

	// Clock is overridable for tests.
	Clock func() time.Time
}

func NewContentService(
	db *gorm.DB,
	repo *repository.ContentRepository,
	userRepo *repository.UserRepository,
	skillRepo *repository.SkillRepository,
	docRepo *repository.DocumentRepository,
	mastery *MasteryService,
	selector *SkillSelector,
	generator *ContentGenerator,
	cfg config.GenerationConfig,
) *ContentService {
	return &ContentService{
		DB:        db,
		Repo:      repo,
		UserRepo:  userRepo,
		SkillRepo: skillRepo,
		DocRepo:   docRepo,
		Mastery:   mastery,
		Selector:  selector,
		Generator: generator,
		Config:    cfg,
		Clock:     time.Now,
	}
}

func (s *ContentService) now() time.Time {
	return s.Clock().UTC()
}

// Generate creates a draft for a student. Nothing is stored unless the
// backend returned at least one valid question.
func (s *ContentService) Generate(ctx context.Context, actor Actor, req GenerationRequest) (*model.ContentItem, error) {
	if actor.Role != model.Tutor && !actor.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	kind, ok := model.ParseContentKind(string(req.Kind))
	if !ok {
		return nil, util.NewValidationError("kind", "unknown content kind %q", req.Kind)
	}
	req.Kind = kind
	difficulty, ok := model.ParseDifficulty(req.Difficulty)
	if !ok {
		return nil, util.NewValidationError("difficulty", "difficulty must be easy, medium or hard")
	}
	if req.Count == 0 {
		req.Count = defaultQuestionCount
	}
	if req.Count < 1 || req.Count > s.Config.MaxQuestions {
		return nil, util.NewValidationError("count", "question count must be between 1 and %d", s.Config.MaxQuestions)
	}

	if err := s.requireStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	now := s.now()
	dueAt, err := s.resolveDueDate(req.Kind, req.DueAt, now)
	if err != nil {
		return nil, err
	}

	skill, topic, err := s.resolveSkill(ctx, req)
	if err != nil {
		return nil, err
	}

	var sourceText string
	var sourceDocID *string
	if req.SourceDocumentID != "" {
		doc, err := s.DocRepo.FindByID(ctx, req.SourceDocumentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.NewValidationError("sourceDocumentId", "document not found")
		}
		if err != nil {
			return nil, err
		}
		if doc.OwnerID != actor.ID && !actor.IsAdmin() {
			return nil, util.ErrPermissionDenied
		}
		sourceText = doc.ExtractedText
		sourceDocID = &doc.ID
	}

	studentContext, err := s.Selector.Rank(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	generated, err := s.Generator.Generate(ctx, GenerationSpec{
		Kind:           req.Kind,
		Topic:          topic,
		Difficulty:     difficulty,
		Count:          req.Count,
		SourceText:     sourceText,
		Instructions:   req.Instructions,
		StudentContext: studentContext,
	})
	if err != nil {
		return nil, err
	}
	// An abandoned request discards its result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = generated.Title
	}
	if title == "" {
		title = fmt.Sprintf("%s %s", topic, req.Kind)
	}

	item := &model.ContentItem{
		Kind:             req.Kind,
		TutorID:          actor.ID,
		StudentID:        req.StudentID,
		Title:            title,
		Description:      strings.TrimSpace(req.Instructions),
		Status:           model.StatusDraft,
		Difficulty:       difficulty,
		DueAt:            dueAt,
		Questions:        datatypes.JSONSlice[model.Question](generated.Questions),
		Body:             generated.Body,
		SourceDocumentID: sourceDocID,
	}
	if skill != nil {
		item.SkillID = &skill.ID
	}

	if err := s.Repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("save generated %s: %w", req.Kind, err)
	}
	monitoring.ContentTransitions.WithLabelValues(string(item.Kind), string(model.StatusDraft)).Inc()
	logger.Log.Info("Generated content draft",
		zap.String("kind", string(item.Kind)),
		zap.String("id", item.ID),
		zap.Uint("tutor_id", actor.ID),
		zap.Uint("student_id", item.StudentID),
		zap.Int("questions", len(item.Questions)),
		zap.Int("dropped", generated.Dropped))
	return item, nil
}

func (s *ContentService) requireStudent(ctx context.Context, studentID uint) error {
	if studentID == 0 {
		return util.NewValidationError("studentId", "student is required")
	}
	user, err := s.UserRepo.FindByID(ctx, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.NewValidationError("studentId", "student %d does not exist", studentID)
	}
	if err != nil {
		return err
	}
	if user.Role != model.Student {
		return util.NewValidationError("studentId", "user %d is not a student", studentID)
	}
	return nil
}

// resolveDueDate fixes the due date at creation. Homework and lessons
// default to DefaultDueDays from now; quizzes may have none.
func (s *ContentService) resolveDueDate(kind model.ContentKind, requested *time.Time, now time.Time) (*time.Time, error) {
	if requested != nil {
		due := requested.UTC()
		if !due.After(now) {
			return nil, util.NewValidationError("dueAt", "due date must be in the future")
		}
		return &due, nil
	}
	if !kind.RequiresDueDate() {
		return nil, nil
	}
	days := s.Config.DefaultDueDays
	if days <= 0 {
		days = 7
	}
	due := now.AddDate(0, 0, days)
	return &due, nil
}

// resolveSkill applies explicit skill, then topic, then the selector.
func (s *ContentService) resolveSkill(ctx context.Context, req GenerationRequest) (*model.Skill, string, error) {
	topic := strings.TrimSpace(req.Topic)
	if req.SkillID != nil || topic == "" {
		skill, err := s.Selector.Select(ctx, req.StudentID, req.SkillID)
		if err != nil {
			return nil, "", err
		}
		if topic == "" {
			topic = skill.Name
		}
		return skill, topic, nil
	}

	skill, err := s.SkillRepo.FindByName(ctx, topic)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// free-form topic; the item stays generic
		return nil, topic, nil
	}
	if err != nil {
		return nil, "", err
	}
	return skill, topic, nil
}

func (s *ContentService) load(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error) {
	item, err := s.Repo.FindByID(ctx, kind, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return item, err
}

func (s *ContentService) requireOwner(actor Actor, item *model.ContentItem) error {
	if actor.IsAdmin() || (actor.Role == model.Tutor && item.TutorID == actor.ID) {
		return nil
	}
	return util.ErrPermissionDenied
}

func (s *ContentService) requireSubject(actor Actor, item *model.ContentItem) error {
	if actor.IsAdmin() || (actor.Role == model.Student && item.StudentID == actor.ID) {
		return nil
	}
	return util.ErrPermissionDenied
}

func (s *ContentService) canView(ctx context.Context, actor Actor, item *model.ContentItem) error {
	switch actor.Role {
	case model.Admin:
		return nil
	case model.Tutor:
		if item.TutorID == actor.ID {
			return nil
		}
	case model.Student:
		if item.StudentID == actor.ID && item.Status != model.StatusDraft {
			return nil
		}
	case model.Parent:
		if item.Status == model.StatusDraft {
			return util.ErrPermissionDenied
		}
		ok, err := s.UserRepo.IsParentOf(ctx, actor.ID, item.StudentID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return util.ErrPermissionDenied
}

// redact hides answer keys from learners until the item is finished.
func redact(actor Actor, item *model.ContentItem) *model.ContentItem {
	if actor.Role != model.Student && actor.Role != model.Parent {
		return item
	}
	if item.Status.Terminal() {
		return item
	}
	cp := *item
	cp.Questions = make(datatypes.JSONSlice[model.Question], len(item.Questions))
	for i, q := range item.Questions {
		q.AnswerIndex = nil
		q.ExpectedAnswer = ""
		q.Explanation = ""
		cp.Questions[i] = q
	}
	return &cp
}

func (s *ContentService) Get(ctx context.Context, actor Actor, kind model.ContentKind, id string) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actor, item); err != nil {
		return nil, err
	}
	return redact(actor, item), nil
}

func (s *ContentService) List(ctx context.Context, actor Actor, kind model.ContentKind, status model.ContentStatus, page, limit int) ([]model.ContentItem, int64, error) {
	f := repository.ContentFilter{Status: status}
	switch actor.Role {
	case model.Admin:
	case model.Tutor:
		f.TutorID = &actor.ID
	case model.Student:
		f.StudentIDs = []uint{actor.ID}
		f.ExcludeDraft = true
	case model.Parent:
		children, err := s.UserRepo.ChildIDs(ctx, actor.ID)
		if err != nil {
			return nil, 0, err
		}
		if children == nil {
			children = []uint{}
		}
		f.StudentIDs = children
		f.ExcludeDraft = true
	default:
		return nil, 0, util.ErrPermissionDenied
	}

	items, total, err := s.Repo.List(ctx, kind, f, page, limit)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i] = *redact(actor, &items[i])
	}
	return items, total, nil
}

func (s *ContentService) requireDraft(item *model.ContentItem, action string) error {
	if item.Status != model.StatusDraft {
		return &util.TransitionError{Kind: string(item.Kind), From: string(item.Status), Action: action}
	}
	return nil
}

// UpdateDraft edits a draft owned by the actor.
func (s *ContentService) UpdateDraft(ctx context.Context, actor Actor, kind model.ContentKind, id string, upd DraftUpdate) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(actor, item); err != nil {
		return nil, err
	}
	if err := s.requireDraft(item, "edit"); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, util.NewValidationError("title", "title must not be empty")
		}
		item.Title = title
		fields["title"] = title
	}
	if upd.Description != nil {
		item.Description = strings.TrimSpace(*upd.Description)
		fields["description"] = item.Description
	}
	if upd.Body != nil {
		item.Body = *upd.Body
		fields["body"] = item.Body
	}
	if upd.DueAt != nil {
		due := upd.DueAt.UTC()
		if !due.After(s.now()) {
			return nil, util.NewValidationError("dueAt", "due date must be in the future")
		}
		item.DueAt = &due
		fields["due_at"] = due
	}
	if len(upd.Questions) > 0 {
		questions, err := applyQuestionEdits(item.Questions, upd.Questions)
		if err != nil {
			return nil, err
		}
		item.Questions = questions
		fields["questions"] = questions
	}
	if len(fields) == 0 {
		return item, nil
	}

	if err := s.update(ctx, item, fields); err != nil {
		return nil, err
	}
	return item, nil
}

func applyQuestionEdits(current []model.Question, edits []QuestionEdit) (datatypes.JSONSlice[model.Question], error) {
	out := make(datatypes.JSONSlice[model.Question], len(current))
	copy(out, current)

	index := make(map[string]int, len(out))
	for i, q := range out {
		index[q.ID] = i
	}

	for _, e := range edits {
		i, ok := index[e.ID]
		if !ok {
			return nil, util.NewValidationError("questions", "question %s is not on this item", e.ID)
		}
		q := out[i]
		if e.Prompt != nil {
			q.Prompt = strings.TrimSpace(*e.Prompt)
		}
		if e.Choices != nil {
			q.Choices = append([]string(nil), e.Choices...)
		}
		if e.AnswerIndex != nil {
			idx := *e.AnswerIndex
			q.AnswerIndex = &idx
		}
		if e.ExpectedAnswer != nil {
			q.ExpectedAnswer = strings.TrimSpace(*e.ExpectedAnswer)
		}
		if e.Explanation != nil {
			q.Explanation = strings.TrimSpace(*e.Explanation)
		}
		if err := q.Validate(); err != nil {
			return nil, util.NewValidationError("questions", "question %s: %v", e.ID, err)
		}
		out[i] = q
	}
	return out, nil
}

// RemoveQuestion deletes one question from a draft.
func (s *ContentService) RemoveQuestion(ctx context.Context, actor Actor, kind model.ContentKind, id, questionID string) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(actor, item); err != nil {
		return nil, err
	}
	if err := s.requireDraft(item, "edit"); err != nil {
		return nil, err
	}

	i := item.QuestionIndex(questionID)
	if i < 0 {
		return nil, util.ErrNotFound
	}
	questions := make(datatypes.JSONSlice[model.Question], 0, len(item.Questions)-1)
	questions = append(questions, item.Questions[:i]...)
	questions = append(questions, item.Questions[i+1:]...)

	item.Questions = questions
	if err := s.update(ctx, item, map[string]interface{}{"questions": questions}); err != nil {
		return nil, err
	}
	return item, nil
}

// GenerateMore appends freshly generated questions to a draft. A failed
// generation leaves the draft untouched.
func (s *ContentService) GenerateMore(ctx context.Context, actor Actor, kind model.ContentKind, id string, count int, instructions string) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(actor, item); err != nil {
		return nil, err
	}
	if err := s.requireDraft(item, "add questions to"); err != nil {
		return nil, err
	}
	if count == 0 {
		count = defaultQuestionCount
	}
	if room := s.Config.MaxQuestions - len(item.Questions); count < 1 || count > room {
		return nil, util.NewValidationError("count", "can add between 1 and %d more questions", max(room, 0))
	}

	topic := item.Title
	if item.SkillID != nil {
		if skill, err := s.SkillRepo.FindByID(ctx, *item.SkillID); err == nil {
			topic = skill.Name
		}
	}

	var sourceText string
	if item.SourceDocumentID != nil {
		if doc, err := s.DocRepo.FindByID(ctx, *item.SourceDocumentID); err == nil {
			sourceText = doc.ExtractedText
		}
	}

	avoid := make([]string, len(item.Questions))
	for i, q := range item.Questions {
		avoid[i] = q.Prompt
	}

	generated, err := s.Generator.Generate(ctx, GenerationSpec{
		Kind:         item.Kind,
		Topic:        topic,
		Difficulty:   item.Difficulty,
		Count:        count,
		SourceText:   sourceText,
		Instructions: instructions,
		AvoidPrompts: avoid,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(generated.Questions) == 0 {
		return nil, util.ErrGenerationEmptyResult
	}

	questions := make(datatypes.JSONSlice[model.Question], 0, len(item.Questions)+len(generated.Questions))
	questions = append(questions, item.Questions...)
	questions = append(questions, generated.Questions...)

	item.Questions = questions
	if err := s.update(ctx, item, map[string]interface{}{"questions": questions}); err != nil {
		return nil, err
	}
	return item, nil
}

// Assign hands a draft to its student. Assigning an assigned item is a
// no-op; the due date was fixed at creation.
func (s *ContentService) Assign(ctx context.Context, actor Actor, kind model.ContentKind, id string) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(actor, item); err != nil {
		return nil, err
	}
	if item.Status == model.StatusAssigned {
		return item, nil
	}
	if err := s.checkTransition(item, model.StatusAssigned); err != nil {
		return nil, err
	}

	if item.Kind.Graded() && len(item.Questions) == 0 {
		return nil, util.NewValidationError("questions", "cannot assign %s without questions", item.Kind)
	}
	if item.Kind == model.KindLesson && len(item.Questions) == 0 && strings.TrimSpace(item.Body) == "" {
		return nil, util.NewValidationError("body", "cannot assign an empty lesson")
	}
	if item.Kind.RequiresDueDate() && item.DueAt == nil {
		return nil, util.NewValidationError("dueAt", "%s needs a due date before it can be assigned", item.Kind)
	}

	now := s.now()
	item.Status = model.StatusAssigned
	item.AssignedAt = &now
	if err := s.update(ctx, item, map[string]interface{}{
		"status":      model.StatusAssigned,
		"assigned_at": now,
	}); err != nil {
		return nil, err
	}
	s.logTransition(actor, item)
	return item, nil
}

// Submit records the student's answers. No score is computed here.
func (s *ContentService) Submit(ctx context.Context, actor Actor, kind model.ContentKind, id string, answers map[string]string) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireSubject(actor, item); err != nil {
		return nil, err
	}
	if err := s.checkTransition(item, model.StatusSubmitted); err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, util.NewValidationError("answers", "answers are required")
	}
	clean := make(model.Answers, len(answers))
	for qid, a := range answers {
		if item.QuestionIndex(qid) < 0 {
			return nil, util.NewValidationError("answers", "question %s is not on this item", qid)
		}
		clean[qid] = strings.TrimSpace(a)
	}

	now := s.now()
	item.Status = model.StatusSubmitted
	item.SubmittedAt = &now
	item.Answers = datatypes.NewJSONType(clean)
	if err := s.update(ctx, item, map[string]interface{}{
		"status":       model.StatusSubmitted,
		"submitted_at": now,
		"answers":      item.Answers,
	}); err != nil {
		return nil, err
	}
	s.logTransition(actor, item)
	return redact(actor, item), nil
}

// Grade scores a submitted or assigned homework/quiz and records the
// result as a mastery observation.
func (s *ContentService) Grade(ctx context.Context, actor Actor, kind model.ContentKind, id string, req GradeRequest) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(actor, item); err != nil {
		return nil, err
	}
	if err := s.checkTransition(item, model.StatusGraded); err != nil {
		return nil, err
	}

	score, err := ComputeScore(item, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item.Status = model.StatusGraded
	item.GradedAt = &now
	item.Score = &score
	if err := s.complete(ctx, item, now, map[string]interface{}{
		"status":    model.StatusGraded,
		"graded_at": now,
		"score":     score,
	}); err != nil {
		return nil, err
	}
	s.logTransition(actor, item)
	return item, nil
}

// Complete finishes a lesson with a score in [0,1].
func (s *ContentService) Complete(ctx context.Context, actor Actor, kind model.ContentKind, id string, score *float64) (*model.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if s.requireSubject(actor, item) != nil && s.requireOwner(actor, item) != nil {
		return nil, util.ErrPermissionDenied
	}
	if err := s.checkTransition(item, model.StatusCompleted); err != nil {
		return nil, err
	}
	if score == nil {
		return nil, util.NewValidationError("score", "a score is required to complete a lesson")
	}
	if *score < 0 || *score > 1 {
		return nil, util.NewValidationError("score", "score must be between 0 and 1")
	}

	now := s.now()
	v := *score
	item.Status = model.StatusCompleted
	item.CompletedAt = &now
	item.Score = &v
	if err := s.complete(ctx, item, now, map[string]interface{}{
		"status":       model.StatusCompleted,
		"completed_at": now,
		"score":        v,
	}); err != nil {
		return nil, err
	}
	s.logTransition(actor, item)
	return item, nil
}

// Delete soft-deletes an item in any state.
func (s *ContentService) Delete(ctx context.Context, actor Actor, kind model.ContentKind, id string) error {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.requireOwner(actor, item); err != nil {
		return err
	}
	ok, err := s.Repo.SoftDelete(ctx, item)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrConcurrentUpdate
	}
	logger.Log.Info("Deleted content item",
		zap.String("kind", string(item.Kind)),
		zap.String("id", item.ID),
		zap.Uint("actor_id", actor.ID))
	return nil
}

func (s *ContentService) checkTransition(item *model.ContentItem, to model.ContentStatus) error {
	if !model.CanTransition(item.Kind, item.Status, to) {
		return &util.TransitionError{Kind: string(item.Kind), From: string(item.Status), To: string(to)}
	}
	return nil
}

func (s *ContentService) update(ctx context.Context, item *model.ContentItem, fields map[string]interface{}) error {
	ok, err := s.Repo.UpdateVersioned(ctx, item, fields)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrConcurrentUpdate
	}
	return nil
}

// complete moves item to its terminal status and, in the same
// transaction, applies the mastery observation once per item and
// terminal timestamp.
func (s *ContentService) complete(ctx context.Context, item *model.ContentItem, at time.Time, fields map[string]interface{}) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.Repo.WithTx(tx).UpdateVersioned(ctx, item, fields)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrConcurrentUpdate
		}
		return s.applyObservation(ctx, tx, item, at)
	})
}

func (s *ContentService) applyObservation(ctx context.Context, tx *gorm.DB, item *model.ContentItem, at time.Time) error {
	if item.SkillID == nil || item.Score == nil {
		return nil
	}
	mastery := model.ClampMastery(*item.Score)
	fresh, err := s.Mastery.Repo.WithTx(tx).RecordObservation(ctx, &model.MasteryObservation{
		ContentKind: item.Kind,
		ContentID:   item.ID,
		ObservedAt:  at,
		StudentID:   item.StudentID,
		SkillID:     *item.SkillID,
		Mastery:     mastery,
	})
	if err != nil {
		return fmt.Errorf("record mastery observation: %w", err)
	}
	if !fresh {
		logger.Log.Info("Mastery observation already applied",
			zap.String("kind", string(item.Kind)),
			zap.String("id", item.ID))
		return nil
	}
	if _, err := s.Mastery.UpsertTx(ctx, tx, item.StudentID, *item.SkillID, mastery, at); err != nil {
		return fmt.Errorf("update mastery: %w", err)
	}
	return nil
}

func (s *ContentService) logTransition(actor Actor, item *model.ContentItem) {
	monitoring.ContentTransitions.WithLabelValues(string(item.Kind), string(item.Status)).Inc()
	logger.Log.Info("Content status changed",
		zap.String("kind", string(item.Kind)),
		zap.String("id", item.ID),
		zap.String("status", string(item.Status)),
		zap.Uint("actor_id", actor.ID),
		zap.Int64("version", item.Version))
}

// ComputeScore grades item. Multiple-choice answers are checked
// automatically; other questions count only with a manual verdict. An
// explicit score wins over both.
func ComputeScore(item *model.ContentItem, req GradeRequest) (float64, error) {
	if req.Score != nil {
		if *req.Score < 0 || *req.Score > 1 {
			return 0, util.NewValidationError("score", "score must be between 0 and 1")
		}
		return *req.Score, nil
	}

	for qid := range req.Verdicts {
		if item.QuestionIndex(qid) < 0 {
			return 0, util.NewValidationError("verdicts", "question %s is not on this item", qid)
		}
	}

	answers := item.Answers.Data()
	var gradable, correct int
	for _, q := range item.Questions {
		if v, ok := req.Verdicts[q.ID]; ok {
			gradable++
			if v {
				correct++
			}
			continue
		}
		if q.Type != model.QuestionMultipleChoice || q.AnswerIndex == nil {
			continue
		}
		gradable++
		if idx := submittedChoice(answers[q.ID], q.Choices); idx != nil && *idx == *q.AnswerIndex {
			correct++
		}
	}

	if gradable == 0 {
		return 0, util.NewValidationError("score", "nothing can be graded automatically; provide a score or verdicts")
	}
	return float64(correct) / float64(gradable), nil
}
