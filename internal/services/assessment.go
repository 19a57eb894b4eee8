package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// RecommendedCourse is a catalog course scored against a learner's
// assessment results.
type RecommendedCourse struct {
	CatalogCourse
	RelevanceScore int                   `json:"relevance_score"`
	LearnerLevel   types.CompetencyLevel `json:"learner_level"`
}

// AssessmentService runs the skills assessment fully offline: fixed
// question set, client-side scoring, and learning path generation from the
// embedded course catalog. Completed results are queued for sync.
type AssessmentService interface {
	Questions() []Question
	// StartOrResume returns the learner's in-progress assessment, creating
	// one when none exists.
	StartOrResume(ctx context.Context, learnerID string) (*types.AssessmentRecord, error)
	// SubmitAnswer checkpoints one response so a restarted process resumes
	// where the learner left off.
	SubmitAnswer(ctx context.Context, assessmentID string, questionID int, option AnswerOption) (*types.AssessmentRecord, error)
	// Complete scores the assessment, persists the results, and queues them
	// for sync.
	Complete(ctx context.Context, assessmentID string) (*types.AssessmentResults, error)
	// LearningPath orders the course catalog by relevance to the results.
	LearningPath(results *types.AssessmentResults) []RecommendedCourse
	Latest(ctx context.Context) (*types.AssessmentRecord, error)
}

type assessmentService struct {
	db        *gorm.DB
	log       *logger.Logger
	records   offline.AssessmentRepo
	queue     SyncQueueService
	questions []Question
	catalog   []CatalogCourse
}

func NewAssessmentService(db *gorm.DB, baseLog *logger.Logger, records offline.AssessmentRepo, queue SyncQueueService) AssessmentService {
	return &assessmentService{
		db:        db,
		log:       baseLog.With("service", "assessment"),
		records:   records,
		queue:     queue,
		questions: assessmentQuestions(),
		catalog:   courseCatalog(),
	}
}

func (s *assessmentService) Questions() []Question {
	out := make([]Question, len(s.questions))
	copy(out, s.questions)
	return out
}

func (s *assessmentService) StartOrResume(ctx context.Context, learnerID string) (*types.AssessmentRecord, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("%w: learner id required", pkgerrors.ErrInvalidArgument)
	}
	existing, err := s.records.InProgress(ctx, nil, learnerID)
	if err == nil {
		s.log.Debug("resuming assessment", "assessment_id", existing.ID, "responses", len(existing.Responses))
		return existing, nil
	}
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}

	record := &types.AssessmentRecord{
		ID:         uuid.NewString(),
		LearnerID:  learnerID,
		StartedAt:  time.Now().UTC(),
		SyncStatus: types.SyncStatusPending,
	}
	if err := s.records.Save(ctx, nil, record); err != nil {
		return nil, err
	}
	s.log.Info("assessment started", "assessment_id", record.ID, "learner_id", learnerID)
	return record, nil
}

func (s *assessmentService) SubmitAnswer(ctx context.Context, assessmentID string, questionID int, option AnswerOption) (*types.AssessmentRecord, error) {
	if s.questionByID(questionID) == nil {
		return nil, fmt.Errorf("%w: unknown question id %d", pkgerrors.ErrInvalidArgument, questionID)
	}
	record, err := s.records.Get(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}
	if record.CompletedAt != nil {
		return nil, fmt.Errorf("%w: assessment %s already completed", pkgerrors.ErrInvalidArgument, assessmentID)
	}

	response := types.AssessmentResponse{
		QuestionID: questionID,
		Answer:     option.Text,
		Value:      option.Value,
		Correct:    option.Correct,
		Timestamp:  time.Now().UTC(),
	}
	// Re-answering a question replaces the earlier response.
	replaced := false
	for i := range record.Responses {
		if record.Responses[i].QuestionID == questionID {
			record.Responses[i] = response
			replaced = true
			break
		}
	}
	if !replaced {
		record.Responses = append(record.Responses, response)
	}
	if err := s.records.Save(ctx, nil, record); err != nil {
		return nil, err
	}
	s.log.Debug("answer recorded", "assessment_id", assessmentID, "question_id", questionID, "replaced", replaced)
	return record, nil
}

func (s *assessmentService) Complete(ctx context.Context, assessmentID string) (*types.AssessmentResults, error) {
	record, err := s.records.Get(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}
	if len(record.Responses) == 0 {
		return nil, pkgerrors.ErrNoResponses
	}
	if record.CompletedAt != nil && record.Results != nil {
		return record.Results, nil
	}

	results := s.score(record.Responses)
	now := time.Now().UTC()
	record.Results = results
	record.CompletedAt = &now
	record.SyncStatus = types.SyncStatusPending
	if err := s.records.Save(ctx, nil, record); err != nil {
		return nil, err
	}
	s.log.Info("assessment completed",
		"assessment_id", record.ID, "overall_score", results.OverallScore, "overall_level", results.OverallLevel.String())

	payload := assessmentSyncPayload{
		AssessmentID: record.ID,
		LearnerID:    record.LearnerID,
		Responses:    record.Responses,
		Results:      results,
		CompletedAt:  now,
	}
	if _, err := s.queue.Enqueue(ctx, types.QueueTypeAssessment, payload); err != nil {
		// The results are durably stored; sync retries from the queue later.
		s.log.Warn("assessment results could not be queued for sync", "assessment_id", record.ID, "error", err)
	}
	return results, nil
}

func (s *assessmentService) score(responses []types.AssessmentResponse) *types.AssessmentResults {
	type categoryTally struct {
		weighted int
		maxScore int
	}
	tallies := make(map[types.SkillCategory]*categoryTally)

	totalValue := 0
	correct := 0
	for _, r := range responses {
		totalValue += r.Value
		if r.Correct {
			correct++
		}
		q := s.questionByID(r.QuestionID)
		if q == nil {
			continue
		}
		t := tallies[q.Category]
		if t == nil {
			t = &categoryTally{}
			tallies[q.Category] = t
		}
		weight := q.Difficulty
		if weight < 1 {
			weight = 1
		}
		t.weighted += r.Value * weight
		t.maxScore += 4 * weight
	}

	skillLevels := make(map[types.SkillCategory]types.CompetencyLevel, len(tallies))
	for category, t := range tallies {
		skillLevels[category] = levelForScore(float64(t.weighted) / float64(t.maxScore) * 100)
	}

	overallScore := int(math.Round(float64(totalValue) / float64(len(responses)*4) * 100))

	return &types.AssessmentResults{
		OverallScore:    overallScore,
		OverallLevel:    overallLevel(skillLevels),
		SkillLevels:     skillLevels,
		Recommendations: recommendationsFor(skillLevels),
		TotalQuestions:  len(responses),
		CorrectAnswers:  correct,
	}
}

func levelForScore(score float64) types.CompetencyLevel {
	switch {
	case score >= 90:
		return types.LevelExpert
	case score >= 70:
		return types.LevelAdvanced
	case score >= 50:
		return types.LevelIntermediate
	default:
		return types.LevelBeginner
	}
}

func overallLevel(skillLevels map[types.SkillCategory]types.CompetencyLevel) types.CompetencyLevel {
	if len(skillLevels) == 0 {
		return types.LevelBeginner
	}
	sum := 0
	for _, level := range skillLevels {
		sum += int(level)
	}
	return types.CompetencyLevel(int(math.Round(float64(sum) / float64(len(skillLevels)))))
}

func recommendationsFor(skillLevels map[types.SkillCategory]types.CompetencyLevel) []string {
	var out []string
	// Stable order for deterministic output.
	for _, category := range types.SkillCategories() {
		level, ok := skillLevels[category]
		if !ok {
			continue
		}
		name := categoryDisplayName(category)
		switch level {
		case types.LevelBeginner:
			out = append(out, fmt.Sprintf("Focus on building foundational skills in %s", name))
		case types.LevelIntermediate:
			out = append(out, fmt.Sprintf("Continue developing your %s skills with practical exercises", name))
		case types.LevelAdvanced:
			out = append(out, fmt.Sprintf("You're ready for advanced %s topics", name))
		}
	}
	if len(out) == 0 {
		out = append(out, "Start with basic digital skills to build a strong foundation")
	}
	return out
}

func (s *assessmentService) LearningPath(results *types.AssessmentResults) []RecommendedCourse {
	out := make([]RecommendedCourse, 0, len(s.catalog))
	for _, course := range s.catalog {
		learnerLevel, ok := results.SkillLevels[course.Category]
		if !ok {
			learnerLevel = types.LevelBeginner
		}
		score := 0
		switch {
		case course.RequiredLevel == learnerLevel:
			score = 10
		case course.RequiredLevel == learnerLevel+1:
			score = 8
		case course.RequiredLevel == learnerLevel-1:
			score = 5
		case course.RequiredLevel < learnerLevel:
			score = 2
		default:
			score = 1
		}
		// Weak areas come first.
		if learnerLevel == types.LevelBeginner {
			score += 3
		}
		out = append(out, RecommendedCourse{
			CatalogCourse:  course,
			RelevanceScore: score,
			LearnerLevel:   learnerLevel,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}

func (s *assessmentService) Latest(ctx context.Context) (*types.AssessmentRecord, error) {
	return s.records.Latest(ctx, nil)
}

func (s *assessmentService) questionByID(id int) *Question {
	for i := range s.questions {
		if s.questions[i].ID == id {
			return &s.questions[i]
		}
	}
	return nil
}
