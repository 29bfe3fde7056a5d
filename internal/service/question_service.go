package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/repository"
)

var ErrAnswerNotAnOption = errors.New("correct answer is not one of the options")

// QuestionService handles question authoring. Question content can only be
// changed while the exam is still a draft.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	examRepo     *repository.ExamRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, examRepo *repository.ExamRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo, examRepo: examRepo}
}

// ListByExam retrieves an exam's questions with answers, for the admin panel.
func (s *QuestionService) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Add appends one question to a draft exam.
func (s *QuestionService) Add(ctx context.Context, examID uuid.UUID, req *model.AddQuestionRequest) (*model.Question, error) {
	if err := s.requireDraft(ctx, examID); err != nil {
		return nil, err
	}

	question, err := buildQuestion(examID, req)
	if err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	if err := s.examRepo.SyncQuestionCount(ctx, examID); err != nil {
		return nil, fmt.Errorf("sync question count: %w", err)
	}
	return question, nil
}

// ReplaceAll swaps a draft exam's entire question set.
func (s *QuestionService) ReplaceAll(ctx context.Context, examID uuid.UUID, req *model.ReplaceQuestionsRequest) ([]model.Question, error) {
	if err := s.requireDraft(ctx, examID); err != nil {
		return nil, err
	}

	questions := make([]model.Question, len(req.Questions))
	for i := range req.Questions {
		q, err := buildQuestion(examID, &req.Questions[i])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}
		questions[i] = *q
	}

	if err := s.questionRepo.ReplaceAll(ctx, examID, questions); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	if err := s.examRepo.SyncQuestionCount(ctx, examID); err != nil {
		return nil, fmt.Errorf("sync question count: %w", err)
	}
	return questions, nil
}

// Delete removes a question from a draft exam.
func (s *QuestionService) Delete(ctx context.Context, examID, questionID uuid.UUID) error {
	if err := s.requireDraft(ctx, examID); err != nil {
		return err
	}
	if err := s.questionRepo.Delete(ctx, questionID); err != nil {
		return err
	}
	return s.examRepo.SyncQuestionCount(ctx, examID)
}

func (s *QuestionService) requireDraft(ctx context.Context, examID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusDraft {
		return ErrExamNotDraft
	}
	return nil
}

func buildQuestion(examID uuid.UUID, req *model.AddQuestionRequest) (*model.Question, error) {
	found := false
	for _, opt := range req.Options {
		if strings.EqualFold(opt, req.CorrectAnswer) {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrAnswerNotAnOption
	}

	q := &model.Question{
		ExamID:        examID,
		Text:          req.Text,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Difficulty:    req.Difficulty,
		Points:        req.Points,
		OrderNum:      req.OrderNum,
	}
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyMedium
	}
	if q.Points == 0 {
		q.Points = 1
	}
	return q, nil
}
