package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/repository"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Tutor domain errors.
var (
	ErrTutorDisabled        = errors.New("AI tutor is not configured")
	ErrSessionNotCompleted  = errors.New("explanations are only available after submission")
	ErrQuestionNotInSession = errors.New("question does not belong to this session's exam")
)

// TutorService answers "why was I wrong" for questions in completed sessions
// through an OpenAI-compatible endpoint.
type TutorService struct {
	api          *openai.Client
	model        string
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.ExamSessionRepository
	log          zerolog.Logger
}

// NewTutorService creates a new TutorService. A nil client is returned as a
// disabled service when no API key is configured.
func NewTutorService(
	baseURL, apiKey, modelName string,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.ExamSessionRepository,
	log zerolog.Logger,
) *TutorService {
	s := &TutorService{
		model:        modelName,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		log:          log.With().Str("component", "tutor_service").Logger(),
	}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		s.api = openai.NewClientWithConfig(cfg)
	}
	return s
}

// Enabled reports whether the tutor has an API client configured.
func (s *TutorService) Enabled() bool {
	return s.api != nil
}

type tutorReply struct {
	Explanation string `json:"explanation"`
	KeyConcept  string `json:"key_concept"`
}

// Explain produces an explanation for a question the student answered in a
// completed session. The session must belong to the student and be completed;
// explanations are a post-exam review feature, never available mid-exam.
func (s *TutorService) Explain(ctx context.Context, studentID int, sessionID uuid.UUID, req *model.ExplainRequest) (*model.Explanation, error) {
	if s.api == nil {
		return nil, ErrTutorDisabled
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if session.StudentID != studentID {
		return nil, ErrNotSessionOwner
	}
	if session.Status != model.SessionStatusCompleted {
		return nil, ErrSessionNotCompleted
	}

	question, err := s.questionRepo.GetByID(ctx, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if question.ExamID != session.ExamID {
		return nil, ErrQuestionNotInSession
	}

	selected := req.SelectedAnswer
	if selected == "" {
		answers, err := s.sessionRepo.GetAnswers(ctx, sessionID)
		if err == nil {
			selected = answers[question.ID.String()]
		}
	}

	resp, err := s.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildTutorPrompt(question, selected)},
			{Role: openai.ChatMessageRoleUser, Content: "Explain this question to me."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("tutor API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("tutor returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	var reply tutorReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("parse tutor response: %w (raw: %s)", err, raw)
	}

	return &model.Explanation{
		QuestionID:    question.ID,
		CorrectAnswer: question.CorrectAnswer,
		Explanation:   reply.Explanation,
		KeyConcept:    reply.KeyConcept,
	}, nil
}

func buildTutorPrompt(q *model.Question, selected string) string {
	var sb strings.Builder
	sb.WriteString("You are a patient tutor helping a Nigerian student prepare for JAMB, WAEC, NECO and GCE exams.\n\n")
	sb.WriteString("QUESTION: " + q.Text + "\n\n")
	sb.WriteString("OPTIONS:\n")
	for i, opt := range q.Options {
		sb.WriteString(fmt.Sprintf("%c. %s\n", 'A'+i, opt))
	}
	sb.WriteString("\nCORRECT ANSWER: " + q.CorrectAnswer + "\n")
	if selected != "" && selected != q.CorrectAnswer {
		sb.WriteString("STUDENT PICKED: " + selected + "\n")
		sb.WriteString("\nExplain why the student's choice is wrong and why the correct answer is right.\n")
	} else {
		sb.WriteString("\nExplain why the correct answer is right.\n")
	}
	sb.WriteString("Keep the explanation under 150 words and name the single key concept being tested.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"explanation": "<explanation>", "key_concept": "<concept name>"}`)
	sb.WriteString("\n")
	return sb.String()
}
