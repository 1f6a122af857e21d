package quiz

import (
	"time"
)

// Question is a single generated multiple-choice question. Questions are
// immutable once generated for a given quiz version; their storage order is
// significant since submissions map answers by index.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	Answer        string   `json:"answer"`
	ReferencePage int      `json:"reference_page,omitempty"`
	Topic         string   `json:"topic,omitempty"`
	HighlightText string   `json:"highlight_text,omitempty"`
}

// ClientQuestion is a Question as exposed to the quiz-taking client:
// the answer key is never included.
type ClientQuestion struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	ReferencePage int      `json:"reference_page,omitempty"`
	Topic         string   `json:"topic,omitempty"`
	HighlightText string   `json:"highlight_text,omitempty"`
}

func (q Question) Client() ClientQuestion {
	return ClientQuestion{
		Text:          q.Text,
		Options:       q.Options,
		ReferencePage: q.ReferencePage,
		Topic:         q.Topic,
		HighlightText: q.HighlightText,
	}
}

// Quiz is the generated question set tied to one Assignment. At most one
// Quiz exists per Assignment; regeneration replaces the question set and
// bumps Version so stale submissions can be detected.
type Quiz struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	Version      int        `json:"version"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

func (q Quiz) ClientQuestions() []ClientQuestion {
	cqs := make([]ClientQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		cqs = append(cqs, question.Client())
	}
	return cqs
}

// ClientQuiz is the generation/lookup response shape.
type ClientQuiz struct {
	AssignmentID string           `json:"assignment_id"`
	Version      int              `json:"version"`
	Questions    []ClientQuestion `json:"quiz"`
}

// Attempt records one scored submission. Attempts are append-only: they are
// never edited or deleted, and double as the daily-quota counting source.
type Attempt struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	AssignmentID string         `json:"assignment_id"`
	QuizVersion  int            `json:"quiz_version"`
	Answers      map[int]string `json:"answers"`
	Score        int            `json:"score"`
	CoinsAwarded int            `json:"coins_awarded"`
	CreatedAt    time.Time      `json:"created_at"` // UTC
}

// SubmitAttempt is the submission request payload. Version must match the
// current quiz version; it guards against scoring answers given against a
// question set that has since been regenerated.
type SubmitAttempt struct {
	AssignmentID string         `json:"assignment_id" validate:"required"`
	Version      int            `json:"version" validate:"required,min=1"`
	Answers      map[int]string `json:"answers"`
}

// Suggestion points a learner back at the assignment material for a
// question they missed.
type Suggestion struct {
	PDFURL        string `json:"pdfUrl"`
	Page          int    `json:"page"`
	Topic         string `json:"topic"`
	HighlightText string `json:"highlightText"`
}

// Result is the scoring response. The full answer key is revealed on every
// submission, including for questions answered correctly.
type Result struct {
	Score          int                `json:"score"`
	Total          int                `json:"total"`
	CorrectAnswers []string           `json:"correctAnswers"`
	WrongQuestions []int              `json:"wrongQuestions"`
	Suggestions    map[int]Suggestion `json:"suggestions"`
	CoinsAwarded   int                `json:"coinsAwarded"`
	TotalCoins     int                `json:"totalCoins"`
}

// DefaultSuggestionTopic is used when the generator supplied no topic
// for a missed question.
const DefaultSuggestionTopic = "refer to assignment materials"

// DefaultSuggestionPage is used when the generator supplied no reference page.
const DefaultSuggestionPage = 1
