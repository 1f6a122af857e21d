package quiz

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/assignment"
	"github.com/elimu-lms/elimu/core/user"
)

var (
	// errors
	ErrQuizNotFound      = errors.New("no quiz exists for this assignment")
	ErrQuotaExceeded     = errors.New("daily attempt quota exceeded")
	ErrQuizStale         = errors.New("quiz has been regenerated; reload and retry")
	ErrSourceUnavailable = errors.New("assignment document unavailable")
	ErrEmptyContent      = errors.New("assignment document has no extractable text")
	ErrExtractionFailed  = errors.New("could not extract text from assignment document")
	ErrMalformedOutput   = errors.New("generator returned malformed quiz content")
)

type (
	Repository interface {
		// UpsertQuiz inserts the quiz for its assignment, or replaces the
		// question set and bumps the stored version when one already exists.
		UpsertQuiz(ctx context.Context, q Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuizByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (Quiz, error)
		DeleteQuizByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) error

		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		CountAttemptsSince(ctx context.Context, userID, assignmentID string, since time.Time, exec ...core.DBExecutor) (int, error)
		QueryAttempts(ctx context.Context, userID string, assignmentID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Attempt, error)
		DeleteAttemptsByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) error
	}

	// TextExtractor pulls plain text out of an uploaded assignment document.
	TextExtractor interface {
		Extract(ctx context.Context, r io.Reader, size int64) (string, error)
	}

	// TextGenerator is the LLM boundary: prompt in, raw completion out.
	TextGenerator interface {
		Generate(ctx context.Context, system, prompt string) (string, error)
	}

	ServiceInterface interface {
		Generate(ctx context.Context, assignmentID string) (ClientQuiz, error)
		GetByAssignment(ctx context.Context, assignmentID string) (ClientQuiz, error)
		Submit(ctx context.Context, usr user.User, sub SubmitAttempt) (Result, error)
		Attempts(ctx context.Context, usr user.User, assignmentID string) ([]Attempt, error)
		DeleteForAssignment(ctx context.Context, assignmentID string) error
	}

	service struct {
		db          core.DB
		repo        Repository
		assignments assignment.Repository
		files       assignment.FileStore
		users       user.Repository
		extractor   TextExtractor
		generator   TextGenerator
		conf        *core.Config
		logger      core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)
var _ assignment.QuizInvalidator = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	assignments assignment.Repository,
	files assignment.FileStore,
	users user.Repository,
	extractor TextExtractor,
	generator TextGenerator,
	conf *core.Config,
	logger core.Logger,
) *service {
	return &service{
		db:          db,
		repo:        repo,
		assignments: assignments,
		files:       files,
		users:       users,
		extractor:   extractor,
		generator:   generator,
		conf:        conf,
		logger:      logger,
	}
}

// Generate builds (or rebuilds) the quiz for an assignment: extract the
// document text, prompt the generator, validate its output strictly and
// persist the question set. Regeneration replaces any existing quiz and
// bumps its version; the previous question set is unrecoverable.
func (svc *service) Generate(ctx context.Context, assignmentID string) (ClientQuiz, error) {
	a, err := svc.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return ClientQuiz{}, errors.Wrap(err, "getting assignment")
	}

	rc, size, err := svc.files.Open(ctx, a.FileRef)
	if err != nil {
		return ClientQuiz{}, ErrSourceUnavailable
	}
	defer rc.Close()

	text, err := svc.extractor.Extract(ctx, rc, size)
	if err != nil {
		svc.logger.Error("quiz: text extraction failed", "assignment", assignmentID, "err", err)
		return ClientQuiz{}, ErrExtractionFailed
	}
	if strings.TrimSpace(text) == "" {
		return ClientQuiz{}, ErrEmptyContent
	}

	questions, err := svc.generateQuestions(ctx, text)
	if err != nil {
		return ClientQuiz{}, err
	}

	q, err := svc.repo.UpsertQuiz(ctx, Quiz{
		AssignmentID: assignmentID,
		Version:      1,
		Questions:    questions,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return ClientQuiz{}, errors.Wrap(err, "storing quiz")
	}

	return ClientQuiz{
		AssignmentID: q.AssignmentID,
		Version:      q.Version,
		Questions:    q.ClientQuestions(),
	}, nil
}

// generateQuestions runs the provider call under the configured timeout and
// parses its output, rejecting anything that does not validate strictly.
func (svc *service) generateQuestions(ctx context.Context, text string) ([]Question, error) {
	if timeout := svc.conf.Generation.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := svc.generator.Generate(ctx, generationSystemPrompt, buildGenerationPrompt(text, svc.conf.Quiz.QuestionCount))
	if err != nil {
		return nil, errors.Wrap(err, "generating quiz")
	}

	return parseQuestions(raw)
}

func parseQuestions(raw string) ([]Question, error) {
	cleaned := []byte(stripFences(raw))

	if err := validateQuestionsJSON(cleaned); err != nil {
		return nil, errors.Wrap(ErrMalformedOutput, err.Error())
	}

	var questions []Question
	if err := json.Unmarshal(cleaned, &questions); err != nil {
		return nil, errors.Wrap(ErrMalformedOutput, err.Error())
	}
	return questions, nil
}

func (svc *service) GetByAssignment(ctx context.Context, assignmentID string) (ClientQuiz, error) {
	q, err := svc.repo.GetQuizByAssignment(ctx, assignmentID)
	if err != nil {
		return ClientQuiz{}, errors.Wrap(err, "getting quiz")
	}
	return ClientQuiz{
		AssignmentID: q.AssignmentID,
		Version:      q.Version,
		Questions:    q.ClientQuestions(),
	}, nil
}

// Submit scores an attempt. The daily quota is checked first: a rejected
// submission writes nothing and does not consume an attempt. Scoring is
// exact string equality of the submitted answer against the stored key,
// by question index; unanswered questions score zero. A perfect score
// awards coins; the attempt record and the coin credit commit in one
// transaction.
func (svc *service) Submit(ctx context.Context, usr user.User, sub SubmitAttempt) (Result, error) {
	q, err := svc.repo.GetQuizByAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting quiz")
	}
	if sub.Version != q.Version {
		return Result{}, ErrQuizStale
	}

	count, err := svc.repo.CountAttemptsSince(ctx, usr.ID, sub.AssignmentID, startOfToday())
	if err != nil {
		return Result{}, errors.Wrap(err, "counting attempts")
	}
	if count >= svc.conf.Quiz.DailyAttemptQuota {
		return Result{}, ErrQuotaExceeded
	}

	res := svc.score(q, sub.Answers)

	attempt := Attempt{
		UserID:       usr.ID,
		AssignmentID: sub.AssignmentID,
		QuizVersion:  q.Version,
		Answers:      sub.Answers,
		Score:        res.Score,
		CoinsAwarded: res.CoinsAwarded,
		CreatedAt:    time.Now().UTC(),
	}

	err = svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.CreateAttempt(ctx, attempt, exec); err != nil {
			return errors.Wrap(err, "recording attempt")
		}
		if res.CoinsAwarded > 0 {
			balance, err := svc.users.IncrementUserCoins(ctx, usr.ID, res.CoinsAwarded, exec)
			if err != nil {
				return errors.Wrap(err, "crediting coins")
			}
			res.TotalCoins = balance
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.CoinsAwarded == 0 {
		res.TotalCoins = usr.Coins
	}
	return res, nil
}

func (svc *service) score(q Quiz, answers map[int]string) Result {
	res := Result{
		Total:          len(q.Questions),
		CorrectAnswers: make([]string, len(q.Questions)),
		WrongQuestions: make([]int, 0, len(q.Questions)),
		Suggestions:    make(map[int]Suggestion),
	}

	for i, question := range q.Questions {
		res.CorrectAnswers[i] = question.Answer
		if answers[i] == question.Answer {
			res.Score++
			continue
		}
		res.WrongQuestions = append(res.WrongQuestions, i)
		res.Suggestions[i] = suggestionFor(q.AssignmentID, question)
	}

	if res.Score == res.Total && res.Total > 0 {
		res.CoinsAwarded = svc.conf.Quiz.PerfectScoreReward
	}
	return res
}

func suggestionFor(assignmentID string, question Question) Suggestion {
	s := Suggestion{
		PDFURL:        assignment.Assignment{ID: assignmentID}.FileURL(),
		Page:          question.ReferencePage,
		Topic:         question.Topic,
		HighlightText: question.HighlightText,
	}
	if s.Page < 1 {
		s.Page = DefaultSuggestionPage
	}
	if s.Topic == "" {
		s.Topic = DefaultSuggestionTopic
	}
	return s
}

// startOfToday is the quota window boundary: local server midnight.
func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (svc *service) Attempts(ctx context.Context, usr user.User, assignmentID string) ([]Attempt, error) {
	ordering := []core.DBOrdering{{Field: "created_at", Ascending: false}}
	attempts, err := svc.repo.QueryAttempts(ctx, usr.ID, assignmentID, ordering)
	return attempts, errors.Wrap(err, "querying attempts")
}

// DeleteForAssignment removes the quiz and every attempt tied to an
// assignment, in one transaction. Called when the assignment is deleted.
func (svc *service) DeleteForAssignment(ctx context.Context, assignmentID string) error {
	return svc.db.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteAttemptsByAssignment(ctx, assignmentID, exec); err != nil {
			return errors.Wrap(err, "deleting attempts")
		}
		return errors.Wrap(svc.repo.DeleteQuizByAssignment(ctx, assignmentID, exec), "deleting quiz")
	})
}
