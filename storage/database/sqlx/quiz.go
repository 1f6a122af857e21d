package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/quiz"
)

type quizRepository struct {
	exec core.DBExecutor
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{exec: exec}
}

func (repo quizRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

type quizRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	Version      int       `db:"version"`
	Questions    []byte    `db:"questions"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
}

func (r quizRow) toQuiz() (quiz.Quiz, error) {
	var questions []quiz.Question
	if err := json.Unmarshal(r.Questions, &questions); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "decoding questions")
	}
	return quiz.Quiz{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		Version:      r.Version,
		Questions:    questions,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}, nil
}

const quizColumns = "id, assignment_id, version, questions, created_at, updated_at"

func (repo quizRepository) UpsertQuiz(ctx context.Context, q quiz.Quiz, exec ...core.DBExecutor) (quiz.Quiz, error) {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "encoding questions")
	}

	now := time.Now().UTC()
	query, args, err := psql.Insert("quiz").
		Columns("id", "assignment_id", "version", "questions", "created_at", "updated_at").
		Values(uuid.NewString(), q.AssignmentID, 1, questions, now, now).
		Suffix(`ON CONFLICT (assignment_id) DO UPDATE
			SET questions = EXCLUDED.questions,
			    version = quiz.version + 1,
			    updated_at = EXCLUDED.updated_at
			RETURNING ` + quizColumns).
		ToSql()
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "building quiz upsert")
	}

	var row quizRow
	if err = repo.getExec(exec).GetContext(ctx, &row, query, args...); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "upserting quiz")
	}
	return row.toQuiz()
}

func (repo quizRepository) GetQuizByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) (quiz.Quiz, error) {
	query, args, err := psql.Select(quizColumns).
		From("quiz").
		Where(sq.Eq{"assignment_id": assignmentID}).
		ToSql()
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "building quiz query")
	}

	var row quizRow
	if err = repo.getExec(exec).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return quiz.Quiz{}, quiz.ErrQuizNotFound
		}
		return quiz.Quiz{}, errors.Wrap(err, "getting quiz")
	}
	return row.toQuiz()
}

func (repo quizRepository) DeleteQuizByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("quiz").Where(sq.Eq{"assignment_id": assignmentID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building quiz delete")
	}
	_, err = repo.getExec(exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting quiz")
}

type attemptRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	AssignmentID string    `db:"assignment_id"`
	QuizVersion  int       `db:"quiz_version"`
	Answers      []byte    `db:"answers"`
	Score        int       `db:"score"`
	CoinsAwarded int       `db:"coins_awarded"`
	CreatedAt    null.Time `db:"created_at"`
}

func (r attemptRow) toAttempt() (quiz.Attempt, error) {
	var answers map[int]string
	if err := json.Unmarshal(r.Answers, &answers); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "decoding answers")
	}
	return quiz.Attempt{
		ID:           r.ID,
		UserID:       r.UserID,
		AssignmentID: r.AssignmentID,
		QuizVersion:  r.QuizVersion,
		Answers:      answers,
		Score:        r.Score,
		CoinsAwarded: r.CoinsAwarded,
		CreatedAt:    r.CreatedAt.Time,
	}, nil
}

const attemptColumns = "id, user_id, assignment_id, quiz_version, answers, score, coins_awarded, created_at"

func (repo quizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt, exec ...core.DBExecutor) (quiz.Attempt, error) {
	if a.Answers == nil {
		a.Answers = make(map[int]string)
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "encoding answers")
	}

	a.ID = uuid.NewString()
	query, args, err := psql.Insert("attempt").
		Columns("id", "user_id", "assignment_id", "quiz_version", "answers", "score", "coins_awarded", "created_at").
		Values(a.ID, a.UserID, a.AssignmentID, a.QuizVersion, answers, a.Score, a.CoinsAwarded, a.CreatedAt).
		ToSql()
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "building attempt insert")
	}

	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return a, nil
}

func (repo quizRepository) CountAttemptsSince(ctx context.Context, userID, assignmentID string, since time.Time, exec ...core.DBExecutor) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("attempt").
		Where(sq.Eq{"user_id": userID, "assignment_id": assignmentID}).
		Where(sq.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building attempt count")
	}

	var count int
	if err = repo.getExec(exec).GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting attempts")
	}
	return count, nil
}

func (repo quizRepository) QueryAttempts(ctx context.Context, userID, assignmentID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]quiz.Attempt, error) {
	qb := psql.Select(attemptColumns).
		From("attempt").
		Where(sq.Eq{"user_id": userID})
	if assignmentID != "" {
		qb = qb.Where(sq.Eq{"assignment_id": assignmentID})
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	for _, ord := range ordering {
		qb = qb.OrderBy(ord.String())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building attempts query")
	}

	var rows []attemptRow
	if err = repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}

	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAttempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (repo quizRepository) DeleteAttemptsByAssignment(ctx context.Context, assignmentID string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("attempt").Where(sq.Eq{"assignment_id": assignmentID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building attempts delete")
	}
	_, err = repo.getExec(exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting attempts")
}
