package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/quiz"
)

type quizRepository struct {
	quizzes  *quizTable
	attempts *attemptTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{quizzes: db.quiz, attempts: db.attempt}
}

func (repo *quizRepository) UpsertQuiz(_ context.Context, q quiz.Quiz, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.quizzes.Lock()
	defer repo.quizzes.Unlock()

	now := time.Now().UTC()
	if existing, ok := repo.quizzes.table[q.AssignmentID]; ok {
		existing.Questions = q.Questions
		existing.Version++
		existing.UpdatedAt = now
		return *existing, nil
	}

	q.ID = uuid.NewString()
	q.UpdatedAt = now
	repo.quizzes.table[q.AssignmentID] = &q
	return q, nil
}

func (repo *quizRepository) GetQuizByAssignment(_ context.Context, assignmentID string, _ ...core.DBExecutor) (quiz.Quiz, error) {
	repo.quizzes.RLock()
	defer repo.quizzes.RUnlock()

	if q, ok := repo.quizzes.table[assignmentID]; ok {
		return *q, nil
	}
	return quiz.Quiz{}, quiz.ErrQuizNotFound
}

func (repo *quizRepository) DeleteQuizByAssignment(_ context.Context, assignmentID string, _ ...core.DBExecutor) error {
	repo.quizzes.Lock()
	defer repo.quizzes.Unlock()

	delete(repo.quizzes.table, assignmentID)
	return nil
}

func (repo *quizRepository) CreateAttempt(_ context.Context, a quiz.Attempt, _ ...core.DBExecutor) (quiz.Attempt, error) {
	repo.attempts.Lock()
	defer repo.attempts.Unlock()

	a.ID = uuid.NewString()
	repo.attempts.table[a.ID] = &a
	return a, nil
}

func (repo *quizRepository) CountAttemptsSince(_ context.Context, userID, assignmentID string, since time.Time, _ ...core.DBExecutor) (int, error) {
	repo.attempts.RLock()
	defer repo.attempts.RUnlock()

	var n int
	for _, a := range repo.attempts.table {
		if a.UserID == userID && a.AssignmentID == assignmentID && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (repo *quizRepository) QueryAttempts(_ context.Context, userID, assignmentID string, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]quiz.Attempt, error) {
	repo.attempts.RLock()
	defer repo.attempts.RUnlock()

	attempts := make([]quiz.Attempt, 0)
	for _, a := range repo.attempts.table {
		if a.UserID != userID {
			continue
		}
		if assignmentID != "" && a.AssignmentID != assignmentID {
			continue
		}
		attempts = append(attempts, *a)
	}

	asc := len(ordering) > 0 && ordering[0].Ascending
	sort.SliceStable(attempts, func(i, j int) bool {
		if asc {
			return attempts[i].CreatedAt.Before(attempts[j].CreatedAt)
		}
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
	return attempts, nil
}

func (repo *quizRepository) DeleteAttemptsByAssignment(_ context.Context, assignmentID string, _ ...core.DBExecutor) error {
	repo.attempts.Lock()
	defer repo.attempts.Unlock()

	for id, a := range repo.attempts.table {
		if a.AssignmentID == assignmentID {
			delete(repo.attempts.table, id)
		}
	}
	return nil
}
