package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

func (repo *assignmentRepository) query() []assignment.Assignment {
	as := make([]assignment.Assignment, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		as = append(as, *a)
	}
	return as
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.NewString()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	as := repo.query()

	if filter != nil && !filter.IsEmpty() {
		if filter.UploaderID != "" {
			var filtered []assignment.Assignment
			for _, a := range as {
				if a.UploaderID == filter.UploaderID {
					filtered = append(filtered, a)
				}
			}
			as = filtered
		}
		if as != nil && filter.Search != "" {
			var filtered []assignment.Assignment
			for _, a := range as {
				if strings.Contains(strings.ToLower(a.OriginalName), strings.ToLower(filter.Search)) {
					filtered = append(filtered, a)
				}
			}
			as = filtered
		}
		if as != nil && !filter.CreatedFrom.IsZero() {
			var filtered []assignment.Assignment
			timeUTC := filter.CreatedFrom.UTC()
			for _, a := range as {
				if a.CreatedAt.Equal(timeUTC) || a.CreatedAt.After(timeUTC) {
					filtered = append(filtered, a)
				}
			}
			as = filtered
		}
		if as != nil && !filter.CreatedTo.IsZero() {
			var filtered []assignment.Assignment
			timeUTC := filter.CreatedTo.UTC()
			for _, a := range as {
				if a.CreatedAt.Before(timeUTC) || a.CreatedAt.Equal(timeUTC) {
					filtered = append(filtered, a)
				}
			}
			as = filtered
		}
	}

	sort.SliceStable(as, func(i, j int) bool { return as[i].CreatedAt.After(as[j].CreatedAt) })
	return as, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}
