package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/assignment"
)

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo assignmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

type assignmentRow struct {
	ID           string      `db:"id"`
	UploaderID   null.String `db:"uploader_id"`
	FileRef      string      `db:"file_ref"`
	OriginalName string      `db:"original_name"`
	CreatedAt    null.Time   `db:"created_at"`
}

func (r assignmentRow) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:           r.ID,
		UploaderID:   r.UploaderID.String,
		FileRef:      r.FileRef,
		OriginalName: r.OriginalName,
		CreatedAt:    r.CreatedAt.Time,
	}
}

const assignmentColumns = "id, uploader_id, file_ref, original_name, created_at"

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	a.ID = uuid.NewString()

	query, args, err := psql.Insert("assignment").
		Columns("id", "uploader_id", "file_ref", "original_name", "created_at").
		Values(a.ID, null.NewString(a.UploaderID, a.UploaderID != ""), a.FileRef, a.OriginalName, a.CreatedAt).
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building assignment insert")
	}

	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	query, args, err := psql.Select(assignmentColumns).
		From("assignment").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building assignment query")
	}

	var row assignmentRow
	if err = repo.getExec(exec).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return row.toAssignment(), nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	qb := psql.Select(assignmentColumns).From("assignment")

	if filter != nil && !filter.IsEmpty() {
		if filter.UploaderID != "" {
			qb = qb.Where(sq.Eq{"uploader_id": filter.UploaderID})
		}
		if filter.Search != "" {
			qb = qb.Where(sq.ILike{"original_name": "%" + filter.Search + "%"})
		}
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	for _, ord := range ordering {
		qb = qb.OrderBy(ord.String())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building assignments query")
	}

	var rows []assignmentRow
	if err = repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	as := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.toAssignment())
	}
	return as, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	query, args, err := psql.Delete("assignment").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building assignment delete")
	}
	_, err = repo.getExec(exec).ExecContext(ctx, query, args...)
	return errors.Wrap(err, "deleting assignment")
}
