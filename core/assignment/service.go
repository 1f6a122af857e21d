package assignment

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core"
)

var (
	// errors
	ErrNotFound    = errors.New("assignment not found")
	ErrFileMissing = errors.New("assignment file missing or unreadable")
	ErrNotOwner    = errors.New("only the uploader or an admin can delete an assignment")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Assignment, error)
		DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// FileStore is the document store boundary: the core only ever
	// saves on upload, opens for extraction and deletes on teardown.
	FileStore interface {
		Save(ctx context.Context, name string, r io.Reader) (ref string, err error)
		Open(ctx context.Context, ref string) (io.ReadCloser, int64, error)
		Delete(ctx context.Context, ref string) error
	}

	// QuizInvalidator cascades an assignment deletion into the quiz domain.
	// The cascade is explicit: deleting an assignment must leave no quiz
	// and no attempts behind.
	QuizInvalidator interface {
		DeleteForAssignment(ctx context.Context, assignmentID string) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, uploaderID, originalName string, content io.Reader) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		OpenFile(ctx context.Context, a Assignment) (io.ReadCloser, int64, error)
		Delete(ctx context.Context, id, actorID string, actorIsAdmin bool) error
	}

	service struct {
		repo    Repository
		store   FileStore
		quizzes QuizInvalidator
		logger  core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, store FileStore, quizzes QuizInvalidator, logger core.Logger) *service {
	return &service{
		repo:    repo,
		store:   store,
		quizzes: quizzes,
		logger:  logger,
	}
}

func (svc *service) Create(ctx context.Context, uploaderID, originalName string, content io.Reader) (Assignment, error) {
	ref, err := svc.store.Save(ctx, originalName, content)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "storing assignment file")
	}

	a := Assignment{
		UploaderID:   uploaderID,
		FileRef:      ref,
		OriginalName: originalName,
		CreatedAt:    time.Now().UTC(),
	}
	a, err = svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		// best effort: do not leave an orphan file behind
		_ = svc.store.Delete(ctx, ref)
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return a, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

// OpenFile resolves the assignment's stored file reference to a byte stream.
func (svc *service) OpenFile(ctx context.Context, a Assignment) (io.ReadCloser, int64, error) {
	rc, size, err := svc.store.Open(ctx, a.FileRef)
	if err != nil {
		return nil, 0, ErrFileMissing
	}
	return rc, size, nil
}

// Delete removes the assignment, its stored file and, explicitly,
// its quiz and attempts. Only the uploader or an admin may delete.
func (svc *service) Delete(ctx context.Context, id, actorID string, actorIsAdmin bool) error {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if !actorIsAdmin && a.UploaderID != actorID {
		return ErrNotOwner
	}

	if err = svc.quizzes.DeleteForAssignment(ctx, id); err != nil {
		return errors.Wrap(err, "invalidating quiz")
	}
	if err = svc.repo.DeleteAssignment(ctx, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if err = svc.store.Delete(ctx, a.FileRef); err != nil {
		// the record is gone; an unreachable file is only worth a log line
		svc.logger.Warn("deleting assignment file: "+err.Error(), err)
	}
	return nil
}
