package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/elimu-lms/elimu/core/assignment"
	"github.com/elimu-lms/elimu/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	store assignment.FileStore,
	uploaderID, name, content string,
) assignment.Assignment {
	t.Helper()
	ctx := context.Background()

	ref, err := store.Save(ctx, name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	a, err := repo.CreateAssignment(ctx, assignment.Assignment{
		UploaderID:   uploaderID,
		FileRef:      ref,
		OriginalName: name,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}
