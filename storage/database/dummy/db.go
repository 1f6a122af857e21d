package dummydb

import (
	"context"
	"sync"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/assignment"
	"github.com/elimu-lms/elimu/core/quiz"
	"github.com/elimu-lms/elimu/core/user"
)

type (
	DB struct {
		user       *userTable
		assignment *assignmentTable
		quiz       *quizTable
		attempt    *attemptTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment
	}

	quizTable struct {
		sync.RWMutex
		table map[string]*quiz.Quiz // keyed by assignment ID
	}

	attemptTable struct {
		sync.RWMutex
		table map[string]*quiz.Attempt
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		assignment: &assignmentTable{table: make(map[string]*assignment.Assignment)},
		quiz:       &quizTable{table: make(map[string]*quiz.Quiz)},
		attempt:    &attemptTable{table: make(map[string]*quiz.Attempt)},
	}
	return db, nil
}

// InTx runs fn directly; the in-memory store offers no rollback so it is
// only suitable for tests, like the rest of this package.
func (db *DB) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}
