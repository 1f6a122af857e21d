package quiz_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core"
	"github.com/elimu-lms/elimu/core/assignment"
	"github.com/elimu-lms/elimu/core/quiz"
	"github.com/elimu-lms/elimu/core/user"
	"github.com/elimu-lms/elimu/services/filestore"
	dummydb "github.com/elimu-lms/elimu/storage/database/dummy"
)

const sampleOutput = `[
  {
    "question": "What resists a change in motion?",
    "options": ["Inertia", "Friction", "Gravity", "Torque"],
    "answer": "Inertia",
    "reference_page": 2,
    "topic": "Newton's first law",
    "highlight_text": "a body at rest stays at rest"
  },
  {
    "question": "What is the SI unit of force?",
    "options": ["Joule", "Newton", "Watt", "Pascal"],
    "answer": "Newton"
  }
]`

type testEnv struct {
	db      *dummydb.DB
	conf    *core.Config
	usrRepo user.Repository
	aRepo   assignment.Repository
	qRepo   quiz.Repository
	files   assignment.FileStore
	gen     *quiz.GeneratorMock
	ext     *quiz.ExtractorMock
	svc     quiz.ServiceInterface
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}

	conf := &core.Config{
		Quiz: core.QuizConfig{
			DailyAttemptQuota:  5,
			PerfectScoreReward: 5,
			QuestionCount:      10,
		},
	}

	env := &testEnv{
		db:      db,
		conf:    conf,
		usrRepo: dummydb.NewUserRepository(db),
		aRepo:   dummydb.NewAssignmentRepository(db),
		qRepo:   dummydb.NewQuizRepository(db),
		files:   filestore.NewMemoryStore(),
		gen:     &quiz.GeneratorMock{Output: sampleOutput},
		ext:     &quiz.ExtractorMock{},
	}
	env.svc = quiz.NewService(
		db,
		env.qRepo,
		env.aRepo,
		env.files,
		env.usrRepo,
		env.ext,
		env.gen,
		conf,
		testLogger{t},
	)
	return env
}

func (env *testEnv) createUser(t *testing.T) user.User {
	t.Helper()
	usr, err := env.usrRepo.CreateUser(context.Background(), user.User{
		Name:     "Jane Test",
		Username: "jane",
		Email:    "jane@test.test",
		Roles:    []string{user.RoleStudent},
	})
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func (env *testEnv) createAssignment(t *testing.T, content string) assignment.Assignment {
	t.Helper()
	ctx := context.Background()

	ref, err := env.files.Save(ctx, "notes.pdf", strings.NewReader(content))
	if err != nil {
		t.Fatalf("files.Save(): %v", err)
	}
	a, err := env.aRepo.CreateAssignment(ctx, assignment.Assignment{
		FileRef:      ref,
		OriginalName: "notes.pdf",
	})
	if err != nil {
		t.Fatalf("CreateAssignment(): %v", err)
	}
	return a
}

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, args ...interface{}) {}
func (l testLogger) Info(msg string, args ...interface{})  {}
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Logf(msg, args...) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Logf(msg, args...) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Logf(msg, args...) }

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("stores quiz and hides answers", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.createAssignment(t, "newton's laws of motion")

		cq, err := env.svc.Generate(ctx, a.ID)
		if err != nil {
			t.Fatalf("Generate(): %v", err)
		}
		if cq.Version != 1 {
			t.Errorf("Version = %d, want 1", cq.Version)
		}
		if len(cq.Questions) != 2 {
			t.Fatalf("len(Questions) = %d, want 2", len(cq.Questions))
		}
		if cq.Questions[0].Text != "What resists a change in motion?" {
			t.Errorf("unexpected question text %q", cq.Questions[0].Text)
		}
		// the extracted document text must reach the generator
		if len(env.gen.Prompts) != 1 || !strings.Contains(env.gen.Prompts[0], "newton's laws of motion") {
			t.Errorf("generator prompt missing document text")
		}
	})

	t.Run("regeneration replaces questions and bumps version", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.createAssignment(t, "some material")

		if _, err := env.svc.Generate(ctx, a.ID); err != nil {
			t.Fatalf("Generate(): %v", err)
		}

		env.gen.Output = `[{"question": "Only one now?", "options": ["Yes", "No"], "answer": "Yes"}]`
		cq, err := env.svc.Generate(ctx, a.ID)
		if err != nil {
			t.Fatalf("Generate() again: %v", err)
		}
		if cq.Version != 2 {
			t.Errorf("Version = %d, want 2", cq.Version)
		}
		if len(cq.Questions) != 1 || cq.Questions[0].Text != "Only one now?" {
			t.Errorf("old questions not replaced: %+v", cq.Questions)
		}
	})

	t.Run("strips markdown fences", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.createAssignment(t, "some material")
		env.gen.Output = "```json\n" + sampleOutput + "\n```"

		cq, err := env.svc.Generate(ctx, a.ID)
		if err != nil {
			t.Fatalf("Generate(): %v", err)
		}
		if len(cq.Questions) != 2 {
			t.Errorf("len(Questions) = %d, want 2", len(cq.Questions))
		}
	})

	t.Run("rejects malformed output without storing", func(t *testing.T) {
		tests := []struct {
			name   string
			output string
		}{
			{"not json", "I could not generate a quiz, sorry!"},
			{"object not array", `{"question": "?"}`},
			{"empty array", `[]`},
			{"missing answer", `[{"question": "?", "options": ["a", "b"]}]`},
			{"single option", `[{"question": "?", "options": ["a"], "answer": "a"}]`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t)
				a := env.createAssignment(t, "some material")
				env.gen.Output = tt.output

				if _, err := env.svc.Generate(ctx, a.ID); !errors.Is(err, quiz.ErrMalformedOutput) {
					t.Fatalf("Generate() error = %v, want ErrMalformedOutput", err)
				}
				if _, err := env.svc.GetByAssignment(ctx, a.ID); !errors.Is(err, quiz.ErrQuizNotFound) {
					t.Errorf("rejected output was stored anyway")
				}
			})
		}
	})

	t.Run("empty document", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.createAssignment(t, "   \n\t ")

		if _, err := env.svc.Generate(ctx, a.ID); !errors.Is(err, quiz.ErrEmptyContent) {
			t.Errorf("Generate() error = %v, want ErrEmptyContent", err)
		}
		if env.gen.Calls != 0 {
			t.Errorf("generator called for empty document")
		}
	})

	t.Run("extraction failure", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.createAssignment(t, "some material")
		env.ext.Err = errors.New("boom")

		if _, err := env.svc.Generate(ctx, a.ID); !errors.Is(err, quiz.ErrExtractionFailed) {
			t.Errorf("Generate() error = %v, want ErrExtractionFailed", err)
		}
	})

	t.Run("unknown assignment", func(t *testing.T) {
		env := newTestEnv(t)
		if _, err := env.svc.Generate(ctx, "nope"); !errors.Is(err, assignment.ErrNotFound) {
			t.Errorf("Generate() error = %v, want assignment.ErrNotFound", err)
		}
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, user.User, quiz.ClientQuiz) {
		env := newTestEnv(t)
		usr := env.createUser(t)
		a := env.createAssignment(t, "some material")
		cq, err := env.svc.Generate(ctx, a.ID)
		if err != nil {
			t.Fatalf("Generate(): %v", err)
		}
		return env, usr, cq
	}

	perfect := map[int]string{0: "Inertia", 1: "Newton"}

	t.Run("perfect score awards coins once per attempt", func(t *testing.T) {
		env, usr, cq := setup(t)

		res, err := env.svc.Submit(ctx, usr, quiz.SubmitAttempt{
			AssignmentID: cq.AssignmentID,
			Version:      cq.Version,
			Answers:      perfect,
		})
		if err != nil {
			t.Fatalf("Submit(): %v", err)
		}
		if res.Score != 2 || res.Total != 2 {
			t.Errorf("Score = %d/%d, want 2/2", res.Score, res.Total)
		}
		if res.CoinsAwarded != 5 {
			t.Errorf("CoinsAwarded = %d, want 5", res.CoinsAwarded)
		}
		if res.TotalCoins != 5 {
			t.Errorf("TotalCoins = %d, want 5", res.TotalCoins)
		}
		if len(res.WrongQuestions) != 0 || len(res.Suggestions) != 0 {
			t.Errorf("perfect score produced suggestions: %+v", res.Suggestions)
		}

		got, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		if err != nil {
			t.Fatalf("GetUser(): %v", err)
		}
		if got.Coins != 5 {
			t.Errorf("stored Coins = %d, want 5", got.Coins)
		}
	})

	t.Run("near perfect awards nothing", func(t *testing.T) {
		env, usr, cq := setup(t)

		res, err := env.svc.Submit(ctx, usr, quiz.SubmitAttempt{
			AssignmentID: cq.AssignmentID,
			Version:      cq.Version,
			Answers:      map[int]string{0: "Inertia", 1: "Joule"},
		})
		if err != nil {
			t.Fatalf("Submit(): %v", err)
		}
		if res.Score != 1 {
			t.Errorf("Score = %d, want 1", res.Score)
		}
		if res.CoinsAwarded != 0 || res.TotalCoins != 0 {
			t.Errorf("CoinsAwarded = %d, TotalCoins = %d, want 0, 0", res.CoinsAwarded, res.TotalCoins)
		}
		if len(res.WrongQuestions) != 1 || res.WrongQuestions[0] != 1 {
			t.Errorf("WrongQuestions = %v, want [1]", res.WrongQuestions)
		}

		got, _ := env.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		if got.Coins != 0 {
			t.Errorf("stored Coins = %d, want 0", got.Coins)
		}
	})

	t.Run("answer key and suggestions on miss", func(t *testing.T) {
		env, usr, cq := setup(t)

		// no answers at all: everything is wrong
		res, err := env.svc.Submit(ctx, usr, quiz.SubmitAttempt{
			AssignmentID: cq.AssignmentID,
			Version:      cq.Version,
		})
		if err != nil {
			t.Fatalf("Submit(): %v", err)
		}
		if res.Score != 0 {
			t.Errorf("Score = %d, want 0", res.Score)
		}
		wantKey := []string{"Inertia", "Newton"}
		for i, want := range wantKey {
			if res.CorrectAnswers[i] != want {
				t.Errorf("CorrectAnswers[%d] = %q, want %q", i, res.CorrectAnswers[i], want)
			}
		}

		// first question had generator-provided remediation fields
		s0 := res.Suggestions[0]
		if s0.Page != 2 || s0.Topic != "Newton's first law" || s0.HighlightText != "a body at rest stays at rest" {
			t.Errorf("Suggestions[0] = %+v", s0)
		}
		if !strings.HasSuffix(s0.PDFURL, "/file") {
			t.Errorf("Suggestions[0].PDFURL = %q", s0.PDFURL)
		}

		// second question had none: defaults apply
		s1 := res.Suggestions[1]
		if s1.Page != quiz.DefaultSuggestionPage || s1.Topic != quiz.DefaultSuggestionTopic {
			t.Errorf("Suggestions[1] = %+v", s1)
		}
	})

	t.Run("daily quota", func(t *testing.T) {
		env, usr, cq := setup(t)

		sub := quiz.SubmitAttempt{AssignmentID: cq.AssignmentID, Version: cq.Version, Answers: perfect}
		for i := 0; i < 5; i++ {
			if _, err := env.svc.Submit(ctx, usr, sub); err != nil {
				t.Fatalf("Submit() #%d: %v", i+1, err)
			}
		}

		// 6th attempt is rejected and leaves no trace
		if _, err := env.svc.Submit(ctx, usr, sub); !errors.Is(err, quiz.ErrQuotaExceeded) {
			t.Fatalf("Submit() #6 error = %v, want ErrQuotaExceeded", err)
		}
		attempts, err := env.svc.Attempts(ctx, usr, cq.AssignmentID)
		if err != nil {
			t.Fatalf("Attempts(): %v", err)
		}
		if len(attempts) != 5 {
			t.Errorf("len(attempts) = %d, want 5", len(attempts))
		}

		// another user is unaffected
		other := user.User{Name: "Other", Username: "other", Email: "other@test.test"}
		other, _ = env.usrRepo.CreateUser(ctx, other)
		if _, err := env.svc.Submit(ctx, other, sub); err != nil {
			t.Errorf("Submit() by other user: %v", err)
		}
	})

	t.Run("quota resets at midnight", func(t *testing.T) {
		env, usr, cq := setup(t)

		// yesterday's attempts belong to a past window and must not count
		yesterday := time.Now().Add(-24 * time.Hour)
		for i := 0; i < 5; i++ {
			if _, err := env.qRepo.CreateAttempt(ctx, quiz.Attempt{
				UserID:       usr.ID,
				AssignmentID: cq.AssignmentID,
				QuizVersion:  cq.Version,
				CreatedAt:    yesterday,
			}); err != nil {
				t.Fatalf("CreateAttempt(): %v", err)
			}
		}

		sub := quiz.SubmitAttempt{AssignmentID: cq.AssignmentID, Version: cq.Version, Answers: perfect}
		for i := 0; i < 5; i++ {
			if _, err := env.svc.Submit(ctx, usr, sub); err != nil {
				t.Fatalf("Submit() #%d: %v", i+1, err)
			}
		}
		if _, err := env.svc.Submit(ctx, usr, sub); !errors.Is(err, quiz.ErrQuotaExceeded) {
			t.Fatalf("Submit() #6 error = %v, want ErrQuotaExceeded", err)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		env, usr, cq := setup(t)

		// regenerate: version moves on
		if _, err := env.svc.Generate(ctx, cq.AssignmentID); err != nil {
			t.Fatalf("Generate(): %v", err)
		}

		_, err := env.svc.Submit(ctx, usr, quiz.SubmitAttempt{
			AssignmentID: cq.AssignmentID,
			Version:      cq.Version, // version 1 of 2
			Answers:      perfect,
		})
		if !errors.Is(err, quiz.ErrQuizStale) {
			t.Fatalf("Submit() error = %v, want ErrQuizStale", err)
		}
		attempts, _ := env.svc.Attempts(ctx, usr, cq.AssignmentID)
		if len(attempts) != 0 {
			t.Errorf("stale submission consumed an attempt")
		}
	})

	t.Run("no quiz", func(t *testing.T) {
		env := newTestEnv(t)
		usr := env.createUser(t)

		_, err := env.svc.Submit(ctx, usr, quiz.SubmitAttempt{AssignmentID: "nope", Version: 1})
		if !errors.Is(err, quiz.ErrQuizNotFound) {
			t.Errorf("Submit() error = %v, want ErrQuizNotFound", err)
		}
	})
}

type failingQuizRepo struct {
	quiz.Repository
	err error
}

func (r failingQuizRepo) GetQuizByAssignment(context.Context, string, ...core.DBExecutor) (quiz.Quiz, error) {
	return quiz.Quiz{}, r.err
}

type failingAssignmentRepo struct {
	assignment.Repository
	err error
}

func (r failingAssignmentRepo) GetAssignment(context.Context, string, ...core.DBExecutor) (assignment.Assignment, error) {
	return assignment.Assignment{}, r.err
}

// Repository failures must reach the caller unchanged; only the
// repositories themselves decide what counts as not-found.
func TestRepositoryFailuresSurface(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection refused")

	t.Run("quiz lookup", func(t *testing.T) {
		env := newTestEnv(t)
		usr := env.createUser(t)
		svc := quiz.NewService(
			env.db, failingQuizRepo{err: dbErr}, env.aRepo, env.files, env.usrRepo,
			env.ext, env.gen, env.conf, testLogger{t},
		)

		if _, err := svc.GetByAssignment(ctx, "any"); !errors.Is(err, dbErr) || errors.Is(err, quiz.ErrQuizNotFound) {
			t.Errorf("GetByAssignment() error = %v, want the repository error", err)
		}
		if _, err := svc.Submit(ctx, usr, quiz.SubmitAttempt{AssignmentID: "any", Version: 1}); !errors.Is(err, dbErr) || errors.Is(err, quiz.ErrQuizNotFound) {
			t.Errorf("Submit() error = %v, want the repository error", err)
		}
	})

	t.Run("assignment lookup", func(t *testing.T) {
		env := newTestEnv(t)
		svc := quiz.NewService(
			env.db, env.qRepo, failingAssignmentRepo{err: dbErr}, env.files, env.usrRepo,
			env.ext, env.gen, env.conf, testLogger{t},
		)

		if _, err := svc.Generate(ctx, "any"); !errors.Is(err, dbErr) || errors.Is(err, assignment.ErrNotFound) {
			t.Errorf("Generate() error = %v, want the repository error", err)
		}
	})
}

func TestDeleteForAssignment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	usr := env.createUser(t)
	a := env.createAssignment(t, "some material")

	cq, err := env.svc.Generate(ctx, a.ID)
	if err != nil {
		t.Fatalf("Generate(): %v", err)
	}
	if _, err = env.svc.Submit(ctx, usr, quiz.SubmitAttempt{
		AssignmentID: a.ID,
		Version:      cq.Version,
		Answers:      map[int]string{0: "Inertia"},
	}); err != nil {
		t.Fatalf("Submit(): %v", err)
	}

	if err = env.svc.DeleteForAssignment(ctx, a.ID); err != nil {
		t.Fatalf("DeleteForAssignment(): %v", err)
	}

	if _, err = env.svc.GetByAssignment(ctx, a.ID); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("quiz survived deletion")
	}
	attempts, _ := env.svc.Attempts(ctx, usr, a.ID)
	if len(attempts) != 0 {
		t.Errorf("attempts survived deletion")
	}
}
