package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/elimu-lms/elimu/core/assignment"
	"github.com/elimu-lms/elimu/core/user"
	testutil "github.com/elimu-lms/elimu/tests"
)

func newUploadRequest(t *testing.T, path, token, field, filename, content string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		fw, err := w.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		if _, err = io.WriteString(fw, content); err != nil {
			t.Fatalf("writing form file failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func Test_assignmentApi_upload(t *testing.T) {
	app := setup(t)

	faculty := testutil.CreateUser(t, usrRepo, "Faculty", "faculty", "faculty@test.cd", "", []string{user.RoleFaculty}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)

	tests := []struct {
		name     string
		token    string
		field    string
		uploader user.User
		wantCode int
		wantData []byte
	}{
		{name: "Auth required", field: "file", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Students not allowed", token: getToken(t, student), field: "file", wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "file field required", token: getToken(t, faculty), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "a document is required in the `file` field"}),
		},
		{name: "Faculty can upload", token: getToken(t, faculty), field: "file", uploader: faculty, wantCode: http.StatusCreated},
		{name: "Admin can upload", token: getToken(t, admin), field: "file", uploader: admin, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, "/v1/assignments", tt.token, tt.field, "physics.pdf", "Newtonian mechanics.")
			app.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusCreated {
				ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
				if err != nil {
					t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
				}
				if !ok {
					t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
				}
				return
			}

			var a assignment.Assignment
			if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
				t.Fatalf("json.Unmarshal() failed! err %v", err)
			}
			if a.ID == "" {
				t.Error("failed! empty assignment ID")
			}
			if a.OriginalName != "physics.pdf" {
				t.Errorf("failed! OriginalName = %v; want physics.pdf", a.OriginalName)
			}
			if a.UploaderID != tt.uploader.ID {
				t.Errorf("failed! UploaderID = %v; want %v", a.UploaderID, tt.uploader.ID)
			}

			// the document must be retrievable right away
			stored, err := assignRepo.GetAssignment(context.Background(), a.ID)
			if err != nil {
				t.Fatalf("GetAssignment() failed: %v", err)
			}
			rc, _, err := fileStore.Open(context.Background(), stored.FileRef)
			if err != nil {
				t.Fatalf("fileStore.Open() failed: %v", err)
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("reading stored file failed: %v", err)
			}
			if string(b) != "Newtonian mechanics." {
				t.Errorf("failed! stored content = %q", string(b))
			}
		})
	}
}

func Test_assignmentApi_query(t *testing.T) {
	app := setup(t)

	faculty := testutil.CreateUser(t, usrRepo, "Faculty", "faculty", "faculty@test.cd", "", []string{user.RoleFaculty}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other1", "other@test.cd", "", []string{user.RoleFaculty}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)

	physics := testutil.CreateAssignment(t, assignRepo, fileStore, faculty.ID, "physics.pdf", "Newtonian mechanics.")
	biology := testutil.CreateAssignment(t, assignRepo, fileStore, faculty.ID, "biology.pdf", "Cell structure.")
	history := testutil.CreateAssignment(t, assignRepo, fileStore, other.ID, "history.pdf", "The industrial revolution.")

	path := func(uploaderID, search string) string {
		v := make(url.Values)
		if uploaderID != "" {
			v.Add("uploader_id", uploaderID)
		}
		if search != "" {
			v.Add("search", search)
		}
		if len(v) == 0 {
			return "/v1/assignments"
		}
		return "/v1/assignments?" + v.Encode()
	}

	studentToken := getToken(t, student)
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: path("", ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: path("", ""), token: studentToken, wantData: marchallList(t, history, biology, physics)},
		{name: "search (unknown)", path: path("", "lol"), token: studentToken, wantData: empty},
		{name: "search=PHY", path: path("", "PHY"), token: studentToken, wantData: marchallList(t, physics)},
		{name: "uploader_id", path: path(other.ID, ""), token: studentToken, wantData: marchallList(t, history)},
		{name: "uploader_id & search (empty)", path: path(other.ID, "phy"), token: studentToken, wantData: empty},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assignmentApi_retrieve(t *testing.T) {
	app := setup(t)

	faculty := testutil.CreateUser(t, usrRepo, "Faculty", "faculty", "faculty@test.cd", "", []string{user.RoleFaculty}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	a := testutil.CreateAssignment(t, assignRepo, fileStore, faculty.ID, "physics.pdf", "Newtonian mechanics.")

	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/assignments/" + a.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Not found", path: "/v1/assignments/lol", token: studentToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{name: "Found", path: "/v1/assignments/" + a.ID, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, a)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assignmentApi_file(t *testing.T) {
	app := setup(t)

	faculty := testutil.CreateUser(t, usrRepo, "Faculty", "faculty", "faculty@test.cd", "", []string{user.RoleFaculty}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	a := testutil.CreateAssignment(t, assignRepo, fileStore, faculty.ID, "physics.pdf", "Newtonian mechanics.")

	req, rec := newAuthRequest(http.MethodGet, a.FileURL(), getToken(t, student))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("failed! Content-Type = %v; want application/pdf", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="physics.pdf"` {
		t.Errorf("failed! Content-Disposition = %v", cd)
	}
	if rec.Body.String() != "Newtonian mechanics." {
		t.Errorf("failed! body = %q", rec.Body.String())
	}
}

func Test_assignmentApi_destroy(t *testing.T) {
	app := setup(t)

	faculty := testutil.CreateUser(t, usrRepo, "Faculty", "faculty", "faculty@test.cd", "", []string{user.RoleFaculty}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other1", "other@test.cd", "", []string{user.RoleFaculty}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.cd", "", []string{user.RoleStudent}, true)
	a := testutil.CreateAssignment(t, assignRepo, fileStore, faculty.ID, "physics.pdf", "Newtonian mechanics.")
	createQuiz(t, a.ID)

	// record an attempt so the cascade has something to clear
	body := marchallObj(t, map[string]interface{}{"assignment_id": a.ID, "version": 1, "answers": map[int]string{0: "Gravity"}})
	req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/submit", getToken(t, student), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	// students cannot delete course material
	req, rec = newAuthRequest(http.MethodDelete, "/v1/assignments/"+a.ID, getToken(t, student))
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
	checkCodeAndData(t, tt, rec)

	// neither can faculty who did not upload it
	req, rec = newAuthRequest(http.MethodDelete, "/v1/assignments/"+a.ID, getToken(t, other))
	app.ServeHTTP(rec, req)
	tt = httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "only the uploader or an admin can delete an assignment"}),
	}
	checkCodeAndData(t, tt, rec)
	if _, err := assignRepo.GetAssignment(context.Background(), a.ID); err != nil {
		t.Fatalf("failed! assignment deleted by non-owner: %v", err)
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/assignments/"+a.ID, getToken(t, faculty))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	// admins can delete anyone's assignment
	b := testutil.CreateAssignment(t, assignRepo, fileStore, faculty.ID, "biology.pdf", "Cell structure.")
	req, rec = newAuthRequest(http.MethodDelete, "/v1/assignments/"+b.ID, getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! admin delete code = %v; body %s", rec.Code, rec.Body.String())
	}

	// the assignment, its document, its quiz and all attempts must be gone
	ctx := context.Background()
	if _, err := assignRepo.GetAssignment(ctx, a.ID); err != assignment.ErrNotFound {
		t.Errorf("GetAssignment() err = %v; want %v", err, assignment.ErrNotFound)
	}
	if _, _, err := fileStore.Open(ctx, a.FileRef); err == nil {
		t.Error("failed! stored document still opens")
	}
	if _, err := quizRepo.GetQuizByAssignment(ctx, a.ID); err == nil {
		t.Error("failed! quiz still exists")
	}
	attempts, err := quizRepo.QueryAttempts(ctx, student.ID, a.ID, nil)
	if err != nil {
		t.Fatalf("QueryAttempts() failed: %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("failed! attempts = %d; want 0", len(attempts))
	}
}
