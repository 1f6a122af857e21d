package assignment

import (
	"time"

	"github.com/elimu-lms/elimu/core"
)

// Assignment is an uploaded source document faculty/admin provide as quiz material.
// It is immutable after creation; the only mutation is deletion.
type Assignment struct {
	ID           string    `json:"id"`
	UploaderID   string    `json:"uploader_id"`
	FileRef      string    `json:"-"` // document store reference; never exposed raw
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// FileURL is the client-facing pointer to the stored document,
// used by remediation suggestions.
func (a Assignment) FileURL() string {
	return "/v1/assignments/" + a.ID + "/file"
}

type QueryFilter struct {
	UploaderID  string    `query:"uploader_id"`
	Search      string    `query:"search"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.UploaderID == "" && qf.Search == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
