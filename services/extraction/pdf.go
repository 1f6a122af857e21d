package extractionsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core/quiz"
)

// pdfExtractor pulls plain text out of PDF documents. Each page is
// prefixed with a page marker so generated questions can reference the
// page a fact came from.
type pdfExtractor struct{}

var _ quiz.TextExtractor = (*pdfExtractor)(nil)

func NewPDFExtractor() *pdfExtractor {
	return &pdfExtractor{}
}

func (e *pdfExtractor) Extract(ctx context.Context, r io.Reader, size int64) (string, error) {
	ra, size, err := readerAt(r, size)
	if err != nil {
		return "", errors.Wrap(err, "buffering document")
	}

	doc, err := pdf.NewReader(ra, size)
	if err != nil {
		return "", errors.Wrap(err, "reading pdf")
	}

	var b strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err = ctx.Err(); err != nil {
			return "", err
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// skip unreadable pages rather than failing the whole document
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "[Page %d]\n%s\n\n", i, text)
	}
	return b.String(), nil
}

func readerAt(r io.Reader, size int64) (io.ReaderAt, int64, error) {
	if ra, ok := r.(io.ReaderAt); ok && size > 0 {
		return ra, size, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(b), int64(len(b)), nil
}
