package quiz

import (
	"context"
	"io"
)

// ExtractorMock returns canned text (or a canned error) instead of parsing
// a real document.
type ExtractorMock struct {
	Text string
	Err  error
}

var _ TextExtractor = (*ExtractorMock)(nil)

func (m *ExtractorMock) Extract(_ context.Context, r io.Reader, _ int64) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Text != "" {
		return m.Text, nil
	}
	b, err := io.ReadAll(r)
	return string(b), err
}

// GeneratorMock plays back a canned completion and records the prompts
// it was called with.
type GeneratorMock struct {
	Output string
	Err    error

	Calls   int
	Prompts []string
}

var _ TextGenerator = (*GeneratorMock)(nil)

func (m *GeneratorMock) Generate(_ context.Context, _, prompt string) (string, error) {
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Output, nil
}
