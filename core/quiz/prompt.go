package quiz

import (
	"fmt"
	"regexp"
	"strings"
)

const generationSystemPrompt = `You are a quiz generator for a learning platform. You create multiple-choice quizzes from course material supplied by faculty.

Rules:
- Base every question strictly on the supplied material. Do not invent facts.
- Each question has exactly 4 options and exactly one correct answer.
- The "answer" value must be copied verbatim from the "options" array.
- Cover the material broadly; do not cluster questions on a single paragraph.
- When the material has page markers, set "reference_page" to the page the question is drawn from.
- Set "topic" to a short label naming the concept tested, and "highlight_text" to a short phrase from the material that a learner should re-read when they miss the question.
- Respond with ONLY a JSON array. No prose, no markdown fences.`

// buildGenerationPrompt constructs the user prompt: the full extracted text
// plus an explicit description of the expected output schema.
func buildGenerationPrompt(text string, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate a quiz of exactly %d multiple-choice questions from the following material.\n\n", count)

	b.WriteString("Respond with a JSON array where each element is an object with these fields:\n")
	b.WriteString(`- "question" (string, required): the question text` + "\n")
	b.WriteString(`- "options" (array of 4 strings, required): the answer choices` + "\n")
	b.WriteString(`- "answer" (string, required): the correct choice, copied exactly from "options"` + "\n")
	b.WriteString(`- "reference_page" (integer, optional): page in the material the question comes from` + "\n")
	b.WriteString(`- "topic" (string, optional): short label for the concept tested` + "\n")
	b.WriteString(`- "highlight_text" (string, optional): short phrase from the material to re-read on a miss` + "\n")

	b.WriteString("\nMaterial:\n\n")
	b.WriteString(text)

	return b.String()
}

var fenceRegex = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// stripFences removes markdown code fences the provider may wrap its JSON in,
// falling back to the outermost JSON array when prose leaks around it.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if m := fenceRegex.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	if !strings.HasPrefix(s, "[") {
		start := strings.Index(s, "[")
		end := strings.LastIndex(s, "]")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
