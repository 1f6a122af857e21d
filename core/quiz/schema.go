package quiz

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// questionsSchemaDef is the contract the generation provider's output must
// satisfy. Any element missing question, options or answer rejects the
// whole array; partial quizzes are never accepted.
var questionsSchemaDef = map[string]any{
	"type":     "array",
	"minItems": 1,
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 2,
			},
			"answer": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"reference_page": map[string]any{
				"type":    "integer",
				"minimum": 1,
			},
			"topic":          map[string]any{"type": "string"},
			"highlight_text": map[string]any{"type": "string"},
		},
		"required": []any{"question", "options", "answer"},
	},
}

var questionsSchema = mustCompileSchema("questions", questionsSchemaDef)

func mustCompileSchema(name string, def map[string]any) *jsonschema.Schema {
	// round-trip through JSON: the compiler expects a parsed value
	defBytes, err := json.Marshal(def)
	if err != nil {
		log.Fatalf("quiz: marshal %s schema: %v", name, err)
	}
	var parsed any
	if err = json.Unmarshal(defBytes, &parsed); err != nil {
		log.Fatalf("quiz: parse %s schema: %v", name, err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err = c.AddResource(url, parsed); err != nil {
		log.Fatalf("quiz: add %s schema resource: %v", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		log.Fatalf("quiz: compile %s schema: %v", name, err)
	}
	return compiled
}

// validateQuestionsJSON checks raw generated JSON against the questions schema.
func validateQuestionsJSON(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return err
	}
	return questionsSchema.Validate(parsed)
}
