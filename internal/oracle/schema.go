package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/abhisek/parley/internal/llm"
)

type generatedQuestion struct {
	Text               string `json:"text" jsonschema:"required,minLength=1"`
	IsAIMultipleChoice *bool  `json:"isAIMultipleChoice,omitempty"`
}

type generatedCategory struct {
	Name      string              `json:"name" jsonschema:"required"`
	Questions []generatedQuestion `json:"questions" jsonschema:"required,minItems=1"`
}

type questionsOutput struct {
	Categories []generatedCategory `json:"categories" jsonschema:"required,minItems=1"`
}

type suggestionOutput struct {
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description" jsonschema:"required"`
}

type nextTurnOutput struct {
	Thinking        string             `json:"thinking,omitempty"`
	Question        string             `json:"question,omitempty"`
	Complete        bool               `json:"complete" jsonschema:"required"`
	ResponseSummary string             `json:"responseSummary,omitempty"`
	Suggestions     []suggestionOutput `json:"suggestions,omitempty"`
}

type quoteOutput struct {
	Text    string `json:"text" jsonschema:"required"`
	Context string `json:"context"`
}

type summaryOutput struct {
	Insights           string        `json:"free_form_insights" jsonschema:"required"`
	KeyThemes          []string      `json:"key_themes" jsonschema:"required"`
	NotableQuotes      []quoteOutput `json:"notable_quotes"`
	Sentiment          string        `json:"participant_sentiment" jsonschema:"required"`
	ActionableInsights []string      `json:"actionable_insights"`
}

var (
	questionsSchema = mustSchema[questionsOutput]("interview-questions",
		"Interview questions grouped into categories")
	nextTurnSchema = mustSchema[nextTurnOutput]("next-turn",
		"The interviewer's next question or a completion signal")
	summarySchema = mustSchema[summaryOutput]("interview-summary",
		"Insights, themes, quotes and sentiment from one interview transcript")
)

// mustSchema reflects T into an llm.Schema. Draft and id keywords are
// dropped so the definition can be sent to providers verbatim.
func mustSchema[T any](name, description string) *llm.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := r.Reflect(&v).MarshalJSON()
	if err != nil {
		panic(fmt.Sprintf("reflect %s schema: %v", name, err))
	}
	var def map[string]any
	if err := json.Unmarshal(b, &def); err != nil {
		panic(fmt.Sprintf("decode %s schema: %v", name, err))
	}
	delete(def, "$schema")
	delete(def, "$id")

	return &llm.Schema{Name: name, Description: description, Definition: def}
}
