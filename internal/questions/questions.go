package questions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultCategory is used for questions authored without a category label.
const DefaultCategory = "General"

var (
	// ErrCategoryInterleaved indicates a category label reappears after a
	// different category started, which breaks boundary detection.
	ErrCategoryInterleaved = errors.New("category blocks are not contiguous")

	// ErrDuplicateOrder indicates two questions share the same order value.
	ErrDuplicateOrder = errors.New("duplicate question order")

	// ErrEmptyText indicates a question with blank text.
	ErrEmptyText = errors.New("question text is empty")
)

// Question is a single interview question.
type Question struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Category string `json:"category" yaml:"category"`
	Order    int    `json:"order" yaml:"order"`

	// AIMultipleChoice controls whether suggested responses are generated
	// for the turn that asks this question. Nil means enabled.
	AIMultipleChoice *bool `json:"isAIMultipleChoice,omitempty" yaml:"ai_multiple_choice,omitempty"`
}

// SuggestionsEnabled reports whether suggestion generation is requested
// for this question.
func (q Question) SuggestionsEnabled() bool {
	return q.AIMultipleChoice == nil || *q.AIMultipleChoice
}

// CategoryName returns the question's category, defaulting blank labels.
func (q Question) CategoryName() string {
	if strings.TrimSpace(q.Category) == "" {
		return DefaultCategory
	}
	return q.Category
}

// Category is a contiguous block of questions sharing a label.
type Category struct {
	Name      string
	Questions []Question

	// Start is the global index of the first question in the block.
	Start int
}

// End returns the global index one past the last question in the block.
func (c Category) End() int {
	return c.Start + len(c.Questions)
}

// Sorted returns a copy of qs ordered by Order. The sort is stable so
// questions sharing an order keep their authored position.
func Sorted(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Group partitions qs by category. Category order follows the first
// occurrence of each label when scanning qs in order. Global indices refer to
// positions in qs as given, so callers should pass an already-sorted set.
func Group(qs []Question) []Category {
	var cats []Category
	index := make(map[string]int)

	for i, q := range qs {
		name := q.CategoryName()
		ci, ok := index[name]
		if !ok {
			ci = len(cats)
			index[name] = ci
			cats = append(cats, Category{Name: name, Start: i})
		}
		cats[ci].Questions = append(cats[ci].Questions, q)
	}

	// Recompute starts from cumulative sizes; with interleaved input the
	// first-occurrence index would not match the flattened layout.
	start := 0
	for i := range cats {
		cats[i].Start = start
		start += len(cats[i].Questions)
	}
	return cats
}

// Flatten returns the questions of cats in category order.
func Flatten(cats []Category) []Question {
	var out []Question
	for _, c := range cats {
		out = append(out, c.Questions...)
	}
	return out
}

// Normalize sorts qs by order, regroups interleaved categories into
// contiguous blocks, and renumbers Order from 0.
func Normalize(qs []Question) []Question {
	flat := Flatten(Group(Sorted(qs)))
	for i := range flat {
		flat[i].Order = i
		flat[i].Category = flat[i].CategoryName()
	}
	return flat
}

// Validate checks the invariants the session controller relies on: non-empty
// text, unique orders, and contiguous categories when sorted by order.
func Validate(qs []Question) error {
	seen := make(map[int]string, len(qs))
	for _, q := range qs {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %q: %w", q.ID, ErrEmptyText)
		}
		if other, dup := seen[q.Order]; dup {
			return fmt.Errorf("questions %q and %q share order %d: %w", other, q.ID, q.Order, ErrDuplicateOrder)
		}
		seen[q.Order] = q.ID
	}
	return CheckContiguous(Sorted(qs))
}

// CheckContiguous reports ErrCategoryInterleaved if any category label
// appears in more than one run of qs.
func CheckContiguous(qs []Question) error {
	closed := make(map[string]bool)
	current := ""
	for i, q := range qs {
		name := q.CategoryName()
		if i > 0 && name == current {
			continue
		}
		if closed[name] {
			return fmt.Errorf("category %q resumes at index %d: %w", name, i, ErrCategoryInterleaved)
		}
		if i > 0 {
			closed[current] = true
		}
		current = name
	}
	return nil
}

// CategoryIndexFor returns the index of the category containing the question
// at global index idx. Indices past the end map to the last category.
func CategoryIndexFor(cats []Category, idx int) int {
	for i, c := range cats {
		if idx < c.End() {
			return i
		}
	}
	if len(cats) == 0 {
		return 0
	}
	return len(cats) - 1
}

// Move relocates the question at index from to index to and renumbers
// orders. Used by the question editor.
func Move(qs []Question, from, to int) ([]Question, error) {
	if from < 0 || from >= len(qs) || to < 0 || to >= len(qs) {
		return nil, fmt.Errorf("move %d -> %d out of range (len %d)", from, to, len(qs))
	}
	out := Sorted(qs)
	q := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Question{q}, out[to:]...)...)
	for i := range out {
		out[i].Order = i
	}
	return out, nil
}

// Names returns the category names of cats in order.
func Names(cats []Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names
}
