package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Option is one selectable answer of a question. Value is either a string or a number.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Value any    `json:"value" yaml:"value"`
}

// Question is a read-only multiple choice question shown in the room
type Question struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Options map[string]Option `json:"options"`
}

// Catalog maps question IDs to questions. It is never mutated after load.
type Catalog map[string]Question

// file mirrors the on-disk YAML layout, which lists questions and options in display order
type file struct {
	Questions []struct {
		ID      string   `yaml:"id"`
		Title   string   `yaml:"title"`
		Options []Option `yaml:"options"`
	} `yaml:"questions"`
}

// Load reads a YAML catalog file
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document
func Parse(data []byte) (Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := make(Catalog, len(f.Questions))
	for _, q := range f.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question %q: id is required", q.Title)
		}
		if _, dup := c[q.ID]; dup {
			return nil, fmt.Errorf("question %s: duplicate id", q.ID)
		}

		options := make(map[string]Option, len(q.Options))
		for _, o := range q.Options {
			if o.ID == "" {
				return nil, fmt.Errorf("question %s: option id is required", q.ID)
			}
			if _, dup := options[o.ID]; dup {
				return nil, fmt.Errorf("question %s: duplicate option %s", q.ID, o.ID)
			}
			if !validValue(o.Value) {
				return nil, fmt.Errorf("question %s: option %s: value must be a string or number, got %T", q.ID, o.ID, o.Value)
			}
			options[o.ID] = o
		}

		c[q.ID] = Question{ID: q.ID, Title: q.Title, Options: options}
	}

	return c, nil
}

func validValue(v any) bool {
	switch v.(type) {
	case string, int, int64, uint64, float64:
		return true
	default:
		return false
	}
}

func options(values ...string) map[string]Option {
	ids := []string{"A", "B", "C", "D"}
	out := make(map[string]Option, len(values))
	for i, v := range values {
		out[ids[i]] = Option{ID: ids[i], Value: v}
	}
	return out
}

// Default returns the built-in meetup quiz
func Default() Catalog {
	return Catalog{
		"0": {
			ID:      "0",
			Title:   "Which of these color contrast ratios defines the minimum WCAG 2.1 Level AA requirement for normal text?",
			Options: options("4.5: 1", "3: 1", "2.5: 1", "5: 1"),
		},
		"1": {
			ID:    "1",
			Title: "What's the best way to debug JavaScript code?",
			Options: options(
				"Console.log all the things!",
				"Ask a rubber duck for help. It knows everything.",
				"Push it to production and let users find the bugs.",
				"Rewrite the application in a different language.",
			),
		},
		"2": {
			ID:    "2",
			Title: "Will you come to the next in person meetup? 🎉",
			Options: options(
				"Yes!",
				"Oh yes!",
				"Yes and I'm giving a talk!",
				"Yes and I'm bringing a friend!",
			),
		},
	}
}
