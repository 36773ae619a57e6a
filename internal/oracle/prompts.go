package oracle

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFS embed.FS

// Prompt template names, one per prompts/<name>.yaml file.
const (
	promptQuestions = "questions"
	promptNextTurn  = "next_turn"
	promptSummary   = "summary"
)

type promptFile struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptTemplate struct {
	system *template.Template
	user   *template.Template
}

// promptSet holds the parsed templates keyed by file name.
type promptSet struct {
	templates map[string]promptTemplate
}

var promptFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"bullets": func(items []string) string {
		lines := make([]string, len(items))
		for i, it := range items {
			lines[i] = "- " + it
		}
		return strings.Join(lines, "\n")
	},
}

func loadPrompts() (*promptSet, error) {
	entries, err := promptFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("read prompts directory: %w", err)
	}

	ps := &promptSet{templates: make(map[string]promptTemplate)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := promptFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", entry.Name(), err)
		}

		var pf promptFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		sys, err := template.New(name + ".system").Funcs(promptFuncs).Option("missingkey=error").Parse(pf.System)
		if err != nil {
			return nil, fmt.Errorf("parse %s system template: %w", name, err)
		}
		usr, err := template.New(name + ".user").Funcs(promptFuncs).Option("missingkey=error").Parse(pf.User)
		if err != nil {
			return nil, fmt.Errorf("parse %s user template: %w", name, err)
		}
		ps.templates[name] = promptTemplate{system: sys, user: usr}
	}
	return ps, nil
}

// render executes the named prompt's system and user templates with data.
func (ps *promptSet) render(name string, data any) (system, user string, err error) {
	t, ok := ps.templates[name]
	if !ok {
		return "", "", fmt.Errorf("prompt template %q not found", name)
	}

	var sb, ub strings.Builder
	if err := t.system.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", name, err)
	}
	if err := t.user.Execute(&ub, data); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}
