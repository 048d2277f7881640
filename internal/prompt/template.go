// Package prompt renders chat message lists into the single-line prompt format
// written to an interactive llama.cpp process.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Roles understood by the templates. Any other role string is rendered as-is.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Template renders a conversation in a model-specific chat format.
type Template interface {
	Start() string
	Message(role, content string) string
	End() string
}

type mistral struct{}

func (mistral) Start() string { return "<s>" }
func (mistral) End() string   { return "</s>" }
func (mistral) Message(role, content string) string {
	if role == RoleUser {
		return "[INST] " + content + " [/INST]"
	}
	return content
}

type zephyr struct{}

func (zephyr) Start() string { return "<s>" }
func (zephyr) End() string   { return "</s>" }
func (zephyr) Message(role, content string) string {
	return "\n<|" + role + "|>\n" + content
}

var templates = map[string]Template{
	"mistral": mistral{},
	"zephyr":  zephyr{},
}

// UnknownTemplateError is returned for a template id with no registered strategy.
type UnknownTemplateError struct{ ID string }

func (e UnknownTemplateError) Error() string { return fmt.Sprintf("unknown prompt template %q", e.ID) }

// Lookup returns the template registered under id.
func Lookup(id string) (Template, error) {
	t, ok := templates[id]
	if !ok {
		return nil, UnknownTemplateError{ID: id}
	}
	return t, nil
}

// Names lists registered template ids in sorted order.
func Names() []string {
	out := make([]string, 0, len(templates))
	for k := range templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render concatenates start sentinel, every message in order, and end sentinel, then
// replaces each newline with delim so the prompt fits on one physical line.
func Render(t Template, msgs []Message, delim string) string {
	var b strings.Builder
	b.WriteString(t.Start())
	for _, m := range msgs {
		b.WriteString(t.Message(m.Role, m.Content))
	}
	b.WriteString(t.End())
	return strings.ReplaceAll(b.String(), "\n", delim)
}

// RenderID looks up id and renders msgs with it.
func RenderID(id string, msgs []Message, delim string) (string, error) {
	t, err := Lookup(id)
	if err != nil {
		return "", err
	}
	return Render(t, msgs, delim), nil
}
