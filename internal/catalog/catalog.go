// Package catalog loads model definitions (spawn parameters, prompt template,
// personalities) and translates parameters into llama.cpp arguments.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"llamad/internal/config"
	"llamad/internal/prompt"
)

// Params are the llama.cpp spawn parameters of one model. Nil pointers and empty
// strings mean "unset". KeepPrompt accepts a bool or a number; LogitBias a list of
// {tokenID, bias} objects. Both stay loosely typed so a malformed value is skipped
// by BuildArgs instead of failing the whole catalog.
type Params struct {
	Model            string   `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	Interactive      bool     `json:"interactive,omitempty" yaml:"interactive,omitempty" toml:"interactive,omitempty"`
	Instruct         bool     `json:"instruct,omitempty" yaml:"instruct,omitempty" toml:"instruct,omitempty"`
	CtxSize          *int     `json:"ctxSize,omitempty" yaml:"ctxSize,omitempty" toml:"ctxSize,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	RepeatPenalty    *float64 `json:"repeatPenalty,omitempty" yaml:"repeatPenalty,omitempty" toml:"repeatPenalty,omitempty"`
	InteractiveFirst bool     `json:"interactiveFirst,omitempty" yaml:"interactiveFirst,omitempty" toml:"interactiveFirst,omitempty"`
	PromptFile       string   `json:"promptFile,omitempty" yaml:"promptFile,omitempty" toml:"promptFile,omitempty"`
	Threads          *int     `json:"threads,omitempty" yaml:"threads,omitempty" toml:"threads,omitempty"`
	ThreadsBatch     *int     `json:"threadsBatch,omitempty" yaml:"threadsBatch,omitempty" toml:"threadsBatch,omitempty"`
	PromptCache      string   `json:"promptCache,omitempty" yaml:"promptCache,omitempty" toml:"promptCache,omitempty"`
	KeepPrompt       any      `json:"keepPrompt,omitempty" yaml:"keepPrompt,omitempty" toml:"keepPrompt,omitempty"`
	GPULayers        *int     `json:"gpuLayers,omitempty" yaml:"gpuLayers,omitempty" toml:"gpuLayers,omitempty"`
	Grammar          string   `json:"grammar,omitempty" yaml:"grammar,omitempty" toml:"grammar,omitempty"`
	GrammarFile      string   `json:"grammarFile,omitempty" yaml:"grammarFile,omitempty" toml:"grammarFile,omitempty"`
	NPredict         *int     `json:"nPredict,omitempty" yaml:"nPredict,omitempty" toml:"nPredict,omitempty"`
	ReversePrompt    string   `json:"reversePrompt,omitempty" yaml:"reversePrompt,omitempty" toml:"reversePrompt,omitempty"`
	InPrefix         string   `json:"inPrefix,omitempty" yaml:"inPrefix,omitempty" toml:"inPrefix,omitempty"`
	InSuffix         string   `json:"inSuffix,omitempty" yaml:"inSuffix,omitempty" toml:"inSuffix,omitempty"`
	TopK             *int     `json:"topK,omitempty" yaml:"topK,omitempty" toml:"topK,omitempty"`
	TopP             *float64 `json:"topP,omitempty" yaml:"topP,omitempty" toml:"topP,omitempty"`
	IgnoreEOS        bool     `json:"ignoreEOS,omitempty" yaml:"ignoreEOS,omitempty" toml:"ignoreEOS,omitempty"`
	RandomPrompt     bool     `json:"randomPrompt,omitempty" yaml:"randomPrompt,omitempty" toml:"randomPrompt,omitempty"`
	LogitBias        any      `json:"logitBias,omitempty" yaml:"logitBias,omitempty" toml:"logitBias,omitempty"`
	Seed             *int64   `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
	Mlock            bool     `json:"mlock,omitempty" yaml:"mlock,omitempty" toml:"mlock,omitempty"`
	NoMmap           bool     `json:"noMmap,omitempty" yaml:"noMmap,omitempty" toml:"noMmap,omitempty"`
	NUMA             bool     `json:"numa,omitempty" yaml:"numa,omitempty" toml:"numa,omitempty"`
	BatchSize        *int     `json:"batchSize,omitempty" yaml:"batchSize,omitempty" toml:"batchSize,omitempty"`
}

// Definition describes one loadable model.
type Definition struct {
	Params        Params            `json:"params" yaml:"params" toml:"params"`
	Template      string            `json:"template" yaml:"template" toml:"template"`
	Personalities map[string]string `json:"personalities,omitempty" yaml:"personalities,omitempty" toml:"personalities,omitempty"`
}

// HasPersonality reports whether name is a defined personality of d.
func (d Definition) HasPersonality(name string) bool {
	_, ok := d.Personalities[name]
	return ok
}

// PersonalityNames returns the personality names of d in sorted order.
func (d Definition) PersonalityNames() []string {
	out := make([]string, 0, len(d.Personalities))
	for k := range d.Personalities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Catalog maps model names to their definitions.
type Catalog map[string]Definition

// ErrEmpty is returned when a catalog file defines no models.
var ErrEmpty = errors.New("catalog defines no models")

// Load reads and validates a catalog file. The decoder is chosen by extension
// (.json, .yaml/.yml, .toml).
func Load(path string) (Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := config.Decode(path, b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every definition references a known prompt template.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return ErrEmpty
	}
	for _, name := range c.Names() {
		if _, err := prompt.Lookup(c[name].Template); err != nil {
			return fmt.Errorf("model %q: %w", name, err)
		}
	}
	return nil
}

// Names returns model names in sorted order.
func (c Catalog) Names() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Personalities returns a fresh name → personality-names mapping.
func (c Catalog) Personalities() map[string][]string {
	out := make(map[string][]string, len(c))
	for name, def := range c {
		out[name] = def.PersonalityNames()
	}
	return out
}
