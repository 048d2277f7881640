package catalog

import (
	"strconv"
)

// BuildArgs translates p into the llama.cpp argument vector. Flag order is fixed
// so the same Params always produce the same command line. Unset fields emit
// nothing and malformed loosely typed values are skipped.
func BuildArgs(p Params) []string {
	var args []string
	str := func(flag, v string) {
		if v != "" {
			args = append(args, flag, v)
		}
	}
	flag := func(name string, on bool) {
		if on {
			args = append(args, name)
		}
	}
	intp := func(name string, v *int) {
		if v != nil {
			args = append(args, name, strconv.Itoa(*v))
		}
	}
	floatp := func(name string, v *float64) {
		if v != nil {
			args = append(args, name, formatNumber(*v))
		}
	}

	str("--model", p.Model)
	flag("--interactive", p.Interactive)
	flag("--instruct", p.Instruct)
	if p.CtxSize != nil && *p.CtxSize != 0 {
		args = append(args, "--ctx-size", strconv.Itoa(*p.CtxSize))
	}
	floatp("--temp", p.Temperature)
	floatp("--repeat-penalty", p.RepeatPenalty)
	flag("--interactive-first", p.InteractiveFirst)
	str("--file", p.PromptFile)
	intp("--threads", p.Threads)
	intp("--threads-batch", p.ThreadsBatch)
	str("--prompt-cache", p.PromptCache)
	switch v := p.KeepPrompt.(type) {
	case bool:
		if v {
			args = append(args, "--keep", "-1")
		}
	default:
		if n, ok := toNumber(v); ok {
			args = append(args, "--keep", formatNumber(n))
		}
	}
	intp("--n-gpu-layers", p.GPULayers)
	str("--grammar", p.Grammar)
	str("--grammar-file", p.GrammarFile)
	intp("-n", p.NPredict)
	str("-r", p.ReversePrompt)
	str("--in-prefix", p.InPrefix)
	str("--in-suffix", p.InSuffix)
	intp("--top-k", p.TopK)
	floatp("--top-p", p.TopP)
	flag("--ignore-eos", p.IgnoreEOS)
	flag("--random-prompt", p.RandomPrompt)
	for _, b := range logitBiases(p.LogitBias) {
		args = append(args, "-l", b)
	}
	if p.Seed != nil {
		args = append(args, "--seed", strconv.FormatInt(*p.Seed, 10))
	}
	flag("--mlock", p.Mlock)
	flag("--no-mmap", p.NoMmap)
	flag("--numa", p.NUMA)
	intp("--batch-size", p.BatchSize)
	return args
}

// logitBiases renders each {tokenID, bias} entry as "<id>+<bias>" or "<id>-<bias>".
// Anything other than a list yields nothing.
func logitBiases(v any) []string {
	var entries []any
	switch l := v.(type) {
	case []any:
		entries = l
	case []map[string]any:
		for _, e := range l {
			entries = append(entries, e)
		}
	case []LogitBias:
		for _, e := range l {
			entries = append(entries, map[string]any{"tokenID": e.TokenID, "bias": e.Bias})
		}
	default:
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id := formatAny(m["tokenID"])
		bias, ok := toNumber(m["bias"])
		if !ok {
			continue
		}
		sign := ""
		if bias >= 0 {
			sign = "+"
		}
		out = append(out, id+sign+formatNumber(bias))
	}
	return out
}

// LogitBias is the typed form of one logitBias entry, accepted when Params are
// built in code rather than decoded from a catalog file.
type LogitBias struct {
	TokenID int     `json:"tokenID" yaml:"tokenID" toml:"tokenID"`
	Bias    float64 `json:"bias" yaml:"bias" toml:"bias"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatAny(v any) string {
	if n, ok := toNumber(v); ok {
		return formatNumber(n)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toNumber accepts the numeric shapes produced by the json, yaml and toml decoders.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
