package ai

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encMu    sync.Mutex
	encoders = map[string]*tiktoken.Tiktoken{}
)

// CountTokens sizes text against a model budget. Models tiktoken
// recognizes get exact BPE counts, everything else falls back to the
// heuristic.
func CountTokens(model, text string) int {
	if enc := encoderFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

func encoderFor(model string) *tiktoken.Tiktoken {
	if model == "" {
		return nil
	}
	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encoders[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc = nil
	}
	encoders[model] = enc
	return enc
}

// EstimateTokens counts words for ASCII text and individual runes for
// everything above ASCII, which roughly matches how CJK text
// tokenizes.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
