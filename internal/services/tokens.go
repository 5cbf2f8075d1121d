// internal/services/tokens.go
package services

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Corphon/ScriptStudio/internal/utils"
)

var (
	tokenEncoding     *tiktoken.Tiktoken
	tokenEncodingOnce sync.Once
)

func getTokenEncoding() *tiktoken.Tiktoken {
	tokenEncodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			utils.GetLogger().Warn("token encoding unavailable, estimating by characters", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		tokenEncoding = enc
	})
	return tokenEncoding
}

// EstimateTokens approximates the prompt size of text
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := getTokenEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimateByRunes(text)
}

// estimateByRunes assumes roughly four characters per token
func estimateByRunes(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
