// internal/services/llm_json.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// 清理JSON字符串，去除前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'﹕': ':',
	'，': ',',
	'﹐': ',',
	'；': ';',
	'﹔': ';',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
	'（': '(',
	'）': ')',
}

var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'”': '”',
	'„': '”',
	'‟': '”',
	'「': '」',
	'」': '」',
	'『': '』',
	'﹁': '﹂',
	'﹂': '﹂',
}

func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			if !escaped && r == '\\' {
				escaped = true
				builder.WriteRune(r)
				continue
			}

			if escaped {
				escaped = false
				builder.WriteRune(r)
				continue
			}

			if r == currentClosing || r == '"' {
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}

			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
			builder.WriteRune(r)
			continue
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			// 丢弃出现在字符串外的异常Unicode字符（例如 æ、• 等）
			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见的噪声、全角符号以及Markdown标记
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	// 规范化JSON结构所需的标点符号，移除字符串外的异常字符
	s = normalizeJSONStructure(s)

	isArray := len(s) > 0 && s[0] == '['

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				// 找到了匹配的结束符
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 如果没找到匹配的结束符，尝试回退到旧逻辑（找最后一个）
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 && end >= 0 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}

// stripCodeFences 移除LLM响应中的Markdown代码块或反引号
func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return cleaned
	}

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
		if strings.HasPrefix(strings.ToLower(cleaned), "json") {
			cleaned = strings.TrimSpace(cleaned[4:])
		}
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, "`")
	return strings.TrimSpace(cleaned)
}

// decodeJSONResponse 解析模型返回的 JSON；先按原样解析，失败后再清洗
func decodeJSONResponse(raw string, out interface{}) error {
	text := stripCodeFences(raw)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	cleaned := cleanJSONString(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		preview := cleaned
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return fmt.Errorf("malformed JSON response: %w (got: %s)", err, preview)
	}
	return nil
}
