// Package aijson recovers JSON values from free-form model output.
package aijson

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\\r?\\n?(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
)

// SafeParse tries, in order: the whole text as JSON, the inner text of the
// first fenced code block, and the span from the first '{' to the last '}'
// with trailing commas removed. It returns ok=false when all three fail.
func SafeParse(raw string) (any, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}

	if v, ok := decode(text); ok {
		return v, true
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if v, ok := decode(strings.TrimSpace(m[1])); ok {
			return v, true
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := trailingComma.ReplaceAllString(text[start:end+1], "$1")
		if v, ok := decode(candidate); ok {
			return v, true
		}
	}

	return nil, false
}

// Decode runs SafeParse and converts the result into out.
func Decode(raw string, out any) bool {
	v, ok := SafeParse(raw)
	if !ok {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

func decode(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
