// Package merge combines newly generated study content with content that was
// stored by an earlier generation of the same type.
package merge

import (
	"fmt"
	"regexp"
	"strings"

	"study-notes-platform/models"
)

const (
	textSeparator = "\n\n---\n\n"
	htmlSeparator = "\n<hr/>\n"
)

var htmlTag = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*[\s>/]`)

// itemKeys is the identity field of each keyed array type.
var itemKeys = map[models.ContentType]string{
	models.ContentInsights:   "title",
	models.ContentFlashcards: "question",
	models.ContentQuiz:       "question",
}

// wrapperKeys are the object fields a model may wrap a list in.
var wrapperKeys = map[models.ContentType][]string{
	models.ContentNotes:      {"sections", "notes"},
	models.ContentInsights:   {"insights", "items"},
	models.ContentFlashcards: {"flashcards", "cards", "items"},
	models.ContentQuiz:       {"quiz", "questions", "items"},
}

// Content merges newData into oldData for the given content type. Inputs are
// decoded JSON values and are never mutated. Unknown types return newData.
func Content(oldData, newData any, contentType models.ContentType) any {
	if isEmpty(oldData) {
		return newData
	}
	if isEmpty(newData) {
		return oldData
	}

	switch contentType {
	case models.ContentSummary:
		return mergeSummary(oldData, newData)
	case models.ContentNotes:
		return mergeNotes(oldData, newData)
	case models.ContentInsights, models.ContentFlashcards, models.ContentQuiz:
		return mergeKeyed(oldData, newData, contentType)
	default:
		return newData
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

var summaryFields = []string{"summary", "content", "text", "html"}

func mergeSummary(oldData, newData any) any {
	oldText, oldField, okOld := summaryText(oldData)
	newText, _, okNew := summaryText(newData)
	if !okOld || !okNew {
		return newData
	}

	sep := textSeparator
	if htmlTag.MatchString(oldText) || htmlTag.MatchString(newText) {
		sep = htmlSeparator
	}
	joined := strings.TrimRight(oldText, "\n") + sep + strings.TrimLeft(newText, "\n")

	oldMap, isMap := oldData.(map[string]any)
	if !isMap {
		return joined
	}
	out := copyMap(oldMap)
	out[oldField] = joined
	return out
}

func summaryText(v any) (string, string, bool) {
	switch t := v.(type) {
	case string:
		return t, "", true
	case map[string]any:
		for _, f := range summaryFields {
			if s, ok := t[f].(string); ok {
				return s, f, true
			}
		}
	}
	return "", "", false
}

func mergeNotes(oldData, newData any) any {
	oldSections, wrap, okOld := unwrapList(oldData, models.ContentNotes)
	newSections, _, okNew := unwrapList(newData, models.ContentNotes)
	if !okOld || !okNew {
		return newData
	}

	merged := make([]any, 0, len(oldSections)+len(newSections))
	byTitle := make(map[string]map[string]any)

	add := func(raw any) {
		section, ok := raw.(map[string]any)
		if !ok {
			merged = append(merged, raw)
			return
		}
		title := normalizeKey(sectionTitle(section))
		if existing, found := byTitle[title]; found && title != "" {
			existing["points"] = unionPoints(existing["points"], section["points"])
			return
		}
		cp := copyMap(section)
		cp["points"] = unionPoints(nil, section["points"])
		merged = append(merged, cp)
		if title != "" {
			byTitle[title] = cp
		}
	}

	for _, s := range oldSections {
		add(s)
	}
	for _, s := range newSections {
		add(s)
	}
	return wrap(merged)
}

func sectionTitle(section map[string]any) string {
	for _, f := range []string{"title", "section", "heading", "name"} {
		if s, ok := section[f].(string); ok {
			return s
		}
	}
	return ""
}

// unionPoints keeps the first occurrence of each point.
func unionPoints(a, b any) []any {
	out := []any{}
	seen := make(map[string]bool)
	for _, list := range []any{a, b} {
		items, _ := list.([]any)
		for _, p := range items {
			k := fmt.Sprint(p)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

func mergeKeyed(oldData, newData any, contentType models.ContentType) any {
	oldItems, wrap, okOld := unwrapList(oldData, contentType)
	newItems, _, okNew := unwrapList(newData, contentType)
	if !okOld || !okNew {
		return newData
	}
	key := itemKeys[contentType]

	var order []string
	values := make(map[string]any)
	unkeyed := 0
	put := func(item any) {
		k := ""
		if m, ok := item.(map[string]any); ok {
			if v, ok := m[key]; ok && v != nil {
				k = normalizeKey(fmt.Sprint(v))
			}
		}
		if k == "" {
			k = fmt.Sprintf("\x00unkeyed-%d", unkeyed)
			unkeyed++
		}
		if _, exists := values[k]; !exists {
			order = append(order, k)
		}
		values[k] = item
	}

	for _, item := range oldItems {
		put(item)
	}
	for _, item := range newItems {
		put(item)
	}

	out := make([]any, 0, len(order))
	for _, k := range order {
		out = append(out, values[k])
	}
	return wrap(out)
}

// unwrapList accepts a bare list, an object wrapping a list under a known
// field, or a single item object. The returned func restores the outer shape.
func unwrapList(v any, contentType models.ContentType) ([]any, func([]any) any, bool) {
	bare := func(items []any) any { return items }
	switch t := v.(type) {
	case []any:
		return t, bare, true
	case map[string]any:
		for _, field := range wrapperKeys[contentType] {
			if items, ok := t[field].([]any); ok {
				return items, func(merged []any) any {
					out := copyMap(t)
					out[field] = merged
					return out
				}, true
			}
		}
		return []any{t}, bare, true
	}
	return nil, bare, false
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
