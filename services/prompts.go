package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"study-notes-platform/internal/ai"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// maxPromptChars bounds the scoped text placed in one prompt.
const maxPromptChars = 120000

// Prompt is a fully assembled generation request.
type Prompt struct {
	Text   string
	Format ai.OutputFormat
}

// BuildPrompt assembles the instruction for contentType from the scoped text
// and the raw settings object. Unknown settings fields are ignored; missing
// ones take the documented defaults.
func BuildPrompt(contentType models.ContentType, text string, rawSettings json.RawMessage) (Prompt, error) {
	decode := func(out any) error {
		if len(rawSettings) == 0 || string(rawSettings) == "null" {
			return nil
		}
		if err := json.Unmarshal(rawSettings, out); err != nil {
			return fmt.Errorf("%w: %v", utils.ErrInvalidRequest, err)
		}
		return nil
	}

	var b strings.Builder
	format := ai.FormatJSON

	switch contentType {
	case models.ContentSummary:
		var s models.SummarySettings
		if err := decode(&s); err != nil {
			return Prompt{}, err
		}
		s = s.WithDefaults()
		words := s.WordTarget(wordCount(text))
		fmt.Fprintf(&b, "You are a study assistant. Summarize the material below in about %d words, in a %s tone.\n", words, s.Tone)
		writeLanguage(&b, s.Language)
		switch s.Format {
		case "html":
			format = ai.FormatHTML
			b.WriteString("Return only an HTML fragment using <h2>, <p>, <ul> and <li>. No <html> or <body> tags and no code fences.\n")
		case "bullets":
			b.WriteString(`Return JSON: {"summary": "<markdown bullet list>"}` + "\n")
		default:
			b.WriteString(`Return JSON: {"summary": "<plain paragraphs>"}` + "\n")
		}

	case models.ContentNotes:
		var s models.NotesSettings
		if err := decode(&s); err != nil {
			return Prompt{}, err
		}
		s = s.WithDefaults()
		fmt.Fprintf(&b, "You are a study assistant. Write %s-style study notes for the material below.\n", s.Style)
		if s.MaxSections > 0 {
			fmt.Fprintf(&b, "Use at most %d sections.\n", s.MaxSections)
		}
		if s.IncludeExamples {
			b.WriteString("Include a short example in points where it helps understanding.\n")
		}
		writeLanguage(&b, s.Language)
		b.WriteString(`Return JSON: {"sections": [{"title": "...", "points": ["...", "..."]}]}` + "\n")

	case models.ContentInsights:
		var s models.InsightsSettings
		if err := decode(&s); err != nil {
			return Prompt{}, err
		}
		s = s.WithDefaults()
		fmt.Fprintf(&b, "You are a study assistant. Extract the %d most important insights from the material below.\n", s.Count)
		if s.Focus != "" {
			fmt.Fprintf(&b, "Focus on: %s.\n", s.Focus)
		}
		writeLanguage(&b, s.Language)
		b.WriteString(`Return JSON: {"insights": [{"title": "...", "description": "..."}]}` + "\n")

	case models.ContentFlashcards:
		var s models.FlashcardSettings
		if err := decode(&s); err != nil {
			return Prompt{}, err
		}
		s = s.WithDefaults()
		fmt.Fprintf(&b, "You are a study assistant. Write %d %s-difficulty flashcards for the material below.\n", s.Count, s.Difficulty)
		writeLanguage(&b, s.Language)
		b.WriteString(`Return JSON: {"flashcards": [{"question": "...", "answer": "..."}]}` + "\n")

	case models.ContentQuiz:
		var s models.QuizSettings
		if err := decode(&s); err != nil {
			return Prompt{}, err
		}
		s = s.WithDefaults()
		fmt.Fprintf(&b, "You are a study assistant. Write a %s-difficulty quiz with %d questions about the material below.\n", s.Difficulty, s.Questions)
		fmt.Fprintf(&b, "Allowed question types: %s.\n", strings.Join(s.QuestionTypes, ", "))
		writeLanguage(&b, s.Language)
		b.WriteString(`Return JSON: {"questions": [{"question": "...", "type": "...", "options": ["..."], "answer": "...", "explanation": "..."}]}` + "\n")

	case models.ContentMindMap:
		var s models.MindMapSettings
		if err := decode(&s); err != nil {
			return Prompt{}, err
		}
		s = s.WithDefaults()
		fmt.Fprintf(&b, "You are a study assistant. Build a mind map of the material below, at most %d levels deep with at most %d children per node.\n", s.MaxDepth, s.MaxBranches)
		writeLanguage(&b, s.Language)
		b.WriteString(`Return JSON: {"root": {"label": "...", "children": [{"label": "...", "children": []}]}}` + "\n")

	default:
		return Prompt{}, fmt.Errorf("%w: unknown content type %q", utils.ErrInvalidRequest, contentType)
	}

	b.WriteString("\nMaterial:\n")
	b.WriteString(truncateText(text, maxPromptChars))
	return Prompt{Text: b.String(), Format: format}, nil
}

// buildChatPrompt answers query from the retrieved chunks only.
func buildChatPrompt(query string, chunks []models.Chunk, settings models.ChatSettings) string {
	var b strings.Builder
	b.WriteString("You are a study assistant answering questions about a document. ")
	b.WriteString("Answer using only the excerpts below. If they do not contain the answer, say so.\n")
	if settings.Tone != "" {
		fmt.Fprintf(&b, "Answer in a %s tone.\n", settings.Tone)
	}
	b.WriteString("\nExcerpts:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] (page %d", i+1, c.Metadata.PageIndex+1)
		if c.Metadata.SlideTitle != "" {
			fmt.Fprintf(&b, ", %s", c.Metadata.SlideTitle)
		}
		b.WriteString(")\n")
		b.WriteString(c.Content)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\nAnswer:", query)
	return b.String()
}

func writeLanguage(b *strings.Builder, language string) {
	if language != "" {
		fmt.Fprintf(b, "Write in %s.\n", language)
	}
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// truncateText cuts on a rune boundary.
func truncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
