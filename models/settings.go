package models

import "strings"

// ContentType selects the generation template and the merge strategy.
type ContentType string

const (
	ContentSummary    ContentType = "summary"
	ContentNotes      ContentType = "notes"
	ContentInsights   ContentType = "insights"
	ContentFlashcards ContentType = "flashcards"
	ContentQuiz       ContentType = "quiz"
	ContentMindMap    ContentType = "mindmap"
)

var contentFields = map[ContentType]string{
	ContentSummary:    "summaryData",
	ContentNotes:      "notesData",
	ContentInsights:   "insightsData",
	ContentFlashcards: "flashcardsData",
	ContentQuiz:       "quizData",
	ContentMindMap:    "mindmapData",
}

// ParseContentType accepts the route form of a content type, case-insensitively.
func ParseContentType(s string) (ContentType, bool) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := contentFields[ct]
	return ct, ok
}

// Field is the document store field that holds generated content of this type.
func (c ContentType) Field() string {
	if f, ok := contentFields[c]; ok {
		return f
	}
	return string(c) + "Data"
}

// ScopeKind narrows which text feeds a generation request.
type ScopeKind string

const (
	ScopeAll    ScopeKind = "all"
	ScopePages  ScopeKind = "pages"
	ScopeTopics ScopeKind = "topics"
)

// Scope is a request-time selector. Pages are 1-based.
type Scope struct {
	Kind   ScopeKind `json:"type"`
	Pages  []int     `json:"pages,omitempty"`
	Topics []string  `json:"topics,omitempty"`
}

const (
	DefaultSummaryPercent  = 20
	DefaultInsightCount    = 5
	DefaultFlashcardCount  = 10
	DefaultQuizQuestions   = 10
	DefaultDifficulty      = "medium"
	DefaultMindMapDepth    = 3
	DefaultMindMapBranches = 6
	DefaultChatTopK        = 4
)

// SummarySettings controls summary generation. When TargetWords is zero the
// summary length is LengthPercent of the source word count.
type SummarySettings struct {
	Tone          string `json:"tone,omitempty"`
	TargetWords   int    `json:"targetWords,omitempty"`
	LengthPercent int    `json:"lengthPercent,omitempty"`
	Format        string `json:"format,omitempty"` // paragraphs | bullets | html
	Language      string `json:"language,omitempty"`
}

func (s SummarySettings) WithDefaults() SummarySettings {
	if s.LengthPercent <= 0 || s.LengthPercent > 100 {
		s.LengthPercent = DefaultSummaryPercent
	}
	if s.Format == "" {
		s.Format = "paragraphs"
	}
	if s.Tone == "" {
		s.Tone = "neutral"
	}
	return s
}

// WordTarget resolves the summary length for a source of sourceWords words.
func (s SummarySettings) WordTarget(sourceWords int) int {
	if s.TargetWords > 0 {
		return s.TargetWords
	}
	pct := s.LengthPercent
	if pct <= 0 {
		pct = DefaultSummaryPercent
	}
	target := sourceWords * pct / 100
	if target < 50 {
		target = 50
	}
	return target
}

type NotesSettings struct {
	Style           string `json:"style,omitempty"` // outline | cornell | concise
	MaxSections     int    `json:"maxSections,omitempty"`
	IncludeExamples bool   `json:"includeExamples,omitempty"`
	Language        string `json:"language,omitempty"`
}

func (s NotesSettings) WithDefaults() NotesSettings {
	if s.Style == "" {
		s.Style = "outline"
	}
	return s
}

type InsightsSettings struct {
	Count    int    `json:"count,omitempty"`
	Focus    string `json:"focus,omitempty"`
	Language string `json:"language,omitempty"`
}

func (s InsightsSettings) WithDefaults() InsightsSettings {
	if s.Count <= 0 {
		s.Count = DefaultInsightCount
	}
	return s
}

type FlashcardSettings struct {
	Count      int    `json:"count,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Language   string `json:"language,omitempty"`
}

func (s FlashcardSettings) WithDefaults() FlashcardSettings {
	if s.Count <= 0 {
		s.Count = DefaultFlashcardCount
	}
	if s.Difficulty == "" {
		s.Difficulty = DefaultDifficulty
	}
	return s
}

type QuizSettings struct {
	Questions     int      `json:"questions,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	QuestionTypes []string `json:"questionTypes,omitempty"`
	Language      string   `json:"language,omitempty"`
}

func (s QuizSettings) WithDefaults() QuizSettings {
	if s.Questions <= 0 {
		s.Questions = DefaultQuizQuestions
	}
	if s.Difficulty == "" {
		s.Difficulty = DefaultDifficulty
	}
	if len(s.QuestionTypes) == 0 {
		s.QuestionTypes = []string{"multiple_choice"}
	}
	return s
}

type MindMapSettings struct {
	MaxDepth    int    `json:"maxDepth,omitempty"`
	MaxBranches int    `json:"maxBranches,omitempty"`
	Language    string `json:"language,omitempty"`
}

func (s MindMapSettings) WithDefaults() MindMapSettings {
	if s.MaxDepth <= 0 {
		s.MaxDepth = DefaultMindMapDepth
	}
	if s.MaxBranches <= 0 {
		s.MaxBranches = DefaultMindMapBranches
	}
	return s
}

// ChatSettings controls chunk-based generation.
type ChatSettings struct {
	TopK int    `json:"topK,omitempty"`
	Tone string `json:"tone,omitempty"`
}

func (s ChatSettings) WithDefaults() ChatSettings {
	if s.TopK <= 0 {
		s.TopK = DefaultChatTopK
	}
	return s
}
