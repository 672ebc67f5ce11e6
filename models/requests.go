package models

import "encoding/json"

// GenerateRequest is the body of POST /documents/:id/generate/:contentType.
// Settings is decoded into the settings type matching the content type.
type GenerateRequest struct {
	Scope    Scope           `json:"scope"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// GenerateResponse carries either a parsed result or the raw model text.
type GenerateResponse struct {
	DocumentID  string      `json:"documentId"`
	ContentType ContentType `json:"contentType"`
	Data        any         `json:"data,omitempty"`
	Raw         string      `json:"raw,omitempty"`
	Merged      bool        `json:"merged"`
}

type ScopeRequest struct {
	Scope Scope `json:"scope"`
}

type ChatRequest struct {
	Query    string       `json:"query" binding:"required"`
	Settings ChatSettings `json:"settings"`
}

type ChatResponse struct {
	DocumentID string   `json:"documentId"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
}

// Source points a chat answer back to the chunk it used.
type Source struct {
	PageIndex  int     `json:"pageIndex"`
	SlideTitle string  `json:"slideTitle,omitempty"`
	Score      float64 `json:"score"`
}

type MergeRequest struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

type HTMLIngestRequest struct {
	HTML     string `json:"html"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
}
