package models

import (
	"time"
)

// Document is the committed result of one ingestion run. It becomes visible
// only after extraction, chunking and indexing all succeeded.
type Document struct {
	ID            string            `bson:"_id" json:"documentId"`
	FileName      string            `bson:"file_name" json:"fileName"`
	MimeType      string            `bson:"mime_type" json:"mimeType"`
	FileHash      string            `bson:"file_hash,omitempty" json:"fileHash,omitempty"`
	ExtractedText string            `bson:"extracted_text" json:"extractedText"`
	Chunks        []Chunk           `bson:"chunks" json:"chunks"`
	Structure     []Page            `bson:"structure" json:"structure"`
	Topics        []Topic           `bson:"topics" json:"topics"`
	Generated     map[string]string `bson:"generated,omitempty" json:"-"`
	CreatedAt     time.Time         `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `bson:"updated_at" json:"updatedAt"`
}

// Chunk is a bounded text span produced by the chunker. Chunks are ordered;
// position in the slice is the chunk order.
type Chunk struct {
	Content  string        `bson:"content" json:"content"`
	Metadata ChunkMetadata `bson:"metadata" json:"metadata"`
}

// ChunkMetadata travels with a chunk into the vector index.
type ChunkMetadata struct {
	PageIndex   int    `bson:"page_index" json:"pageIndex"`
	SlideTitle  string `bson:"slide_title,omitempty" json:"slideTitle,omitempty"`
	Source      string `bson:"source,omitempty" json:"source,omitempty"`
	FileName    string `bson:"file_name,omitempty" json:"fileName,omitempty"`
	ChunkIndex  int    `bson:"chunk_index" json:"chunkIndex"`
	StartOffset int    `bson:"start_offset" json:"startOffset"`
}

// PageText is one extracted page (PDF page, slide, sheet) of cleaned text.
type PageText struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Node types used in the structure tree.
const (
	NodeTypeTitle = "title"
	NodeTypeText  = "text"
)

// Node is the smallest addressable text span of a page. IDs have the form
// "<pageIndex>-<n>" and are unique within a document.
type Node struct {
	ID      string      `bson:"id" json:"id"`
	Type    string      `bson:"type" json:"type"`
	Content NodeContent `bson:"content" json:"content"`
}

type NodeContent struct {
	Text string `bson:"text" json:"text"`
}

// Page groups the nodes of one extracted page.
type Page struct {
	PageIndex int    `bson:"page_index" json:"pageIndex"`
	Title     string `bson:"title,omitempty" json:"title,omitempty"`
	Nodes     []Node `bson:"nodes" json:"nodes"`
}

// Topic is a labelled set of node ids, usually derived from a heading.
// Node ids that do not resolve are ignored by readers.
type Topic struct {
	ID    string   `bson:"id" json:"id"`
	Label string   `bson:"label" json:"label"`
	Nodes []string `bson:"nodes" json:"nodes"`
}

// DocumentSummary is the lightweight view returned by the API.
type DocumentSummary struct {
	ID         string    `json:"documentId"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	ChunkCount int       `json:"chunkCount"`
	PageCount  int       `json:"pageCount"`
	Topics     []Topic   `json:"topics"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summary returns the API view of a document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		FileName:   d.FileName,
		MimeType:   d.MimeType,
		ChunkCount: len(d.Chunks),
		PageCount:  len(d.Structure),
		Topics:     d.Topics,
		CreatedAt:  d.CreatedAt,
	}
}
