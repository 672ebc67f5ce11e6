package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"study-notes-platform/models"
)

// block is one paragraph-level span produced by a format reader. A heading
// block opens a topic labelled with label.
type block struct {
	text    string
	heading bool
	label   string
}

// builder accumulates pages, nodes and topics in document order.
type builder struct {
	pages  []models.PageText
	tree   []models.Page
	topics []models.Topic
	open   *models.Topic
}

// addPage appends one page. text is the canonical page text; when empty it
// is the blocks joined by blank lines. Headings open a new topic and
// following nodes join it until the next heading.
func (b *builder) addPage(title, text string, blocks []block) {
	idx := len(b.tree)
	page := models.Page{PageIndex: idx, Title: title}

	var texts []string
	n := 0
	nextID := func() string {
		id := fmt.Sprintf("%d-%d", idx, n)
		n++
		return id
	}

	if title != "" {
		id := nextID()
		page.Nodes = append(page.Nodes, models.Node{ID: id, Type: models.NodeTypeTitle, Content: models.NodeContent{Text: title}})
		b.startTopic(title)
		b.open.Nodes = append(b.open.Nodes, id)
	}

	for _, bl := range blocks {
		nodeText := Clean(bl.text)
		if nodeText == "" {
			continue
		}
		texts = append(texts, nodeText)
		if bl.heading {
			label := bl.label
			if label == "" {
				label = nodeText
			}
			b.startTopic(label)
		}
		id := nextID()
		page.Nodes = append(page.Nodes, models.Node{ID: id, Type: models.NodeTypeText, Content: models.NodeContent{Text: nodeText}})
		if b.open != nil {
			b.open.Nodes = append(b.open.Nodes, id)
		}
	}

	if text == "" {
		text = strings.Join(texts, "\n\n")
	}
	b.tree = append(b.tree, page)
	b.pages = append(b.pages, models.PageText{Index: idx, Title: title, Text: Clean(text)})
}

func (b *builder) startTopic(label string) {
	b.flushTopic()
	b.open = &models.Topic{ID: fmt.Sprintf("topic-%d", len(b.topics)+1), Label: label}
}

func (b *builder) flushTopic() {
	if b.open != nil && len(b.open.Nodes) > 0 {
		b.topics = append(b.topics, *b.open)
	}
	b.open = nil
}

func (b *builder) result(mime string) *Extraction {
	b.flushTopic()
	texts := make([]string, 0, len(b.pages))
	for _, p := range b.pages {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return &Extraction{
		MimeType:  mime,
		Text:      Clean(strings.Join(texts, "\n")),
		Pages:     b.pages,
		Structure: b.tree,
		Topics:    b.topics,
	}
}

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedHeading = regexp.MustCompile(`^(\d+(\.\d+)*|[IVX]+)\.?\s+\p{Lu}`)
)

// looksLikeHeading flags short standalone lines that read as section titles.
func looksLikeHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 80 || strings.Contains(line, "\n") {
		return false
	}
	if markdownHeading.MatchString(line) {
		return true
	}
	last := line[len(line)-1]
	if last == '.' || last == ',' || last == ';' {
		return false
	}
	words := strings.Fields(line)
	if len(words) > 10 {
		return false
	}
	if numberedHeading.MatchString(line) {
		return true
	}
	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 3 && upper == letters
}

// headingText strips markdown markers from a heading line.
func headingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// textBlocks turns cleaned plain text into paragraph blocks, marking headings.
func textBlocks(text string) []block {
	var out []block
	for _, para := range paragraphs(text) {
		lines := strings.Split(para, "\n")
		if len(lines) > 1 && looksLikeHeading(lines[0]) {
			out = append(out, block{text: lines[0], heading: true, label: headingText(lines[0])})
			out = append(out, block{text: strings.Join(lines[1:], "\n")})
			continue
		}
		if looksLikeHeading(para) {
			out = append(out, block{text: para, heading: true, label: headingText(para)})
			continue
		}
		out = append(out, block{text: para})
	}
	return out
}
