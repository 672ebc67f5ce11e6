package extractor

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	htmlNoise  = "script, style, noscript, template, iframe, svg, nav, footer, header, aside, form, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link"
	htmlBlocks = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th, figcaption, dt, dd"
	htmlNested = "p, li, pre, blockquote, td, th, dd"
)

// mainContent lists containers tried in order before falling back to body.
var mainContent = []string{"main", "article", "[role='main']", ".main-content", "#content", ".content", "body"}

// extractHTML keeps readable block elements in document order. h1 to h3 open
// topics; the page title becomes the page title.
func extractHTML(data []byte) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, extractionError("html", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(htmlNoise).Remove()

	root := doc.Selection
	for _, sel := range mainContent {
		if s := doc.Find(sel).First(); s.Length() > 0 && strings.TrimSpace(s.Text()) != "" {
			root = s
			break
		}
	}

	var blocks []block
	root.Find(htmlBlocks).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(htmlNested).Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3":
			blocks = append(blocks, block{text: text, heading: true})
		default:
			blocks = append(blocks, block{text: text})
		}
	})

	if len(blocks) == 0 {
		if text := Clean(root.Text()); text != "" {
			blocks = textBlocks(text)
		}
	}

	b := &builder{}
	if len(blocks) > 0 {
		b.addPage(title, "", blocks)
	}
	return b.result(MIMEHTML), nil
}
