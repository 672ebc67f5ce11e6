package extractor

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads pages in order. Text runs within a page are joined with
// single spaces; each run becomes a node of that page.
func extractPDF(data []byte) (*Extraction, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, extractionError("pdf", err)
	}

	b := &builder{}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			b.addPage("", "", nil)
			continue
		}

		// nil loads this page's own font resources
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, extractionError("pdf page", err)
		}

		runs := strings.Split(text, "\n")
		blocks := make([]block, 0, len(runs))
		for _, run := range runs {
			run = strings.TrimSpace(run)
			if run == "" {
				continue
			}
			blocks = append(blocks, block{text: run, heading: looksLikeHeading(run)})
		}
		b.addPage("", joinRuns(runs), blocks)
	}

	return b.result(MIMEPDF), nil
}
