package extractor

import (
	"bytes"

	"code.sajari.com/docconv"
)

// extractDOCX converts a Word document to text. Word files carry no page
// boundaries, so the result is a single page.
func extractDOCX(data []byte) (*Extraction, error) {
	raw, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return nil, extractionError("docx", err)
	}

	text := Clean(raw)
	b := &builder{}
	if text != "" {
		b.addPage("", text, textBlocks(text))
	}
	return b.result(MIMEDOCX), nil
}
