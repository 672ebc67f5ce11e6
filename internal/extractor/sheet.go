package extractor

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractSheets maps each worksheet to a page titled by the sheet name.
// Rows become nodes with non-empty cells joined by " | ".
func extractSheets(data []byte) (*Extraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, extractionError("xlsx", err)
	}
	defer f.Close()

	b := &builder{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, extractionError("xlsx sheet "+sheet, err)
		}

		var lines []string
		var blocks []block
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) == 0 {
				continue
			}
			line := strings.Join(cells, " | ")
			lines = append(lines, line)
			blocks = append(blocks, block{text: line})
		}
		b.addPage(sheet, strings.Join(lines, "\n"), blocks)
	}

	return b.result(MIMEXLSX), nil
}
