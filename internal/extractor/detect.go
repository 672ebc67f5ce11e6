package extractor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"study-notes-platform/utils"
)

const (
	MIMEPDF   = "application/pdf"
	MIMEPlain = "text/plain"
	MIMEHTML  = "text/html"
	MIMEPPTX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ooxmlMarkers maps the part that identifies each OOXML package type.
var ooxmlMarkers = []struct {
	part string
	mime string
}{
	{"ppt/presentation.xml", MIMEPPTX},
	{"word/document.xml", MIMEDOCX},
	{"xl/workbook.xml", MIMEXLSX},
}

// DetectMIME decides the input type from magic bytes. declared only breaks
// the tie between plain text and HTML when the bytes are generic text.
func DetectMIME(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return MIMEPlain, nil
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is(MIMEPDF):
		return MIMEPDF, nil
	case mt.Is(MIMEPPTX), mt.Is(MIMEDOCX), mt.Is(MIMEXLSX):
		return baseType(mt), nil
	case mt.Is("application/zip"):
		// mimetype only reads the leading entries; packages written in an
		// unusual order still carry their marker part somewhere
		return detectOOXML(data)
	case descends(mt, "application/x-ole-storage"):
		return "", fmt.Errorf("%w: legacy office binary format (%s)", utils.ErrUnsupportedFileType, baseType(mt))
	case descends(mt, MIMEHTML), mt.Is("application/xhtml+xml"):
		return MIMEHTML, nil
	case descends(mt, MIMEPlain):
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not valid UTF-8", utils.ErrUnsupportedFileType)
		}
		if strings.HasPrefix(strings.ToLower(declared), MIMEHTML) {
			return MIMEHTML, nil
		}
		return MIMEPlain, nil
	}
	return "", fmt.Errorf("%w: %s", utils.ErrUnsupportedFileType, baseType(mt))
}

// descends reports whether mt or one of its parents is target. JSON, CSV and
// XML are children of text/plain.
func descends(mt *mimetype.MIME, target string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(target) {
			return true
		}
	}
	return false
}

func baseType(mt *mimetype.MIME) string {
	return strings.TrimSpace(strings.SplitN(mt.String(), ";", 2)[0])
}

func detectOOXML(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable zip container: %v", utils.ErrUnsupportedFileType, err)
	}
	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, m := range ooxmlMarkers {
		if names[m.part] {
			return m.mime, nil
		}
	}
	return "", fmt.Errorf("%w: zip archive is not an office document", utils.ErrUnsupportedFileType)
}
