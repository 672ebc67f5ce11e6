package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slidePart      = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	errMissingPart = errors.New("missing part")
)

type slideXML struct {
	Shapes []slideShape `xml:"cSld>spTree>sp"`
	Groups []slideGroup `xml:"cSld>spTree>grpSp"`
}

type slideGroup struct {
	Shapes []slideShape `xml:"sp"`
	Groups []slideGroup `xml:"grpSp"`
}

type slideShape struct {
	Placeholder struct {
		Type string `xml:"type,attr"`
	} `xml:"nvSpPr>nvPr>ph"`
	Paragraphs []struct {
		// runs, fields and breaks in document order
		Items []struct {
			XMLName xml.Name
			Text    string `xml:"t"`
		} `xml:",any"`
	} `xml:"txBody>p"`
}

// presentationXML lists the slides in the order the deck shows them.
type presentationXML struct {
	SlideIDs []struct {
		Attrs []xml.Attr `xml:",any,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationshipsXML struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func (s slideShape) isTitle() bool {
	return s.Placeholder.Type == "title" || s.Placeholder.Type == "ctrTitle"
}

func (s slideShape) lines() []string {
	var out []string
	for _, p := range s.Paragraphs {
		var sb strings.Builder
		for _, item := range p.Items {
			switch item.XMLName.Local {
			case "r", "fld":
				sb.WriteString(item.Text)
			case "br":
				sb.WriteByte(' ')
			}
		}
		if line := strings.TrimSpace(sb.String()); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (g slideGroup) flatten() []slideShape {
	out := append([]slideShape(nil), g.Shapes...)
	for _, child := range g.Groups {
		out = append(out, child.flatten()...)
	}
	return out
}

// extractSlides produces one page per slide in presentation order, titled by
// the title placeholder or "Slide N". Decks without a readable slide list fall
// back to slide-number order.
func extractSlides(data []byte) (*Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, extractionError("pptx", err)
	}

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[path.Clean(f.Name)] = f
	}

	slides := presentationOrder(parts)
	if len(slides) == 0 {
		slides = numberOrder(parts)
	}

	b := &builder{}
	for i, f := range slides {
		title, body, err := readSlide(f)
		if err != nil {
			return nil, extractionError(fmt.Sprintf("slide %s", f.Name), err)
		}
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		blocks := make([]block, 0, len(body))
		for _, line := range body {
			blocks = append(blocks, block{text: line})
		}
		text := strings.Join(append([]string{title}, body...), "\n")
		b.addPage(title, text, blocks)
	}

	return b.result(MIMEPPTX), nil
}

// presentationOrder follows p:sldIdLst through the presentation relationships.
// It returns nil when either part is missing or a slide cannot be resolved.
func presentationOrder(parts map[string]*zip.File) []*zip.File {
	var pres presentationXML
	var rels relationshipsXML
	if readXMLPart(parts["ppt/presentation.xml"], &pres) != nil ||
		readXMLPart(parts["ppt/_rels/presentation.xml.rels"], &rels) != nil ||
		len(pres.SlideIDs) == 0 {
		return nil
	}

	targets := make(map[string]string, len(rels.Rels))
	for _, r := range rels.Rels {
		if strings.HasPrefix(r.Target, "/") {
			targets[r.ID] = path.Clean(strings.TrimPrefix(r.Target, "/"))
		} else {
			targets[r.ID] = path.Join("ppt", r.Target)
		}
	}

	out := make([]*zip.File, 0, len(pres.SlideIDs))
	for _, sld := range pres.SlideIDs {
		var relID string
		for _, a := range sld.Attrs {
			// the numeric id attribute is unqualified, r:id is not
			if a.Name.Local == "id" && a.Name.Space != "" {
				relID = a.Value
			}
		}
		f, ok := parts[targets[relID]]
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func numberOrder(parts map[string]*zip.File) []*zip.File {
	type slideFile struct {
		num  int
		file *zip.File
	}
	var slides []slideFile
	for name, f := range parts {
		m := slidePart.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	out := make([]*zip.File, len(slides))
	for i, sf := range slides {
		out[i] = sf.file
	}
	return out
}

func readXMLPart(f *zip.File, v any) error {
	if f == nil {
		return errMissingPart
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

func readSlide(f *zip.File) (string, []string, error) {
	var doc slideXML
	if err := readXMLPart(f, &doc); err != nil {
		return "", nil, err
	}

	shapes := doc.Shapes
	for _, g := range doc.Groups {
		shapes = append(shapes, g.flatten()...)
	}

	var title string
	var body []string
	for _, s := range shapes {
		lines := s.lines()
		if s.isTitle() && title == "" && len(lines) > 0 {
			title = strings.Join(lines, " ")
			continue
		}
		body = append(body, lines...)
	}
	return title, body, nil
}
