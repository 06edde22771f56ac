package deck

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotPresentation is returned when the uploaded file is not a readable
// .pptx package.
var ErrNotPresentation = errors.New("not a PowerPoint presentation")

const (
	relNS            = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	notesSlideRel    = relNS + "/notesSlide"
	presentationPath = "ppt/presentation.xml"
)

// relationships mirrors an OPC .rels part.
type relationships struct {
	Rels []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

func (rs relationships) byID(id string) (relationship, bool) {
	for _, r := range rs.Rels {
		if r.ID == id {
			return r, true
		}
	}
	return relationship{}, false
}

func (rs relationships) byType(typ string) (relationship, bool) {
	for _, r := range rs.Rels {
		if r.Type == typ {
			return r, true
		}
	}
	return relationship{}, false
}

// presentationPart carries the ordered slide ID list of ppt/presentation.xml.
type presentationPart struct {
	SlideIDs []slideID `xml:"sldIdLst>sldId"`
}

type slideID struct {
	RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

// notesPart is the subset of a notesSlide part we care about: the shapes and
// their placeholder types.
type notesPart struct {
	Shapes []notesShape `xml:"cSld>spTree>sp"`
}

type notesShape struct {
	Placeholder *placeholder `xml:"nvSpPr>nvPr>ph"`
	Paragraphs  []paragraph  `xml:"txBody>p"`
}

type placeholder struct {
	Type string `xml:"type,attr"`
}

// paragraph decodes one a:p element, flattening runs and soft line breaks
// into text. Breaks become vertical tabs, matching how PowerPoint encodes
// them in extracted note text.
type paragraph struct {
	Text string
}

func (p *paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r", "fld":
				var run struct {
					Text string `xml:"t"`
				}
				if err := d.DecodeElement(&run, &t); err != nil {
					return err
				}
				b.WriteString(run.Text)
			case "br":
				b.WriteString("\x0b")
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			p.Text = b.String()
			return nil
		}
	}
}

// HarvestNotes extracts the raw speaker-note text of every slide, in slide
// order. Slides without a notes part yield an empty string.
func HarvestNotes(r io.ReaderAt, size int64) ([]string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	if _, ok := parts[presentationPath]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotPresentation, presentationPath)
	}

	var pres presentationPart
	if err := decodePart(parts, presentationPath, &pres); err != nil {
		return nil, fmt.Errorf("parse presentation: %w", err)
	}

	var presRels relationships
	if err := decodePart(parts, "ppt/_rels/presentation.xml.rels", &presRels); err != nil {
		return nil, fmt.Errorf("parse presentation rels: %w", err)
	}

	notes := make([]string, 0, len(pres.SlideIDs))
	for _, sid := range pres.SlideIDs {
		rel, ok := presRels.byID(sid.RelID)
		if !ok {
			return nil, fmt.Errorf("%w: unresolved slide relationship %s", ErrNotPresentation, sid.RelID)
		}
		slidePath := resolveTarget(presentationPath, rel.Target)

		text, err := slideNotes(parts, slidePath)
		if err != nil {
			return nil, err
		}
		notes = append(notes, text)
	}
	return notes, nil
}

// slideNotes follows a slide's rels to its notes part and extracts the body
// placeholder text. Missing rels or notes parts mean the slide simply has no
// notes.
func slideNotes(parts map[string]*zip.File, slidePath string) (string, error) {
	relsPath := path.Join(path.Dir(slidePath), "_rels", path.Base(slidePath)+".rels")
	if _, ok := parts[relsPath]; !ok {
		return "", nil
	}

	var rels relationships
	if err := decodePart(parts, relsPath, &rels); err != nil {
		return "", fmt.Errorf("parse %s: %w", relsPath, err)
	}
	rel, ok := rels.byType(notesSlideRel)
	if !ok {
		return "", nil
	}

	notesPath := resolveTarget(slidePath, rel.Target)
	if _, ok := parts[notesPath]; !ok {
		return "", nil
	}

	var np notesPart
	if err := decodePart(parts, notesPath, &np); err != nil {
		return "", fmt.Errorf("parse %s: %w", notesPath, err)
	}

	for _, sp := range np.Shapes {
		if sp.Placeholder == nil || sp.Placeholder.Type != "body" {
			continue
		}
		lines := make([]string, 0, len(sp.Paragraphs))
		for _, par := range sp.Paragraphs {
			lines = append(lines, par.Text)
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", nil
}

func decodePart(parts map[string]*zip.File, name string, v any) error {
	f, ok := parts[name]
	if !ok {
		return fmt.Errorf("part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// resolveTarget resolves a relationship target relative to the part that
// declared it (targets may climb with "../").
func resolveTarget(from, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(from), target))
}
