package deck

import (
	"scriptdeck/internal/script"
)

// Script is the woven result: the generated slides plus the speakers that
// appeared, in first-appearance order.
type Script struct {
	Slides    []Slide
	NoteCount int
	Speakers  []string
}

// Weave turns raw per-slide note texts into script slides. Empty notes are
// dropped; each remaining note is parsed into speaker segments, packed into
// chunks, and rendered as one slide per chunk. Colors are assigned per call,
// so auto-pool colors never leak between conversions.
func Weave(notes []string, palette Palette) Script {
	assigner := NewAssigner(palette)

	var out Script
	seen := make(map[string]bool)

	for _, raw := range notes {
		note := script.Clean(raw)
		if note == "" {
			continue
		}
		out.NoteCount++

		segments := script.ParseSegments(note)
		for _, name := range script.Speakers(segments) {
			if !seen[name] {
				seen[name] = true
				out.Speakers = append(out.Speakers, name)
			}
		}

		chunks := script.Pack(segments, script.MaxCharsPerSlide)
		for i, chunk := range chunks {
			slide := Slide{Page: i + 1, Pages: len(chunks)}
			for _, run := range chunk {
				text := run.Text
				if run.Speaker != "" {
					text = "《" + run.Speaker + "》" + text
				}
				slide.Runs = append(slide.Runs, Run{
					Text:  text,
					Color: assigner.Color(run.Speaker),
				})
			}
			out.Slides = append(out.Slides, slide)
		}
	}
	return out
}
