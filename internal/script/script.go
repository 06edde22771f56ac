// Package script turns raw speaker-note text into the speaker-attributed
// chunks that become script slides. Speakers are marked inline with
// 《name》; text before the first marker belongs to the anonymous speaker.
package script

import (
	"regexp"
	"strings"
)

// MaxCharsPerSlide is the chunk capacity in runes. Counting runes keeps the
// split points stable for Japanese text.
const MaxCharsPerSlide = 150

// Segment is a contiguous stretch of note text attributed to one speaker.
// Speaker is empty for unattributed text.
type Segment struct {
	Speaker string
	Text    string
}

// Run is one speaker-attributed fragment inside a chunk. A chunk holds the
// runs that render on a single slide, in order.
type Run struct {
	Speaker string
	Text    string
}

// markerRe matches a speaker marker at the start of a line.
var markerRe = regexp.MustCompile(`^《(.+?)》`)

// Clean strips vertical tabs and surrounding whitespace from note text.
// PowerPoint encodes soft line breaks in notes as vertical tabs.
func Clean(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\x0b", ""))
}

// ParseSegments splits a note into per-speaker segments. Each line starting
// with 《name》 opens a segment for that speaker; other lines append to the
// current one. Blank lines are skipped. Consecutive segments with the same
// speaker merge.
func ParseSegments(note string) []Segment {
	var (
		segments []Segment
		current  string
		buffer   []string
	)

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(buffer, ""))
		if joined != "" {
			segments = append(segments, Segment{Speaker: current, Text: joined})
		}
		buffer = buffer[:0]
	}

	for _, raw := range strings.Split(note, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := markerRe.FindStringSubmatch(line); m != nil {
			flush()
			current = m[1]
			if rest := line[len(m[0]):]; rest != "" {
				buffer = append(buffer, rest)
			}
			continue
		}
		buffer = append(buffer, line)
	}
	flush()

	// Merge adjacent segments spoken by the same person.
	merged := segments[:0]
	for _, seg := range segments {
		if n := len(merged); n > 0 && merged[n-1].Speaker == seg.Speaker {
			merged[n-1].Text += seg.Text
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// Pack flattens segments into chunks of at most max runes each. A segment's
// text may split across chunk boundaries, but speaker attribution is kept on
// every fragment so each run renders with its own color.
func Pack(segments []Segment, max int) [][]Run {
	if max <= 0 {
		max = MaxCharsPerSlide
	}

	var (
		chunks [][]Run
		cur    []Run
		curLen int
	)

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, cur)
			cur = nil
			curLen = 0
		}
	}

	for _, seg := range segments {
		text := []rune(seg.Text)
		for i := 0; i < len(text); {
			remain := max - curLen
			if remain <= 0 {
				flush()
				remain = max
			}
			take := min(remain, len(text)-i)
			cur = append(cur, Run{Speaker: seg.Speaker, Text: string(text[i : i+take])})
			curLen += take
			i += take
		}
	}
	flush()
	return chunks
}

// Speakers returns the distinct speaker names across segments, in first
// appearance order. The anonymous speaker is omitted.
func Speakers(segments []Segment) []string {
	var names []string
	seen := make(map[string]bool)
	for _, seg := range segments {
		if seg.Speaker == "" || seen[seg.Speaker] {
			continue
		}
		seen[seg.Speaker] = true
		names = append(names, seg.Speaker)
	}
	return names
}
