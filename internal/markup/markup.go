// Package markup turns the small inline markup used in session instructions
// into a sequence of blocks a client can render without parsing text itself.
//
// The format is intentionally minimal: a line starting with "•", "-" or
// "<n>." is a list item, and text between "**" pairs is emphasized.
package markup

import (
	"regexp"
	"strings"
)

type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindList      BlockKind = "list"
)

// Span is a run of text, optionally emphasized.
type Span struct {
	Text     string `json:"text"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Block is either a paragraph (Spans set) or a list (Items set).
type Block struct {
	Kind  BlockKind `json:"kind"`
	Spans []Span    `json:"spans,omitempty"`
	Items [][]Span  `json:"items,omitempty"`
}

var listMarker = regexp.MustCompile(`^(?:[•-]\s*|\d+\.\s*)`)

// Parse converts instruction text into blocks. Blank lines are dropped and do
// not terminate a list; any other non-list line does.
func Parse(text string) []Block {
	blocks := []Block{}
	inList := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if loc := listMarker.FindStringIndex(line); loc != nil {
			item := Emphasize(strings.TrimSpace(line[loc[1]:]))
			if !inList {
				blocks = append(blocks, Block{Kind: KindList})
				inList = true
			}
			last := &blocks[len(blocks)-1]
			last.Items = append(last.Items, item)
			continue
		}
		inList = false
		blocks = append(blocks, Block{Kind: KindParagraph, Spans: Emphasize(line)})
	}
	return blocks
}

// Emphasize splits s on "**"; odd segments are emphasized. Empty segments are
// dropped, so an unmatched marker simply emphasizes the rest of the line.
func Emphasize(s string) []Span {
	parts := strings.Split(s, "**")
	spans := make([]Span, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		spans = append(spans, Span{Text: part, Emphasis: i%2 == 1})
	}
	return spans
}

var descriptionLabel = regexp.MustCompile(`(Sinhala:|English:)`)

// DescriptionLines splits a video description into lines, emphasizing the
// language labels that introduce each translation.
func DescriptionLines(description string) [][]Span {
	if description == "" {
		return [][]Span{}
	}
	lines := strings.Split(description, "\n")
	out := make([][]Span, 0, len(lines))
	for _, line := range lines {
		var spans []Span
		rest := line
		for {
			loc := descriptionLabel.FindStringIndex(rest)
			if loc == nil {
				break
			}
			if loc[0] > 0 {
				spans = append(spans, Span{Text: rest[:loc[0]]})
			}
			spans = append(spans, Span{Text: rest[loc[0]:loc[1]], Emphasis: true})
			rest = rest[loc[1]:]
		}
		if rest != "" || len(spans) == 0 {
			spans = append(spans, Span{Text: rest})
		}
		out = append(out, spans)
	}
	return out
}
