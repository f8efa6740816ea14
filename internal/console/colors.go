package console

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// colorEscape introduces a color code: ^ followed by a digit
const colorEscape = '^'

// Palette is the client color table indexed by the digit after ^. Digits 8
// and 9 wrap to 0 and 1 like the client does.
var Palette = [8]tcell.Color{
	tcell.ColorBlack,
	tcell.ColorRed,
	tcell.ColorLime,
	tcell.ColorYellow,
	tcell.ColorBlue,
	tcell.ColorAqua,
	tcell.ColorFuchsia,
	tcell.ColorWhite,
}

// colorTag returns the tview tag for a color digit
func colorTag(digit byte) string {
	c := Palette[(digit-'0')%8]
	return fmt.Sprintf("[#%06x]", c.Hex())
}

func isColorDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Colorize renders ^N color codes as tview color tags. Text is escaped first
// so square brackets from players cannot inject tags.
func Colorize(text string) string {
	var c Colorizer
	return c.Chunk(text) + c.Flush()
}

// StripColors removes ^N color codes
func StripColors(text string) string {
	var s Stripper
	return s.Chunk(text) + s.Flush()
}

// Colorizer is a streaming Colorize for text arriving in chunks. A ^ at the
// end of a chunk is held until the next chunk shows whether it starts a code.
type Colorizer struct {
	pending bool
}

// Chunk converts one chunk of text
func (c *Colorizer) Chunk(text string) string {
	var out strings.Builder
	for _, seg := range scanCodes(text, &c.pending) {
		if seg.code != 0 {
			out.WriteString(colorTag(seg.code))
			continue
		}
		out.WriteString(tview.Escape(seg.text))
	}
	return out.String()
}

// Flush returns a held ^ and resets the colorizer
func (c *Colorizer) Flush() string {
	if c.pending {
		c.pending = false
		return string(colorEscape)
	}
	return ""
}

// Stripper is a streaming StripColors
type Stripper struct {
	pending bool
}

// Chunk strips one chunk of text
func (s *Stripper) Chunk(text string) string {
	var out strings.Builder
	for _, seg := range scanCodes(text, &s.pending) {
		out.WriteString(seg.text)
	}
	return out.String()
}

// Flush returns a held ^ and resets the stripper
func (s *Stripper) Flush() string {
	if s.pending {
		s.pending = false
		return string(colorEscape)
	}
	return ""
}

// segment is either plain text or a single color code
type segment struct {
	text string
	code byte
}

// scanCodes splits text into plain segments and color codes. pending carries
// a trailing ^ between calls.
func scanCodes(text string, pending *bool) []segment {
	var segs []segment
	var plain strings.Builder

	emit := func() {
		if plain.Len() > 0 {
			segs = append(segs, segment{text: plain.String()})
			plain.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if *pending {
			*pending = false
			if isColorDigit(ch) {
				emit()
				segs = append(segs, segment{code: ch})
				continue
			}
			plain.WriteByte(colorEscape)
		}
		if ch == colorEscape {
			*pending = true
			continue
		}
		plain.WriteByte(ch)
	}
	emit()
	return segs
}
