package chatbot

import (
	"fmt"
	"strings"
	"sync"

	"ApparelChat/internal/content"
	"ApparelChat/internal/session"
)

// Style decorates rendered transcript pieces. The TUI supplies colours; the
// line-mode REPL uses PlainStyle.
type Style interface {
	Speaker(role session.Role, label string) string
	Receipt(text string) string
	Image(text string) string
	Muted(text string) string
}

// PlainStyle renders without decoration
type PlainStyle struct{}

func (PlainStyle) Speaker(_ session.Role, label string) string { return label }
func (PlainStyle) Receipt(text string) string                 { return text }
func (PlainStyle) Image(text string) string                   { return text }
func (PlainStyle) Muted(text string) string                   { return text }

type galleryKey struct {
	message int
	segment int
}

// Transcript renders history and keeps the cursor of every multi-image
// gallery it has shown. Segments are re-parsed on every render.
type Transcript struct {
	mu        sync.Mutex
	carousels map[galleryKey]*content.Carousel
	latest    *galleryKey
}

// NewTranscript creates an empty Transcript
func NewTranscript() *Transcript {
	return &Transcript{carousels: make(map[galleryKey]*content.Carousel)}
}

// Reset forgets every carousel cursor
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.carousels = make(map[galleryKey]*content.Carousel)
	t.latest = nil
}

// Render formats the history starting at message index from
func (t *Transcript) Render(history []session.Message, from int, style Style) string {
	var b strings.Builder
	for i := from; i < len(history); i++ {
		b.WriteString(t.RenderMessage(history, i, style))
	}
	return b.String()
}

// RenderMessage formats history[i]. The index keys the carousel cursors, so
// it must be the message's position in the full history.
func (t *Transcript) RenderMessage(history []session.Message, i int, style Style) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := history[i]
	label := "You"
	if msg.Role == session.RoleAssistant {
		label = "Bot"
	}

	var b strings.Builder
	b.WriteString(style.Speaker(msg.Role, label+":"))
	b.WriteString(" ")
	for j, seg := range content.ForMessage(msg) {
		switch seg.Kind {
		case content.KindText:
			b.WriteString(seg.Text)
		case content.KindReceipt:
			b.WriteString("\n")
			b.WriteString(style.Receipt(seg.Text))
			b.WriteString("\n")
		case content.KindGallery:
			b.WriteString("\n")
			b.WriteString(t.renderGallery(galleryKey{message: i, segment: j}, seg, style))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\n")
	return b.String()
}

func (t *Transcript) renderGallery(key galleryKey, seg content.Segment, style Style) string {
	if len(seg.URLs) == 0 {
		return style.Muted(fmt.Sprintf("  [no images] %s", seg.Alt))
	}

	c, ok := t.carousels[key]
	if !ok {
		c = content.NewCarousel(seg.URLs)
		t.carousels[key] = c
	}
	if c.Static() {
		return style.Image(fmt.Sprintf("  [image] %s: %s", seg.Alt, c.Current()))
	}
	if t.latest == nil || key.message > t.latest.message ||
		(key.message == t.latest.message && key.segment > t.latest.segment) {
		k := key
		t.latest = &k
	}

	dots := make([]string, c.Len())
	for i := range dots {
		dots[i] = "○"
		if i == c.Index() {
			dots[i] = "●"
		}
	}
	return style.Image(fmt.Sprintf("  [%s] %s: %s", c.Indicator(), seg.Alt, c.Current())) +
		"\n  " + style.Muted(strings.Join(dots, " ")+"  (/next, /show N)")
}

// RenderLatest re-renders the message holding the most recently rendered
// carousel. It returns "" when no carousel has been shown.
func (t *Transcript) RenderLatest(history []session.Message, style Style) string {
	t.mu.Lock()
	latest := t.latest
	t.mu.Unlock()
	if latest == nil || latest.message >= len(history) {
		return ""
	}
	return t.RenderMessage(history, latest.message, style)
}

// Next advances the most recently rendered carousel
func (t *Transcript) Next() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return false
	}
	t.carousels[*t.latest].Next()
	return true
}

// Show jumps the most recently rendered carousel to a 1-based position
func (t *Transcript) Show(position int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return false
	}
	return t.carousels[*t.latest].Jump(position - 1)
}
