// Package content turns assistant replies into renderable segments.
//
// The assistant embeds product galleries as image tags of the form
//
//	<img src="url1, url2" alt="Product name" ...>
//
// with src always before alt. Everything outside a tag is plain text.
package content

import (
	"regexp"
	"strings"

	"ApparelChat/internal/session"
)

// Kind tags a Segment
type Kind int

const (
	KindText Kind = iota
	KindGallery
	KindReceipt
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindGallery:
		return "gallery"
	case KindReceipt:
		return "receipt"
	}
	return "unknown"
}

// Segment is one renderable piece of a message
type Segment struct {
	Kind Kind
	Text string   // KindText, KindReceipt
	URLs []string // KindGallery
	Alt  string   // KindGallery
	Raw  string   // KindGallery: the tag exactly as it appeared
}

// Each capture stops at the next double quote; the tail up to '>' is ignored.
var imgTag = regexp.MustCompile(`<img src="([^"]*)" alt="([^"]*)"[^>]*>`)

// Parse splits content into plain text and gallery segments in source order.
// It never fails: text that does not match the tag grammar stays plain text.
func Parse(content string) []Segment {
	var segments []Segment
	last := 0
	for _, m := range imgTag.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > last {
			segments = append(segments, Segment{Kind: KindText, Text: content[last:m[0]]})
		}
		segments = append(segments, Segment{
			Kind: KindGallery,
			URLs: splitURLs(content[m[2]:m[3]]),
			Alt:  content[m[4]:m[5]],
			Raw:  content[m[0]:m[1]],
		})
		last = m[1]
	}
	if last < len(content) {
		segments = append(segments, Segment{Kind: KindText, Text: content[last:]})
	}
	return segments
}

// ForMessage derives the segments for a history entry. Unwrapped order
// receipts render verbatim.
func ForMessage(m session.Message) []Segment {
	if m.Receipt {
		return []Segment{{Kind: KindReceipt, Text: m.Content}}
	}
	return Parse(m.Content)
}

func splitURLs(list string) []string {
	var urls []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
