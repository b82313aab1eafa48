package content

import "fmt"

// Carousel is the browsing cursor over a gallery's images.
type Carousel struct {
	urls  []string
	index int
}

// NewCarousel starts a carousel at the first image
func NewCarousel(urls []string) *Carousel {
	return &Carousel{urls: urls}
}

// Static reports whether the gallery has a single image and needs no controls.
func (c *Carousel) Static() bool {
	return len(c.urls) <= 1
}

func (c *Carousel) Len() int { return len(c.urls) }

func (c *Carousel) Index() int { return c.index }

// Current returns the URL under the cursor
func (c *Carousel) Current() string {
	if len(c.urls) == 0 {
		return ""
	}
	return c.urls[c.index]
}

// Next advances the cursor, wrapping to the first image
func (c *Carousel) Next() {
	if len(c.urls) == 0 {
		return
	}
	c.index = (c.index + 1) % len(c.urls)
}

// Jump moves the cursor to i. Out-of-range positions are ignored.
func (c *Carousel) Jump(i int) bool {
	if i < 0 || i >= len(c.urls) {
		return false
	}
	c.index = i
	return true
}

// Indicator renders the "current / total" overlay
func (c *Carousel) Indicator() string {
	return fmt.Sprintf("%d / %d", c.index+1, len(c.urls))
}
