package present

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Rendered is the fully processed form of one response.
type Rendered struct {
	Charts []Chart
	// Text is the display prose: chart payloads stripped, unfenced code
	// wrapped, checkbox items rewritten.
	Text string
}

// Pipeline memoizes extraction results. The same response body is processed
// repeatedly as the UI re-renders a session, and chart detection is the
// expensive part.
type Pipeline struct {
	cache *lru.Cache[string, Rendered]
}

// NewPipeline constructs a pipeline with a bounded extraction cache.
func NewPipeline(cacheSize int) *Pipeline {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, Rendered](cacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &Pipeline{cache: cache}
}

// Process runs the full presentation pipeline over a raw response.
func (p *Pipeline) Process(text string) Rendered {
	key := cacheKey(text)
	if cached, ok := p.cache.Get(key); ok {
		return cached
	}

	charts, display := Extract(text)
	display = EnsureCodeFences(display)
	display = RenderCheckboxes(display)

	rendered := Rendered{Charts: charts, Text: display}
	p.cache.Add(key, rendered)
	return rendered
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
