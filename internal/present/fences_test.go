package present

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCodeFencesWrapsIndentedRun(t *testing.T) {
	t.Parallel()

	text := "Example:\n    x := compute()\n    return x\nDone."
	out := EnsureCodeFences(text)

	assert.Contains(t, out, "```")
	assert.True(t, strings.Index(out, "```") < strings.Index(out, "x := compute()"))
}

func TestEnsureCodeFencesLeavesFencedTextAlone(t *testing.T) {
	t.Parallel()

	text := "Already fenced:\n```go\nfunc main() {}\n```"
	assert.Equal(t, text, EnsureCodeFences(text))
}

func TestEnsureCodeFencesIgnoresSingleLine(t *testing.T) {
	t.Parallel()

	text := "One stray line:\n    indented once\nback to prose"
	assert.Equal(t, text, EnsureCodeFences(text))
}

func TestEnsureCodeFencesGuessesGo(t *testing.T) {
	t.Parallel()

	text := "package main\nfunc main() {\n\tprintln(1)\n}"
	out := EnsureCodeFences(text)
	assert.Contains(t, out, "```go")
}

func TestEnsureCodeFencesGuessesPython(t *testing.T) {
	t.Parallel()

	text := "def add(a, b):\n    return a + b"
	out := EnsureCodeFences(text)
	assert.Contains(t, out, "```python")
}

func TestRenderCheckboxes(t *testing.T) {
	t.Parallel()

	text := "- [ ] open item\n- [x] closed item\n  - [X] nested closed\nnot a - [ ] checkbox"
	out := RenderCheckboxes(text)

	assert.Contains(t, out, "- ☐ open item")
	assert.Contains(t, out, "- ☑ closed item")
	assert.Contains(t, out, "- ☑ nested closed")
	assert.Contains(t, out, "not a - [ ] checkbox", "mid-line brackets stay untouched")
}

func TestPipelineProcessAndCache(t *testing.T) {
	t.Parallel()

	p := NewPipeline(4)
	text := "Intro\nCHART_JSON_START{\"data\":[[\"a\",1]]}CHART_JSON_END\n- [ ] todo"

	first := p.Process(text)
	assert.Len(t, first.Charts, 1)
	assert.Equal(t, "Intro\n- ☐ todo", first.Text)

	second := p.Process(text)
	assert.Equal(t, first, second, "repeat processing is served from cache")
}
