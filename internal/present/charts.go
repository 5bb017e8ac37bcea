// Package present separates structured chart payloads from prose in a raw
// response string and normalizes them for rendering. Detection is a
// best-effort heuristic over model output: candidates are pre-cleaned with
// jsonrepair (comments, trailing commas) and anything that still fails to
// parse is skipped, never fatal.
package present

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const (
	chartMarkerStart = "CHART_JSON_START"
	chartMarkerEnd   = "CHART_JSON_END"
)

// Chart is one extracted chart payload.
type Chart struct {
	// Type is "bar", "line" or "pie"; empty when the payload did not
	// declare one (marker-wrapped payloads may omit it).
	Type    string
	Title   string
	Payload map[string]any
}

var chartTypes = map[string]bool{"bar": true, "line": true, "pie": true}

// labeledPrefixRe matches prefixes like "Bar Chart JSON Output:".
var labeledPrefixRe = regexp.MustCompile(`(?i)\b(bar|line|pie)\s+chart\s+json(?:\s+output)?\s*:\s*`)

// span is a half-open byte range in the source text slated for removal.
type span struct {
	start, end int
	chart      Chart
}

// Extract detects embedded chart payloads and returns them along with the
// display text with the payload substrings stripped. Detection runs in
// priority order: explicit markers, a bracketed single-object array, a
// labeled prefix, then any balanced JSON object that declares a chart type.
func Extract(text string) ([]Chart, string) {
	var spans []span
	spans = append(spans, markerSpans(text)...)
	spans = append(spans, arraySpans(text, spans)...)
	spans = append(spans, labeledSpans(text, spans)...)
	spans = append(spans, bareObjectSpans(text, spans)...)

	if len(spans) == 0 {
		return nil, text
	}

	// Spans were collected in priority order; re-sort by position for a
	// single left-to-right rebuild of the display text.
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[j].start < spans[i].start {
				spans[i], spans[j] = spans[j], spans[i]
			}
		}
	}

	charts := make([]Chart, 0, len(spans))
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		// Spans are vetted for overlap at collection time; a span starting
		// inside already-consumed text is dropped rather than sliced out of
		// range.
		if sp.start < last {
			continue
		}
		charts = append(charts, sp.chart)
		b.WriteString(text[last:sp.start])
		last = sp.end
		// Swallow one newline trailing the removed block so stripping a
		// full-line payload does not leave a blank line behind.
		if last < len(text) && text[last] == '\n' {
			last++
		}
	}
	b.WriteString(text[last:])

	display := b.String()
	display = regexp.MustCompile(`\n{3,}`).ReplaceAllString(display, "\n\n")
	return charts, strings.TrimSpace(display)
}

// markerSpans finds CHART_JSON_START/CHART_JSON_END blocks. Marker-wrapped
// payloads are trusted chart objects and do not need a type field.
func markerSpans(text string) []span {
	var spans []span
	offset := 0
	for {
		rest := text[offset:]
		start := strings.Index(rest, chartMarkerStart)
		if start == -1 {
			return spans
		}
		end := strings.Index(rest[start:], chartMarkerEnd)
		if end == -1 {
			return spans
		}
		body := rest[start+len(chartMarkerStart) : start+end]
		absStart := offset + start
		absEnd := offset + start + end + len(chartMarkerEnd)
		offset = absEnd

		payload, ok := parseChartJSON(body)
		if !ok {
			continue
		}
		spans = append(spans, span{start: absStart, end: absEnd, chart: chartFromPayload(payload)})
	}
}

// arraySpans finds bracketed single-object JSON arrays whose element is a
// chart payload.
func arraySpans(text string, taken []span) []span {
	var spans []span
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		end, ok := balancedEnd(text, i, '[', ']')
		if !ok || overlaps(taken, i, end) {
			continue
		}
		var elements []map[string]any
		cleaned, err := jsonrepair.JSONRepair(text[i:end])
		if err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(cleaned), &elements); err != nil || len(elements) != 1 {
			continue
		}
		if !isChartPayload(elements[0]) {
			continue
		}
		spans = append(spans, span{start: i, end: end, chart: chartFromPayload(elements[0])})
		i = end - 1
	}
	return spans
}

// labeledSpans finds "<Type> Chart JSON Output:" prefixes followed by a
// JSON object. The prefix is stripped together with the payload.
func labeledSpans(text string, taken []span) []span {
	var spans []span
	for _, loc := range labeledPrefixRe.FindAllStringSubmatchIndex(text, -1) {
		start, prefixEnd := loc[0], loc[1]
		objStart := prefixEnd
		if objStart >= len(text) || text[objStart] != '{' {
			continue
		}
		end, ok := balancedEnd(text, objStart, '{', '}')
		if !ok || overlaps(taken, start, end) || overlaps(spans, start, end) {
			continue
		}
		payload, ok := parseChartJSON(text[objStart:end])
		if !ok {
			continue
		}
		chart := chartFromPayload(payload)
		if chart.Type == "" {
			chart.Type = strings.ToLower(text[loc[2]:loc[3]])
		}
		spans = append(spans, span{start: start, end: end, chart: chart})
	}
	return spans
}

// bareObjectSpans scans for any balanced brace-delimited object that parses
// and declares a recognized chart type plus a data field.
func bareObjectSpans(text string, taken []span) []span {
	var spans []span
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := balancedEnd(text, i, '{', '}')
		if !ok || overlaps(taken, i, end) {
			continue
		}
		payload, ok := parseChartJSON(text[i:end])
		if !ok || !isChartPayload(payload) {
			continue
		}
		spans = append(spans, span{start: i, end: end, chart: chartFromPayload(payload)})
		i = end - 1
	}
	return spans
}

// overlaps reports whether [start,end) intersects any taken span. Candidates
// must be checked against their full range: a later-pass candidate can
// enclose an earlier-pass span entirely (a chart object whose string field
// embeds a marker block), and claiming both would corrupt the rebuild.
func overlaps(taken []span, start, end int) bool {
	for _, sp := range taken {
		if start < sp.end && sp.start < end {
			return true
		}
	}
	return false
}

// balancedEnd returns the index one past the matching close delimiter,
// honoring JSON string literals and escapes.
func balancedEnd(text string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// parseChartJSON pre-cleans a candidate (comments, trailing commas, single
// quotes) and parses it into an object. Failures mean "not a chart here".
func parseChartJSON(candidate string) (map[string]any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate[0] != '{' {
		return nil, false
	}
	cleaned, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// isChartPayload requires an explicit recognized type plus chartable data.
func isChartPayload(payload map[string]any) bool {
	if !chartTypes[payloadType(payload)] {
		return false
	}
	if _, ok := payload["data"]; ok {
		return true
	}
	if _, ok := payload["series"]; ok {
		return true
	}
	if _, ok := payload["datasets"]; ok {
		return true
	}
	return false
}

func payloadType(payload map[string]any) string {
	for _, key := range []string{"type", "chart_type", "chartType"} {
		if v, ok := payload[key].(string); ok {
			return strings.ToLower(v)
		}
	}
	return ""
}

func chartFromPayload(payload map[string]any) Chart {
	chart := Chart{Type: payloadType(payload), Payload: payload}
	if title, ok := payload["title"].(string); ok {
		chart.Title = title
	}
	return chart
}

// Dataset flattens the payload into a header row plus data rows, converting
// label/dataset-style payloads into a row-oriented source table.
func (c Chart) Dataset() [][]any {
	if c.Payload == nil {
		return nil
	}

	// Highcharts style: xAxis.categories + series [{name, data}].
	if series, ok := anySlice(c.Payload["series"]); ok {
		categories := categoriesOf(c.Payload)
		return seriesDataset(categories, series)
	}

	// chart.js style: labels + datasets [{label, data}].
	if datasets, ok := anySlice(c.Payload["datasets"]); ok {
		labels, _ := stringSlice(c.Payload["labels"])
		return datasetsDataset(labels, datasets)
	}

	switch data := c.Payload["data"].(type) {
	case []any:
		return rowsDataset(c.Payload, data)
	case map[string]any:
		// Nested {labels, datasets} or {categories, series}.
		nested := Chart{Payload: data}
		return nested.Dataset()
	}
	return nil
}

func categoriesOf(payload map[string]any) []string {
	if axis, ok := payload["xAxis"].(map[string]any); ok {
		if categories, ok := stringSlice(axis["categories"]); ok {
			return categories
		}
	}
	if categories, ok := stringSlice(payload["categories"]); ok {
		return categories
	}
	if labels, ok := stringSlice(payload["labels"]); ok {
		return labels
	}
	return nil
}

func seriesDataset(categories []string, series []any) [][]any {
	header := []any{"Category"}
	var columns [][]any
	for i, entry := range series {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["name"].(string)
		if name == "" {
			name = fmt.Sprintf("Series %d", i+1)
		}
		values, _ := anySlice(obj["data"])
		header = append(header, name)
		columns = append(columns, values)
	}

	rowCount := len(categories)
	for _, col := range columns {
		if len(col) > rowCount {
			rowCount = len(col)
		}
	}

	rows := [][]any{header}
	for i := 0; i < rowCount; i++ {
		row := make([]any, 0, len(columns)+1)
		if i < len(categories) {
			row = append(row, categories[i])
		} else {
			row = append(row, fmt.Sprintf("#%d", i+1))
		}
		for _, col := range columns {
			if i < len(col) {
				row = append(row, col[i])
			} else {
				row = append(row, nil)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func datasetsDataset(labels []string, datasets []any) [][]any {
	// Same row-oriented shape as series payloads; dataset "label" plays the
	// series "name" role.
	series := make([]any, 0, len(datasets))
	for _, entry := range datasets {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		converted := map[string]any{"data": obj["data"]}
		if label, ok := obj["label"].(string); ok {
			converted["name"] = label
		}
		series = append(series, converted)
	}
	return seriesDataset(labels, series)
}

// rowsDataset handles "data" given directly: arrays of rows, of
// {name,value} objects, or of scalars paired with top-level labels.
func rowsDataset(payload map[string]any, data []any) [][]any {
	if len(data) == 0 {
		return nil
	}

	switch data[0].(type) {
	case []any:
		rows := make([][]any, 0, len(data))
		for _, row := range data {
			if cells, ok := anySlice(row); ok {
				rows = append(rows, cells)
			}
		}
		return rows
	case map[string]any:
		rows := [][]any{{"Category", "Value"}}
		for _, entry := range data {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name, _ := obj["name"].(string)
			value := obj["value"]
			if value == nil {
				value = obj["y"]
			}
			rows = append(rows, []any{name, value})
		}
		return rows
	default:
		labels := categoriesOf(payload)
		rows := [][]any{{"Category", "Value"}}
		for i, value := range data {
			label := fmt.Sprintf("#%d", i+1)
			if i < len(labels) {
				label = labels[i]
			}
			rows = append(rows, []any{label, value})
		}
		return rows
	}
}

func anySlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
