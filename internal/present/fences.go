package present

import (
	"regexp"
	"strings"
)

// codeKeywordRe marks lines that start like code even without indentation.
var codeKeywordRe = regexp.MustCompile(`^\s*(func |def |class |import |package |from \w+ import |var |const |let |return |if \(|for \(|public |private |#include\b|fn )`)

// EnsureCodeFences wraps fenced-code-like regions in text that lacks
// explicit fences. Model output frequently emits indented or
// keyword-prefixed code without backticks; wrapping it improves downstream
// markdown rendering. Text that already contains a fence is left alone.
func EnsureCodeFences(text string) string {
	if strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var out []string
	i := 0
	for i < len(lines) {
		if !looksLikeCode(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}

		// Collect the run, allowing blank lines inside as long as more code
		// follows.
		j := i
		for j < len(lines) {
			if looksLikeCode(lines[j]) {
				j++
				continue
			}
			if strings.TrimSpace(lines[j]) == "" && j+1 < len(lines) && looksLikeCode(lines[j+1]) {
				j++
				continue
			}
			break
		}

		block := lines[i:j]
		if len(block) < 2 {
			// Single stray line; not confident enough to fence it.
			out = append(out, lines[i])
			i++
			continue
		}

		out = append(out, "```"+guessLanguage(block))
		out = append(out, block...)
		out = append(out, "```")
		i = j
	}
	return strings.Join(out, "\n")
}

func looksLikeCode(line string) bool {
	if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
		return strings.TrimSpace(line) != ""
	}
	return codeKeywordRe.MatchString(line)
}

// guessLanguage picks a fence language from keyword hints; empty when
// nothing stands out.
func guessLanguage(block []string) string {
	joined := strings.Join(block, "\n")
	switch {
	case strings.Contains(joined, "package ") && strings.Contains(joined, "func "):
		return "go"
	case strings.Contains(joined, "def ") || strings.Contains(joined, "import ") && strings.Contains(joined, ":"):
		return "python"
	case strings.Contains(joined, "function ") || strings.Contains(joined, "const ") || strings.Contains(joined, "let "):
		return "javascript"
	case strings.Contains(joined, "#include"):
		return "c"
	case strings.Contains(joined, "fn ") && strings.Contains(joined, "->"):
		return "rust"
	default:
		return ""
	}
}

var checkboxRe = regexp.MustCompile(`(?m)^(\s*[-*] )\[( |x|X)\] `)

// RenderCheckboxes rewrites markdown task-list items with unicode boxes so
// they read as checkboxes in terminal output. The rendering is purely
// visual; nothing is persisted when a box is "checked".
func RenderCheckboxes(text string) string {
	return checkboxRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := checkboxRe.FindStringSubmatch(match)
		if sub[2] == " " {
			return sub[1] + "☐ "
		}
		return sub[1] + "☑ "
	})
}
