package geminidev

import (
	"strings"
)

// CodeBlock is a fenced code segment found in a model response. Language is
// the tag written after the opening fence and may be empty.
type CodeBlock struct {
	Language string
	Content  string
}

// ExtractCode picks the code block to save from a response. With a language,
// the first block tagged with it (case-insensitively) wins; when no block
// carries that tag, or no language is given, the first block is returned.
// Callers can compare the returned Language against the requested one to
// tell a real match from the fallback. ok is false when the text holds no
// fenced blocks at all.
func ExtractCode(text string, language string) (block CodeBlock, ok bool) {
	blocks := CodeBlocks(text)
	if len(blocks) == 0 {
		return CodeBlock{}, false
	}
	if language != "" {
		for _, b := range blocks {
			if strings.EqualFold(b.Language, language) {
				return b, true
			}
		}
	}
	return blocks[0], true
}

// CodeBlocks returns every closed fenced block in text, in document order,
// with the content trimmed of surrounding whitespace. A fence left open at
// the end of the text is ignored.
func CodeBlocks(text string) []CodeBlock {
	var (
		blocks []CodeBlock
		open   fence
		inside bool
		body   []string
	)
	for _, line := range splitLines(text) {
		if !inside {
			if f, ok := openFence(line); ok {
				open, inside, body = f, true, nil
			}
			continue
		}
		if open.closedBy(line) {
			blocks = append(blocks, CodeBlock{
				Language: open.tag,
				Content:  strings.TrimSpace(strings.Join(body, "\n")),
			})
			inside = false
			continue
		}
		body = append(body, line)
	}
	return blocks
}

// fence describes an opening fence line: ``` or ~~~ (three or more), with an
// optional tag taken from the first word of the info string.
type fence struct {
	char byte
	size int
	tag  string
}

func openFence(line string) (fence, bool) {
	s := strings.TrimLeft(strings.TrimSuffix(line, "\r"), " \t")
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return fence{}, false
	}
	c := s[0]
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(s[n:])
	// ```code``` on a single line is inline code, not a block
	if c == '`' && strings.ContainsRune(info, '`') {
		return fence{}, false
	}
	f := fence{char: c, size: n}
	if fields := strings.Fields(info); len(fields) > 0 {
		f.tag = fields[0]
	}
	return f, true
}

// closedBy reports whether line is a closing fence for f: only fence
// characters of the same kind, at least as many as the opener.
func (f fence) closedBy(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) < f.size {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != f.char {
			return false
		}
	}
	return true
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
