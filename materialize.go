package geminidev

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileMarker starts a line naming the file whose content follows in the next
// fenced block.
const FileMarker = "FILE:"

// ErrParse is matched by the error returned when a response contains no
// FILE: blocks.
var ErrParse = errors.New("response does not follow the 'FILE: path' convention")

// ParseError reports a response in which no FILE: marker was followed by a
// fenced block.
type ParseError struct {
	Lines int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: no FILE: blocks found in %d lines", ErrParse, e.Lines)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// FileSpec is one file proposed by a model response.
type FileSpec struct {
	Path    string
	Content string
}

// SkipReason explains why a FileSpec was not written.
type SkipReason int

const (
	EmptyPath SkipReason = iota + 1
	PathEscape
	WriteError
)

func (r SkipReason) String() string {
	switch r {
	case EmptyPath:
		return "EmptyPath"
	case PathEscape:
		return "PathEscape"
	case WriteError:
		return "WriteError"
	default:
		return fmt.Sprintf("SkipReason(%d)", int(r))
	}
}

// Skip records a file that was not written.
type Skip struct {
	Path   string
	Reason SkipReason
	Err    error
}

func (s Skip) String() string {
	if s.Reason == WriteError && s.Err != nil {
		return fmt.Sprintf("%s: %s(%v)", s.Path, s.Reason, s.Err)
	}
	return fmt.Sprintf("%s: %s", s.Path, s.Reason)
}

// Result lists what a materialization wrote and what it skipped, both in
// document order.
type Result struct {
	Created []string
	Skipped []Skip
}

func (r *Result) skip(path string, reason SkipReason, err error) {
	r.Skipped = append(r.Skipped, Skip{Path: path, Reason: reason, Err: err})
}

// Materialize parses text into files and writes them under root. Only a
// response without any FILE: blocks fails the call; every per-file problem
// is recorded in the Result and the remaining files are still written.
func Materialize(text, root string) (Result, error) {
	specs, err := ParseProject(text)
	if err != nil {
		return Result{}, err
	}
	return WriteProject(specs, root), nil
}

type scanState int

const (
	seekingMarker scanState = iota
	seekingFence
	inBody
)

// ParseProject scans text for FILE: marker lines, each followed by a fenced
// block. Blank lines may sit between a marker and its fence; any other text
// drops the pending marker, and a second marker replaces it. Blocks left open
// at the end of the text are discarded.
func ParseProject(text string) ([]FileSpec, error) {
	var (
		specs []FileSpec
		state = seekingMarker
		path  string
		open  fence
		body  []string
	)
	lines := splitLines(text)
	for _, line := range lines {
		switch state {
		case seekingMarker:
			if p, ok := markerPath(line); ok {
				path, state = p, seekingFence
			}
		case seekingFence:
			if p, ok := markerPath(line); ok {
				path = p
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if f, ok := openFence(line); ok {
				open, body, state = f, nil, inBody
				continue
			}
			state = seekingMarker
		case inBody:
			if open.closedBy(line) {
				specs = append(specs, FileSpec{Path: path, Content: strings.Join(body, "\n")})
				state = seekingMarker
				continue
			}
			body = append(body, line)
		}
	}
	if len(specs) == 0 {
		return nil, &ParseError{Lines: len(lines)}
	}
	return specs, nil
}

func markerPath(line string) (string, bool) {
	s := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(s, FileMarker) {
		return "", false
	}
	return strings.TrimSpace(s[len(FileMarker):]), true
}

var errOutsideRoot = errors.New("path resolves outside the output directory")

// WriteProject writes specs under root, creating root first. Paths are
// resolved with symlinks followed and must stay inside root; later specs for
// the same path overwrite earlier ones. Files written before a failure are
// left in place.
func WriteProject(specs []FileSpec, root string) Result {
	var res Result
	base, rootErr := prepareRoot(root)
	for _, spec := range specs {
		rel := strings.TrimSpace(spec.Path)
		if rel == "" {
			res.skip(spec.Path, EmptyPath, nil)
			continue
		}
		if rootErr != nil {
			res.skip(rel, WriteError, rootErr)
			continue
		}
		target, err := containedPath(base, rel)
		if errors.Is(err, errOutsideRoot) {
			res.skip(rel, PathEscape, err)
			continue
		}
		if err != nil {
			res.skip(rel, WriteError, err)
			continue
		}
		if err := writeFile(target, strings.TrimSpace(spec.Content)); err != nil {
			res.skip(rel, WriteError, err)
			continue
		}
		res.Created = append(res.Created, rel)
	}
	return res
}

func prepareRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// containedPath joins rel onto base and resolves symlinks along the existing
// part of the result. The path must be base itself or lie beneath it.
func containedPath(base, rel string) (string, error) {
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", errOutsideRoot
	}
	target := filepath.Join(base, rel)
	if !within(base, target) {
		return "", errOutsideRoot
	}
	resolved, err := resolveExisting(target)
	if err != nil {
		return "", err
	}
	if !within(base, resolved) {
		return "", errOutsideRoot
	}
	return resolved, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and appends the components that do not exist yet.
func resolveExisting(path string) (string, error) {
	var missing []string
	cur := path
	for {
		_, err := os.Lstat(cur)
		if err == nil {
			real, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			return filepath.Join(append([]string{real}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
