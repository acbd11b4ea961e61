package locks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
)

// Operation is one textual lock acquire or release.
type Operation struct {
	// Lock is the concrete matched identifier (spin_lock_bh,
	// rcu_read_lock, rtnl_lock), never a generic placeholder.
	Lock     string
	Class    Class
	Action   Action
	Function string
	File     string
	Line     int
}

// Scanner extracts ordered lock operations from function source text.
type Scanner struct {
	src       cscope.Source
	sourceDir string
	registry  *Registry
}

func NewScanner(src cscope.Source, sourceDir string, registry *Registry) *Scanner {
	return &Scanner{src: src, sourceDir: sourceDir, registry: registry}
}

// Scan returns the lock operations of function in source-text order.
//
// known=false means no lock information is available for the function:
// its definition is missing from the index or its source file could not
// be read. That is weaker than "no locks held" and callers must not
// confuse the two. Only query failures are returned as errors.
func (s *Scanner) Scan(ctx context.Context, function string) (ops []Operation, known bool, err error) {
	def, err := s.src.Definition(ctx, function)
	if err != nil {
		if errors.Is(err, cscope.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	lines, firstLine, err := s.readBody(def)
	if err != nil {
		return nil, false, nil
	}

	for i, line := range lines {
		for _, m := range s.registry.matchLine(line) {
			ops = append(ops, Operation{
				Lock:     m.name,
				Class:    m.class,
				Action:   m.action,
				Function: function,
				File:     def.File,
				Line:     firstLine + i,
			})
		}
	}
	return ops, true, nil
}

// braceWindow bounds how far past the definition line the opening brace
// may appear. A definition with no brace inside the window is a
// prototype or a macro-generated stub; scanning on would attribute
// later functions' operations to this one.
const braceWindow = 10

// readBody reads the function body starting at the definition line,
// ending when braces balance. Braces inside strings or comments can
// skew the range; that is within the textual model's tolerance.
func (s *Scanner) readBody(def cscope.Def) ([]string, int, error) {
	path := def.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.sourceDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var body []string
	depth, opened := 0, false
	lineno := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineno++
		if lineno < def.Line {
			continue
		}
		line := sc.Text()
		body = append(body, line)
		for _, c := range line {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			case ';':
				// A statement terminator before any opening brace means
				// the index pointed at a prototype, not a body.
				if !opened {
					return nil, 0, fmt.Errorf("no function body at %s:%d", path, def.Line)
				}
			}
		}
		if opened && depth <= 0 {
			break
		}
		if !opened && lineno-def.Line >= braceWindow {
			return nil, 0, fmt.Errorf("no function body at %s:%d", path, def.Line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	if !opened {
		return nil, 0, fmt.Errorf("no function body at %s:%d", path, def.Line)
	}
	return body, def.Line, nil
}
