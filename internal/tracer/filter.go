package tracer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Heman10x-NGU/locktrace/internal/cscope"
)

// lookupParallelism bounds concurrent definition queries during
// directory filtering.
const lookupParallelism = 8

// filterPaths applies the exclusion post-filter: a chain containing an
// excluded function, or a function whose definition file lies under an
// excluded directory, is dropped wholesale. Partial suppression of a
// single hop is intentionally unsupported.
func (t *Tracer) filterPaths(ctx context.Context, paths []Path, opts Options) ([]Path, error) {
	if len(opts.ExcludeFunctions) > 0 {
		excluded := make(map[string]bool, len(opts.ExcludeFunctions))
		for _, fn := range opts.ExcludeFunctions {
			excluded[fn] = true
		}
		kept := paths[:0]
		for _, p := range paths {
			hit := false
			for _, fn := range p.Functions {
				if excluded[fn] {
					hit = true
					break
				}
			}
			if !hit {
				kept = append(kept, p)
			}
		}
		paths = kept
	}

	if len(opts.ExcludeDirectories) == 0 || len(paths) == 0 {
		return paths, nil
	}

	files, err := t.definitionFiles(ctx, paths)
	if err != nil {
		return nil, err
	}

	kept := paths[:0]
	for _, p := range paths {
		hit := false
		for _, fn := range p.Functions {
			if fileUnderAny(files[fn], opts.ExcludeDirectories) {
				hit = true
				break
			}
		}
		if !hit {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

// definitionFiles resolves the definition file of every function
// appearing in paths. Lookups fan out concurrently; functions without a
// definition map to "".
func (t *Tracer) definitionFiles(ctx context.Context, paths []Path) (map[string]string, error) {
	files := make(map[string]string)
	for _, p := range paths {
		for _, fn := range p.Functions {
			files[fn] = ""
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupParallelism)
	for fn := range files {
		g.Go(func() error {
			def, err := t.src.Definition(gctx, fn)
			if err != nil {
				if errors.Is(err, cscope.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			files[fn] = def.File
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// fileUnderAny reports whether file lies under any of the named
// directories, matched as a path prefix or interior path segment.
func fileUnderAny(file string, dirs []string) bool {
	if file == "" {
		return false
	}
	for _, dir := range dirs {
		dir = strings.Trim(dir, "/")
		if dir == "" {
			continue
		}
		if strings.HasPrefix(file, dir+"/") || strings.Contains(file, "/"+dir+"/") {
			return true
		}
	}
	return false
}
