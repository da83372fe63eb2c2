// Package codebase produces a bounded textual digest of a source tree that
// is sent along with a planning request.
package codebase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/planner/internal/logging"
)

const (
	defaultConcurrency = 8
	sniffLen           = 512
	truncatedMarker    = "\n... (truncated)\n"
)

// Options bounds what a Summarizer reads.
type Options struct {
	MaxFiles     int      // Files kept in the digest; <= 0 disables summarizing
	MaxFileBytes int      // Per-file byte budget; <= 0 keeps whole files
	Include      []string // Glob patterns; empty includes every file
	Exclude      []string // Glob patterns checked against files and directories
	Concurrency  int      // Parallel reads (default 8)
}

// Summarizer walks a tree and renders the files it selects.
type Summarizer struct {
	opts    Options
	include []glob.Glob
	exclude []glob.Glob
	logger  *logging.Logger
}

// NewSummarizer compiles the include and exclude patterns.
func NewSummarizer(opts Options, logger *logging.Logger) (*Summarizer, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	include, err := compile(opts.Include)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	exclude, err := compile(opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}

	return &Summarizer{
		opts:    opts,
		include: include,
		exclude: exclude,
		logger:  logger.With("component", "codebase"),
	}, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// matchAny reports whether rel or its base name matches one of globs, so a
// bare "*.go" selects files at any depth.
func matchAny(globs []glob.Glob, rel string) bool {
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

type entry struct {
	path      string
	content   []byte
	truncated bool
	binary    bool
}

// Summarize returns a digest of the files under root. Files appear in
// lexical path order under "### <path>" headings. A tree with no eligible
// files yields an empty string.
func (s *Summarizer) Summarize(ctx context.Context, root string) (string, error) {
	if s.opts.MaxFiles <= 0 {
		return "", nil
	}

	paths, err := s.collect(ctx, root)
	if err != nil {
		return "", err
	}

	entries := make([]entry, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := s.read(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				s.logger.Warn("skipping unreadable file", "path", rel, "error", err)
				return nil
			}
			e.path = rel
			entries[i] = e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, e := range entries {
		if e.path == "" || e.binary {
			continue
		}
		fmt.Fprintf(&b, "### %s\n```\n", e.path)
		b.Write(e.content)
		if e.truncated {
			b.WriteString(truncatedMarker)
		} else if len(e.content) > 0 && e.content[len(e.content)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString("```\n\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// collect returns at most MaxFiles slash-separated paths relative to root.
// Binary and unreadable files are skipped before they count against the cap.
func (s *Summarizer) collect(ctx context.Context, root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(s.exclude, rel) || matchAny(s.exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matchAny(s.exclude, rel) {
			return nil
		}
		if len(s.include) > 0 && !matchAny(s.include, rel) {
			return nil
		}

		binary, err := isBinary(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		if binary {
			return nil
		}

		paths = append(paths, rel)
		if len(paths) >= s.opts.MaxFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return paths, nil
}

// isBinary reports whether the first sniffLen bytes of path contain a NUL.
func isBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

func (s *Summarizer) read(path string) (entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return entry{}, err
	}
	defer f.Close()

	var r io.Reader = f
	limit := s.opts.MaxFileBytes
	if limit > 0 {
		r = io.LimitReader(f, int64(limit)+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return entry{}, err
	}

	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return entry{binary: true}, nil
	}

	e := entry{content: data}
	if limit > 0 && len(data) > limit {
		e.content = data[:limit]
		e.truncated = true
	}
	return e, nil
}
