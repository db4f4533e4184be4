// Package compare compares the content of paired files.
//
// Full mode produces the concatenated unified diff of every pair. Fast mode
// answers "do the trees differ?" and stops at the first difference unless a
// caller supplied policy decides to skip it.
package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sergcen/npm-package-diff/manifest"
)

// Hooks is the caller supplied policy for fast mode. Hooks receive copies
// and run on the caller's goroutine one at a time.
type Hooks struct {
	// BeforeAll runs once before scanning. Returning false ends the
	// comparison as different without scanning.
	BeforeAll func(pairs []manifest.PathPair) bool

	// OnFailure runs for each differing pair. Returning true skips the pair
	// and resumes the scan at the next one.
	OnFailure func(pair manifest.PathPair) bool
}

// Stop records where a fast scan ended on an unskipped difference.
type Stop struct {
	Index int
	Pair  manifest.PathPair
}

// FastResult is the outcome of a fast scan.
type FastResult struct {
	// Same is true when no unskipped difference was found.
	Same bool
	// Stop is set when the scan ended early on a difference.
	Stop *Stop
	// Checked counts pairs that were compared.
	Checked int
	// Skipped holds the indexes OnFailure chose to skip.
	Skipped []int
}

// FullResult is the outcome of a full comparison.
type FullResult struct {
	// Report is the concatenated unified diff; empty when streamed.
	Report string
	// Differing counts pairs that produced diff output.
	Differing int
}

// Comparator compares path pairs with a Differ.
type Comparator struct {
	differ      Differ
	concurrency int
	progress    func(done, total int)
	logger      *slog.Logger
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithConcurrency bounds the number of concurrent diffs in full mode.
func WithConcurrency(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithProgress sets a callback invoked after each pair completes.
func WithProgress(fn func(done, total int)) Option {
	return func(c *Comparator) { c.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Comparator) { c.logger = logger }
}

// New creates a Comparator.
func New(differ Differ, opts ...Option) *Comparator {
	c := &Comparator{
		differ:      differ,
		concurrency: runtime.NumCPU(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Full diffs every pair and returns the concatenated report in pair order.
//
// With a non-nil stream the report is written to it in pair order as pairs
// complete and the returned report is empty. The first diff failure is
// returned after in-flight diffs finish.
func (c *Comparator) Full(ctx context.Context, pairs []manifest.PathPair, stream io.Writer) (FullResult, error) {
	start := time.Now()
	var (
		mu        sync.Mutex
		results   = make([]*bytes.Buffer, len(pairs))
		next      int
		done      int
		differing int
		report    strings.Builder
		writeErr  error
	)
	var out io.Writer = &report
	if stream != nil {
		out = stream
	}

	// flush emits completed results in pair order. Callers hold mu.
	flush := func() {
		for next < len(results) && results[next] != nil {
			if writeErr == nil {
				_, writeErr = out.Write(results[next].Bytes())
			}
			results[next] = nil
			next++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			var buf bytes.Buffer
			err := c.unified(ctx, pair, &buf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				return err
			}
			if buf.Len() > 0 {
				differing++
			}
			results[i] = &buf
			flush()
			done++
			if c.progress != nil {
				c.progress(done, len(pairs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return FullResult{}, err
	}
	if writeErr != nil {
		return FullResult{}, writeErr
	}

	c.logger.Info("diffing content", "pairs", len(pairs), "differing", differing, "duration", time.Since(start))
	return FullResult{Report: report.String(), Differing: differing}, nil
}

// devNull names the absent side of a one-sided pair in diff headers.
const devNull = "/dev/null"

// unified always reports a pair present on one side only, including an empty
// file the Differ writes nothing for.
func (c *Comparator) unified(ctx context.Context, pair manifest.PathPair, w io.Writer) error {
	oldOK, newOK := exists(pair.Old), exists(pair.New)
	switch {
	case !oldOK && !newOK:
		return nil
	case oldOK && newOK:
		return c.differ.Unified(ctx, pair.Old, pair.New, w)
	}

	var buf bytes.Buffer
	if err := c.differ.Unified(ctx, pair.Old, pair.New, &buf); err != nil {
		return err
	}
	if buf.Len() == 0 {
		oldLabel, newLabel := pair.Old, pair.New
		if oldOK {
			newLabel = devNull
		} else {
			oldLabel = devNull
		}
		fmt.Fprintf(&buf, "--- %s\n+++ %s\n", oldLabel, newLabel)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Fast scans pairs in order and stops at the first difference hooks do not
// skip.
func (c *Comparator) Fast(ctx context.Context, pairs []manifest.PathPair, hooks Hooks) (FastResult, error) {
	if len(pairs) == 0 {
		return FastResult{Same: true}, nil
	}
	if hooks.BeforeAll != nil && !hooks.BeforeAll(slices.Clone(pairs)) {
		c.logger.Debug("comparison rejected before scan", "pairs", len(pairs))
		return FastResult{Same: false}, nil
	}

	var result FastResult
	for i := 0; i < len(pairs); i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		same, err := c.same(ctx, pairs[i])
		if err != nil {
			return result, err
		}
		result.Checked++
		if c.progress != nil {
			c.progress(i+1, len(pairs))
		}
		if same {
			continue
		}
		if hooks.OnFailure != nil && hooks.OnFailure(pairs[i]) {
			c.logger.Debug("difference skipped", "path", pairs[i].Rel)
			result.Skipped = append(result.Skipped, i)
			continue
		}
		c.logger.Debug("difference found", "path", pairs[i].Rel, "index", i)
		result.Stop = &Stop{Index: i, Pair: pairs[i]}
		return result, nil
	}
	result.Same = true
	return result, nil
}

// same treats a pair present on one side only as different without
// consulting the Differ.
func (c *Comparator) same(ctx context.Context, pair manifest.PathPair) (bool, error) {
	oldOK, newOK := exists(pair.Old), exists(pair.New)
	switch {
	case oldOK && newOK:
		return c.differ.Same(ctx, pair.Old, pair.New)
	case oldOK != newOK:
		return false, nil
	default:
		return true, nil
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
