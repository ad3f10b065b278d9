// Package parser streams a log file line by line, runs the extractor on
// every line and hands the results to a persistence sink in file order.
package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/PhilHem/log-sentinel/backend/extractor"
)

const (
	DefaultMaxLineSize = 1024 * 1024
	DefaultBatchSize   = 500
)

// ErrLineTooLong is returned when a line exceeds Options.MaxLineSize.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Record is one input line with the fields extracted from it.
type Record struct {
	Line   int // 1-based
	Raw    string
	Fields extractor.Fields
}

// Sink persists records. Batches arrive in file order and are never
// re-delivered.
type Sink interface {
	Write(ctx context.Context, batch []Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch []Record) error

func (f SinkFunc) Write(ctx context.Context, batch []Record) error { return f(ctx, batch) }

type Options struct {
	MaxLineSize int
	BatchSize   int
}

func (o Options) withDefaults() Options {
	if o.MaxLineSize <= 0 {
		o.MaxLineSize = DefaultMaxLineSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Lines returns a single-pass sequence over the lines of r. Line endings
// (\n or \r\n) are stripped; a final line without a newline is still
// yielded. A read failure is yielded once as a non-nil error and ends the
// sequence.
func Lines(r io.Reader, maxLineSize int) iter.Seq2[string, error] {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, min(64*1024, maxLineSize)), maxLineSize)
		for scanner.Scan() {
			if !yield(scanner.Text(), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("%w (%d bytes)", ErrLineTooLong, maxLineSize)
			}
			yield("", err)
		}
	}
}

// Parse reads r to the end and delivers one Record per line to sink,
// batching writes. It returns the number of lines read. On error the count
// covers the lines read so far; some of them may already be persisted.
func Parse(ctx context.Context, r io.Reader, sink Sink, opts Options) (int, error) {
	opts = opts.withDefaults()

	total := 0
	batch := make([]Record, 0, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Write(ctx, batch); err != nil {
			return fmt.Errorf("persist lines %d-%d: %w", batch[0].Line, batch[len(batch)-1].Line, err)
		}
		batch = make([]Record, 0, opts.BatchSize)
		return nil
	}

	for line, err := range Lines(r, opts.MaxLineSize) {
		if err != nil {
			return total, fmt.Errorf("read line %d: %w", total+1, err)
		}
		total++
		batch = append(batch, Record{
			Line:   total,
			Raw:    line,
			Fields: extractor.Extract(line),
		})
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
