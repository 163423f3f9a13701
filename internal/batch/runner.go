// Package batch runs the pipeline over JSONL question files.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/datadesk/retail-copilot/internal/domain"
	"github.com/datadesk/retail-copilot/internal/trace"
)

// Answerer answers a single question. Implementations must be safe for
// concurrent use; the runner calls it from multiple workers.
type Answerer interface {
	Answer(ctx context.Context, q domain.Question, rec *trace.Recorder) domain.Answer
}

// Options control a batch run.
type Options struct {
	// Workers bounds concurrent questions. Values below 1 mean serial.
	Workers int
	// FloorConfidence is assigned to records the runner could not parse.
	FloorConfidence float64
}

// Runner reads questions from a JSONL stream, answers them
// concurrently, and writes one JSONL answer per input line in input
// order.
type Runner struct {
	answerer Answerer
	sink     trace.Sink
	logger   *slog.Logger
	opts     Options
}

// NewRunner wires a batch runner. A nil logger falls back to
// slog.Default; a nil sink disables trace persistence.
func NewRunner(answerer Answerer, sink trace.Sink, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{answerer: answerer, sink: sink, logger: logger, opts: opts}
}

// inputRecord is one JSONL question line.
type inputRecord struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

// outputRecord is one JSONL answer line.
type outputRecord struct {
	ID          string   `json:"id"`
	FinalAnswer any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
}

// Run processes every line of in and writes the answers to out. Blank
// lines are skipped; a malformed line produces a degraded answer record
// instead of aborting the batch. The only errors returned are I/O
// failures on the streams and context cancellation.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines, err := readLines(in)
	if err != nil {
		return fmt.Errorf("read batch input: %w", err)
	}

	results := make([]outputRecord, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.processLine(gctx, line)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, rec := range results {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write batch output: %w", err)
		}
	}
	return w.Flush()
}

// batchLine is one non-blank input line with its 1-based line number.
type batchLine struct {
	no   int
	text string
}

func readLines(in io.Reader) ([]batchLine, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []batchLine
	no := 0
	for sc.Scan() {
		no++
		text := sc.Text()
		if no == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, batchLine{no: no, text: text})
	}
	return lines, sc.Err()
}

func (r *Runner) processLine(ctx context.Context, line batchLine) outputRecord {
	var in inputRecord
	if err := json.Unmarshal([]byte(line.text), &in); err != nil {
		r.logger.Warn("malformed batch line",
			"line", line.no,
			"error", domain.WrapCopilotError(domain.ErrBatchLine.Code, domain.ErrBatchLine.Message, err),
		)
		return r.degraded(line.no, "Input line could not be parsed as JSON.")
	}
	if in.ID == "" {
		in.ID = fmt.Sprintf("line%d", line.no)
	}
	if strings.TrimSpace(in.Question) == "" {
		return outputRecord{
			ID:          in.ID,
			Confidence:  r.opts.FloorConfidence,
			Explanation: "Input record has no question text.",
			Citations:   []string{},
		}
	}

	rec := trace.NewRecorder(in.ID, r.sink, r.logger)
	ans := r.answerer.Answer(ctx, domain.Question{
		ID:         in.ID,
		Text:       in.Question,
		FormatHint: in.FormatHint,
	}, rec)

	citations := ans.Citations
	if citations == nil {
		citations = []string{}
	}
	return outputRecord{
		ID:          ans.ID,
		FinalAnswer: ans.Value,
		SQL:         ans.SQL,
		Confidence:  ans.Confidence,
		Explanation: ans.Explanation,
		Citations:   citations,
	}
}

func (r *Runner) degraded(lineNo int, why string) outputRecord {
	return outputRecord{
		ID:          fmt.Sprintf("line%d", lineNo),
		Confidence:  r.opts.FloorConfidence,
		Explanation: why,
		Citations:   []string{},
	}
}
