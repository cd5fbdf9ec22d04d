// Package batch converts many documents concurrently. Every document is
// independent: a bounded pool of workers converts them, each under its own
// deadline, and one document's failure never stops the others.
package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
	"github.com/FocuswithJustin/annotconv/internal/logging"
)

// Status represents the state of one document in a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether s is a terminal status.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one document to convert.
type Job struct {
	// Name identifies the job in results, usually the input file name.
	Name string
	From string
	To   string
	Data []byte
	// Text is the document text for formats that do not carry it.
	Text string
	// Tokens is an optional CoNLL-U token source.
	Tokens []byte
	// DocumentID overrides the id found in the input.
	DocumentID string
}

// Options configure a run.
type Options struct {
	// Workers bounds concurrency. Zero means runtime.NumCPU().
	Workers int
	// Timeout is the per-document deadline. Zero means none.
	Timeout time.Duration
	// RunID tags every result. A new uuid is generated when empty.
	RunID    string
	SourceDB string
	// Repair consolidates non-canonical spans and merges chains that share
	// a mention before writing.
	Repair bool
	// Clean deletes chains with fewer than two mentions before writing.
	Clean bool
	// Lenient reads non-canonical spans without repairing them.
	Lenient bool
	// Write configures the target codec.
	Write plugins.WriteOptions
}

// Result is the outcome of one job. Results are returned in job order.
type Result struct {
	RunID      string
	Name       string
	DocumentID string
	Status     Status
	Err        error
	Output     []byte
	Loss       *ir.LossReport

	// Fingerprint identifies the converted document independent of
	// annotation ids; OutputHash is the BLAKE3 hash of Output.
	Fingerprint string
	OutputHash  string

	Annotations int
	Chains      int
	Mentions    int
	SpanRepairs int
	ChainMerges int

	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration is the wall time spent on the job.
func (r *Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary counts results by status.
type Summary struct {
	Completed int
	Failed    int
	Cancelled int
}

// Summarize counts results by terminal status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// convertFn is injectable for testing deadlines and cancellation.
var convertFn = Convert

// Run converts jobs with a bounded worker pool and returns one result per
// job in input order. Jobs not yet started when ctx is cancelled are
// reported as cancelled.
func Run(ctx context.Context, jobs []Job, opts Options) []Result {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i] = Result{RunID: opts.RunID, Name: job.Name, Status: StatusPending}
	}

	ctx = logging.WithRunID(ctx, opts.RunID)
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = runJob(ctx, jobs[i], opts)
			}
		}()
	}

feed:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	for i := range results {
		if results[i].Status == StatusPending {
			results[i].Status = StatusCancelled
			results[i].Err = ctx.Err()
		}
	}

	s := Summarize(results)
	logging.InfoContext(ctx, "batch_complete",
		"documents", len(jobs),
		"completed", s.Completed,
		"failed", s.Failed,
		"cancelled", s.Cancelled)
	return results
}

type outcome struct {
	conv *Conversion
	err  error
}

// runJob converts one job under its deadline. A conversion still running
// when the deadline passes is abandoned and its result discarded.
func runJob(ctx context.Context, job Job, opts Options) Result {
	res := Result{
		RunID:      opts.RunID,
		Name:       job.Name,
		DocumentID: job.DocumentID,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	ctx = logging.WithDocumentID(ctx, job.Name)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		res.Status = StatusCancelled
		res.Err = err
		res.CompletedAt = res.StartedAt
		return res
	}

	convert := convertFn
	done := make(chan outcome, 1)
	go func() {
		conv, err := convert(job, opts)
		done <- outcome{conv, err}
	}()

	select {
	case <-ctx.Done():
		res.Status = StatusCancelled
		res.Err = ctx.Err()
		logging.DocumentFailure(ctx, "convert", res.Err)
	case out := <-done:
		res.fill(out.conv)
		if out.err != nil {
			res.Status = StatusFailed
			res.Err = out.err
			logging.DocumentFailure(ctx, "convert", out.err)
		} else {
			res.Status = StatusCompleted
		}
	}
	res.CompletedAt = time.Now().UTC()
	return res
}

func (r *Result) fill(conv *Conversion) {
	if conv == nil || conv.Document == nil {
		return
	}
	d := conv.Document
	if r.DocumentID == "" {
		r.DocumentID = d.SourceID
	}
	counts := d.CountByType()
	r.Annotations = d.Len()
	r.Chains = counts[ir.TypeIdentityChain]
	r.Mentions = counts[ir.TypeNounPhrase]
	r.SpanRepairs = conv.SpanRepairs
	r.ChainMerges = conv.ChainMerges
	r.Fingerprint = ir.Fingerprint(d)
	r.Output = conv.Output
	r.Loss = conv.Loss
	if conv.Output != nil {
		r.OutputHash = ir.Blake3Hash(conv.Output)
	}
}
