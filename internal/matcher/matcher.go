package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"sieve/internal/logging"
	"sieve/internal/signature"
)

const (
	DefaultThreshold         = 70
	DefaultDurationTolerance = 120
	DefaultBatchSize         = 250
)

// Options tunes a match run.
type Options struct {
	// Threshold is the inclusive minimum score on the 0..100 scale.
	Threshold float64
	// DurationTolerance is the inclusive maximum duration difference in seconds.
	DurationTolerance float64
	// Workers is the scoring pool size. Zero selects runtime.NumCPU.
	Workers int
	// BatchSize is the number of pairs handed to a worker at once.
	BatchSize int
	RunID     string
	Logger    *slog.Logger
	// OnProgress runs on the writer goroutine after every finished batch.
	OnProgress func(Progress)
}

// Progress is a snapshot of a running match.
type Progress struct {
	Compared int64
	Total    int64
	Accepted int64
}

// Stats summarizes a finished or cancelled run.
type Stats struct {
	Records  int
	Pairs    int64
	Compared int64
	Accepted int64
	// Faults counts pairs that could not be scored. It stays zero unless the
	// record slice is inconsistent.
	Faults  int64
	Workers int
	Elapsed time.Duration
}

func (o Options) normalized() (Options, error) {
	switch {
	case math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > MaxScore:
		return o, fmt.Errorf("threshold must be within 0..%d, got %v", MaxScore, o.Threshold)
	case math.IsNaN(o.DurationTolerance) || o.DurationTolerance < 0:
		return o, fmt.Errorf("duration tolerance must be >= 0, got %v", o.DurationTolerance)
	case o.Workers < 0:
		return o, fmt.Errorf("workers must be >= 0, got %d", o.Workers)
	case o.BatchSize < 0:
		return o, fmt.Errorf("batch size must be >= 0, got %d", o.BatchSize)
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o, nil
}

type pair struct{ i, j int }

type batchResult struct {
	accepted []Candidate
	compared int
	faults   int
}

// Match scores every unordered pair of records and writes accepted pairs to
// sink. records is treated as an immutable snapshot for the whole run. When
// ctx is cancelled the run stops handing out pairs, drains in-flight batches
// into sink, and returns the partial stats together with ctx.Err().
func Match(ctx context.Context, records []signature.Record, opts Options, sink Sink) (Stats, error) {
	if sink == nil {
		return Stats{}, errors.New("matcher requires a sink")
	}
	opts, err := opts.normalized()
	if err != nil {
		return Stats{}, err
	}

	logger := logging.NewComponentLogger(opts.Logger, "matcher")
	if opts.RunID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, opts.RunID))
	}

	n := len(records)
	stats := Stats{Records: n, Pairs: PairCount(n), Workers: opts.Workers}
	start := time.Now()
	if stats.Pairs == 0 {
		logger.Info("nothing to compare", logging.Int("records", n))
		return stats, ctx.Err()
	}

	logger.Info("match started",
		logging.Int("records", n),
		logging.Int64("pairs", stats.Pairs),
		logging.Int("workers", opts.Workers),
		logging.Int("batch_size", opts.BatchSize),
		logging.Float64("threshold", opts.Threshold),
		logging.Float64("duration_tolerance", opts.DurationTolerance),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := make(chan []pair, opts.Workers)
	results := make(chan batchResult, opts.Workers)

	go produce(runCtx, n, opts.BatchSize, batches)

	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Go(func() {
			for batch := range batches {
				if runCtx.Err() != nil {
					continue
				}
				results <- scoreBatch(records, batch, opts)
			}
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var sinkErr error
	for res := range results {
		stats.Compared += int64(res.compared)
		stats.Faults += int64(res.faults)
		if sinkErr == nil {
			for _, c := range res.accepted {
				if err := sink.Write(c); err != nil {
					sinkErr = fmt.Errorf("write candidate: %w", err)
					cancel()
					break
				}
				stats.Accepted++
			}
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Compared: stats.Compared, Total: stats.Pairs, Accepted: stats.Accepted})
		}
	}
	stats.Elapsed = time.Since(start)

	attrs := []logging.Attr{
		logging.Int64("compared", stats.Compared),
		logging.Int64("accepted", stats.Accepted),
		logging.Duration("elapsed", stats.Elapsed),
	}
	if stats.Faults > 0 {
		logging.WarnWithContext(logger, "some pairs could not be scored", "pair_score_fault",
			append(attrs,
				logging.Int64("faults", stats.Faults),
				logging.String(logging.FieldImpact, "those pairs are missing from the candidates"),
				logging.String(logging.FieldErrorHint, "reopen the store and rerun sieve match"),
			)...)
	}

	switch {
	case sinkErr != nil:
		return stats, sinkErr
	case ctx.Err() != nil:
		logger.Info("match cancelled; partial candidates kept", logging.Args(attrs...)...)
		return stats, ctx.Err()
	}
	logger.Info("match finished", logging.Args(attrs...)...)
	return stats, nil
}

func produce(ctx context.Context, n, size int, out chan<- []pair) {
	defer close(out)
	batch := make([]pair, 0, size)
	for i, j := range Pairs(n) {
		batch = append(batch, pair{i, j})
		if len(batch) < size {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case out <- batch:
		}
		batch = make([]pair, 0, size)
	}
	if len(batch) == 0 {
		return
	}
	select {
	case <-ctx.Done():
	case out <- batch:
	}
}

func scoreBatch(records []signature.Record, batch []pair, opts Options) batchResult {
	res := batchResult{compared: len(batch)}
	for _, p := range batch {
		if p.i < 0 || p.j >= len(records) || p.i >= p.j {
			res.faults++
			continue
		}
		a, b := records[p.i], records[p.j]
		score := Score(a.Signature, b.Signature)
		if !Accept(score, opts.Threshold, a.Duration, b.Duration, opts.DurationTolerance) {
			continue
		}
		res.accepted = append(res.accepted, Candidate{Score: score, PathA: a.Path, PathB: b.Path})
	}
	return res
}
