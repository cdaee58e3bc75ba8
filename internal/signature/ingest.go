package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sieve/internal/identity"
	"sieve/internal/logging"
	"sieve/internal/services"
	"sieve/internal/services/fpcalc"
)

// Fingerprinter produces the raw fingerprint and measured duration of a file.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string, seconds int) (fpcalc.Result, error)
}

// IngestOptions tunes an ingest run.
type IngestOptions struct {
	// Seconds is the length of audio fingerprinted per file.
	Seconds int
	// Workers bounds concurrent fingerprint calls. Values below one mean one.
	Workers int
	// ReuseIdentity copies the signature of an already catalogued file with the
	// same identity token instead of fingerprinting again.
	ReuseIdentity bool
	Logger        *slog.Logger
	// OnProgress is called from the appending goroutine after every path.
	OnProgress func(done, total int)
}

// Failure is one path that could not be catalogued.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes an ingest run.
type Report struct {
	Requested int
	Added     int
	// Reused counts added records whose signature was copied by identity.
	Reused    int
	Skipped   int
	Failed    []Failure
}

// Ingester adds new files to a Store.
type Ingester struct {
	store  *Store
	fp     Fingerprinter
	opts   IngestOptions
	logger *slog.Logger
}

// NewIngester binds a writable store to a fingerprinter.
func NewIngester(store *Store, fp Fingerprinter, opts IngestOptions) (*Ingester, error) {
	if store == nil {
		return nil, errors.New("ingester requires a store")
	}
	if fp == nil {
		return nil, errors.New("ingester requires a fingerprinter")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Ingester{
		store:  store,
		fp:     fp,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "ingest"),
	}, nil
}

type fingerprintResult struct {
	path   string
	result fpcalc.Result
	err    error
}

// Ingest fingerprints every path the store does not hold yet and appends it.
// A failing file is logged and reported without stopping the batch. On
// cancellation the records appended so far stay durable and ctx.Err() is
// returned with the partial report.
func (in *Ingester) Ingest(ctx context.Context, paths []string) (Report, error) {
	report := Report{}
	seen := make(map[string]struct{}, len(paths))
	var pending []string
	for _, path := range paths {
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		report.Requested++
		if in.store.Has(path) {
			report.Skipped++
			continue
		}
		pending = append(pending, path)
	}

	total := report.Requested
	done := report.Skipped
	progress := func() {
		done++
		if in.opts.OnProgress != nil {
			in.opts.OnProgress(done, total)
		}
	}

	// Paths sharing a token with an earlier pending path wait for it, so one
	// fingerprint serves the whole group when reuse is on.
	var leaders, followers []string
	if in.opts.ReuseIdentity {
		claimed := make(map[string]struct{})
		for _, path := range pending {
			token, ok := identity.Extract(path)
			if !ok {
				leaders = append(leaders, path)
				continue
			}
			if _, known := in.store.FindByIdentity(token); known {
				followers = append(followers, path)
				continue
			}
			if _, taken := claimed[token]; taken {
				followers = append(followers, path)
				continue
			}
			claimed[token] = struct{}{}
			leaders = append(leaders, path)
		}
	} else {
		leaders = pending
	}

	if err := in.fingerprintAll(ctx, leaders, &report, progress); err != nil {
		return in.finish(report), err
	}

	var retry []string
	for _, path := range followers {
		if err := ctx.Err(); err != nil {
			return in.finish(report), err
		}
		token, _ := identity.Extract(path)
		source, ok := in.store.FindByIdentity(token)
		if !ok {
			retry = append(retry, path)
			continue
		}
		rec := Record{Path: path, Signature: source.Signature, Duration: source.Duration}
		if err := in.append(rec, &report); err != nil {
			return in.finish(report), err
		}
		report.Reused++
		in.logger.Debug("signature reused by identity",
			logging.Path(path),
			logging.String("source", source.Path),
		)
		progress()
	}

	if err := in.fingerprintAll(ctx, retry, &report, progress); err != nil {
		return in.finish(report), err
	}
	return in.finish(report), nil
}

// fingerprintAll runs the fingerprinter across a bounded pool. Only this
// goroutine appends to the store.
func (in *Ingester) fingerprintAll(ctx context.Context, paths []string, report *Report, progress func()) error {
	if len(paths) == 0 {
		return nil
	}
	jobs := make(chan string)
	results := make(chan fingerprintResult)

	workers := min(in.opts.Workers, len(paths))
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for path := range jobs {
				res, err := in.fp.Fingerprint(ctx, path, in.opts.Seconds)
				results <- fingerprintResult{path: path, result: res, err: err}
			}
		})
	}
	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var appendErr error
	for res := range results {
		if appendErr != nil {
			continue
		}
		if res.err != nil {
			if ctx.Err() != nil && errors.Is(res.err, ctx.Err()) {
				continue
			}
			in.recordFailure(report, res.path, res.err)
			progress()
			continue
		}
		rec := Record{
			Path:      res.path,
			Signature: Canonicalize(res.result.Raw, in.store.Length()),
			Duration:  res.result.Duration,
		}
		if err := in.append(rec, report); err != nil {
			appendErr = err
			continue
		}
		progress()
	}
	if appendErr != nil {
		return appendErr
	}
	return ctx.Err()
}

func (in *Ingester) append(rec Record, report *Report) error {
	added, err := in.store.Append(rec)
	if err != nil {
		if errors.Is(err, errInvalidRecord) {
			in.recordFailure(report, rec.Path, services.Wrap(services.ErrValidation, "ingest", "append", "record rejected", err))
			return nil
		}
		return fmt.Errorf("append %s: %w", rec.Path, err)
	}
	if added {
		report.Added++
	} else {
		report.Skipped++
	}
	return nil
}

func (in *Ingester) recordFailure(report *Report, path string, err error) {
	report.Failed = append(report.Failed, Failure{Path: path, Err: err})
	logging.WarnWithContext(in.logger, "fingerprint failed; file skipped", "fingerprint_failed",
		logging.Path(path),
		logging.Error(err),
		logging.Bool("retryable", services.Retryable(err)),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, "file not catalogued; rerun ingest for this path"),
	)
}

func (in *Ingester) finish(report Report) Report {
	in.logger.Info("ingest finished",
		logging.Int("requested", report.Requested),
		logging.Int("added", report.Added),
		logging.Int("reused", report.Reused),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", len(report.Failed)),
	)
	return report
}
