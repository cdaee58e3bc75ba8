package matcher

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"sieve/internal/logging"
)

// Candidate is one accepted pair. PathA precedes PathB in store order.
type Candidate struct {
	Score int
	PathA string
	PathB string
}

// Sink receives accepted candidates. Match calls Write from a single
// goroutine.
type Sink interface {
	Write(Candidate) error
}

// SliceSink collects candidates in memory.
type SliceSink struct {
	mu         sync.Mutex
	Candidates []Candidate
}

func (s *SliceSink) Write(c Candidate) error {
	s.mu.Lock()
	s.Candidates = append(s.Candidates, c)
	s.mu.Unlock()
	return nil
}

// CandidateWriter streams candidates as score,pathA,pathB CSV rows. Each row
// is flushed as it is written so an interrupted run leaves whole rows only.
type CandidateWriter struct {
	w    *csv.Writer
	file *os.File
}

// NewCandidateWriter writes rows to w.
func NewCandidateWriter(w io.Writer) *CandidateWriter {
	return &CandidateWriter{w: csv.NewWriter(w)}
}

// CreateCandidateFile truncates path and returns a writer that owns the file.
func CreateCandidateFile(path string) (*CandidateWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create candidates directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create candidates file: %w", err)
	}
	return &CandidateWriter{w: csv.NewWriter(file), file: file}, nil
}

func (cw *CandidateWriter) Write(c Candidate) error {
	if err := cw.w.Write([]string{strconv.Itoa(c.Score), c.PathA, c.PathB}); err != nil {
		return err
	}
	cw.w.Flush()
	return cw.w.Error()
}

// Close flushes buffered rows and closes the owned file, if any.
func (cw *CandidateWriter) Close() error {
	cw.w.Flush()
	err := cw.w.Error()
	if cw.file != nil {
		err = errors.Join(err, cw.file.Sync(), cw.file.Close())
		cw.file = nil
	}
	return err
}

// ReadCandidates parses score,pathA,pathB rows. Rows that do not parse are
// logged and skipped; the count of skipped rows is returned.
func ReadCandidates(r io.Reader, logger *slog.Logger) ([]Candidate, int, error) {
	logger = logging.NewComponentLogger(logger, "candidates")
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	// Older exports wrote `70, "a", "b"`; the writer quotes any field with a
	// leading space, so trimming is lossless for files it produced.
	reader.TrimLeadingSpace = true

	var (
		out     []Candidate
		skipped int
	)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return out, skipped, fmt.Errorf("read candidates: %w", err)
			}
			skipped++
			logging.WarnWithContext(logger, "skipping malformed candidate row", "candidate_row_malformed",
				logging.Int("line", parseErr.StartLine),
				logging.Error(err),
				logging.String(logging.FieldImpact, "pair left out of review"),
				logging.String(logging.FieldErrorHint, "rerun sieve match to regenerate the candidate file"),
			)
			continue
		}
		c, err := parseCandidate(fields)
		if err != nil {
			skipped++
			line, _ := reader.FieldPos(0)
			logging.WarnWithContext(logger, "skipping malformed candidate row", "candidate_row_malformed",
				logging.Int("line", line),
				logging.Error(err),
				logging.String(logging.FieldImpact, "pair left out of review"),
				logging.String(logging.FieldErrorHint, "rerun sieve match to regenerate the candidate file"),
			)
			continue
		}
		out = append(out, c)
	}
	return out, skipped, nil
}

// ReadCandidateFile opens path and reads it with ReadCandidates.
func ReadCandidateFile(path string, logger *slog.Logger) ([]Candidate, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open candidates: %w", err)
	}
	defer file.Close()
	return ReadCandidates(file, logger)
}

func parseCandidate(fields []string) (Candidate, error) {
	if len(fields) != 3 {
		return Candidate{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	score, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Candidate{}, fmt.Errorf("score %q: %w", fields[0], err)
	}
	if score < 0 || score > MaxScore {
		return Candidate{}, fmt.Errorf("score %d out of range", score)
	}
	if fields[1] == "" || fields[2] == "" {
		return Candidate{}, errors.New("empty path")
	}
	return Candidate{Score: score, PathA: fields[1], PathB: fields[2]}, nil
}
