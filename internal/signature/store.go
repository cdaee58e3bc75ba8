package signature

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"sieve/internal/identity"
	"sieve/internal/logging"
)

// ErrStoreLocked reports that another process holds a conflicting lock on the
// store: an ingest is running while a match or review wants to read, or the
// other way round.
var ErrStoreLocked = errors.New("signature store is locked by another process")

const maxLineBytes = 1 << 20

// LoadStats summarizes what was read from disk when the store opened.
type LoadStats struct {
	Lines      int
	Records    int
	Malformed  int
	Duplicates int
	// Refit counts records whose stored signature length differed from the
	// configured length and was truncated or padded in memory.
	Refit int
}

// Store is the append-only catalogue of signatures.
type Store struct {
	path     string
	length   int
	readOnly bool
	lock     *flock.Flock
	file     *os.File
	writer   *csv.Writer
	logger   *slog.Logger

	records    []Record
	byPath     map[string]int
	byIdentity map[string]int
	stats      LoadStats
}

// Open acquires the exclusive writer lock and loads the store at path,
// creating it when missing. length is the canonical signature length.
func Open(path string, length int, logger *slog.Logger) (*Store, error) {
	return open(path, length, false, logger)
}

// OpenReadOnly acquires a shared lock and loads the store. The lock is held
// until Close, so no ingest can change the catalogue during a match run.
func OpenReadOnly(path string, length int, logger *slog.Logger) (*Store, error) {
	return open(path, length, true, logger)
}

func open(path string, length int, readOnly bool, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("signature store path required")
	}
	if length <= 0 {
		return nil, fmt.Errorf("signature length must be positive, got %d", length)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		path:       path,
		length:     length,
		readOnly:   readOnly,
		lock:       flock.New(path + ".lock"),
		logger:     logging.NewComponentLogger(logger, "store"),
		byPath:     make(map[string]int),
		byIdentity: make(map[string]int),
	}

	var (
		ok  bool
		err error
	)
	if readOnly {
		ok, err = s.lock.TryRLock()
	} else {
		ok, err = s.lock.TryLock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
	}

	if err := s.load(); err != nil {
		_ = s.lock.Unlock()
		return nil, err
	}
	if !readOnly {
		if err := s.openForAppend(); err != nil {
			_ = s.lock.Unlock()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open signature store: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		raw, overlong, readErr := readStoreLine(reader, maxLineBytes)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read signature store: %w", readErr)
		}
		if len(raw) > 0 || overlong {
			s.stats.Lines++
			s.loadLine(raw, overlong)
		}
		if readErr != nil {
			break
		}
	}
	s.stats.Records = len(s.records)
	if s.stats.Refit > 0 {
		s.logger.Info("store signatures refit to configured length",
			logging.Int("records", s.stats.Refit),
			logging.Int("signature_length", s.length),
		)
	}
	return nil
}

func (s *Store) loadLine(raw []byte, overlong bool) {
	line := strings.TrimSuffix(strings.TrimSuffix(string(raw), "\n"), "\r")
	if !overlong && strings.TrimSpace(line) == "" {
		return
	}
	var rec Record
	err := errOverlongLine
	if !overlong {
		rec, err = decodeLine(line)
	}
	if err != nil {
		s.stats.Malformed++
		logging.WarnWithContext(s.logger, "skipping malformed store line", "store_line_malformed",
			logging.String("store", s.path),
			logging.Int("line", s.stats.Lines),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file for this line will be fingerprinted again on the next ingest"),
			logging.String(logging.FieldImpact, "line ignored"),
		)
		return
	}
	if _, exists := s.byPath[rec.Path]; exists {
		s.stats.Duplicates++
		return
	}
	if len(rec.Signature) != s.length {
		rec.Signature = Fit(rec.Signature, s.length)
		s.stats.Refit++
	}
	s.index(rec)
}

var errOverlongLine = fmt.Errorf("line exceeds %d bytes", maxLineBytes)

// readStoreLine returns the next line including its newline. A line longer
// than limit is consumed to its end and reported as overlong with no bytes,
// so one corrupt tail cannot stop the load. err is io.EOF on the last line.
func readStoreLine(r *bufio.Reader, limit int) (line []byte, overlong bool, err error) {
	for {
		chunk, readErr := r.ReadSlice('\n')
		if !overlong {
			if len(line)+len(chunk) > limit {
				overlong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		return line, overlong, readErr
	}
}

func decodeLine(line string) (Record, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	fields, err := reader.Read()
	if err != nil {
		return Record{}, err
	}
	return parseRecord(fields)
}

// openForAppend repairs a torn final line left by a crash so the next record
// starts on its own line.
func (s *Store) openForAppend() error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open signature store for append: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat signature store: %w", err)
	}
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, size-1); err != nil && !errors.Is(err, io.EOF) {
			_ = file.Close()
			return fmt.Errorf("read signature store tail: %w", err)
		}
		if last[0] != '\n' {
			if _, err := file.Write([]byte{'\n'}); err != nil {
				_ = file.Close()
				return fmt.Errorf("terminate torn store line: %w", err)
			}
		}
	}
	s.file = file
	s.writer = csv.NewWriter(file)
	return nil
}

func (s *Store) index(rec Record) {
	s.byPath[rec.Path] = len(s.records)
	if token, ok := identity.Extract(rec.Path); ok {
		if _, exists := s.byIdentity[token]; !exists {
			s.byIdentity[token] = len(s.records)
		}
	}
	s.records = append(s.records, rec)
}

// Path returns the store location.
func (s *Store) Path() string { return s.path }

// Length returns the canonical signature length the store was opened with.
func (s *Store) Length() int { return s.length }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Stats reports what the initial load found.
func (s *Store) Stats() LoadStats { return s.stats }

// Has reports whether path is already catalogued.
func (s *Store) Has(path string) bool {
	_, ok := s.byPath[path]
	return ok
}

// Lookup returns the record for path.
func (s *Store) Lookup(path string) (Record, bool) {
	idx, ok := s.byPath[path]
	if !ok {
		return Record{}, false
	}
	return s.records[idx], true
}

// FindByIdentity returns the first record whose basename carries token.
func (s *Store) FindByIdentity(token string) (Record, bool) {
	idx, ok := s.byIdentity[strings.ToLower(token)]
	if !ok {
		return Record{}, false
	}
	return s.records[idx], true
}

// Records returns a copy of every record in store order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Durations maps every catalogued path to its duration.
func (s *Store) Durations() map[string]float64 {
	out := make(map[string]float64, len(s.records))
	for _, rec := range s.records {
		out[rec.Path] = rec.Duration
	}
	return out
}

// Append durably writes rec. Appending a path that already exists is a no-op
// and reports false.
func (s *Store) Append(rec Record) (bool, error) {
	if s.readOnly || s.writer == nil {
		return false, errors.New("signature store opened read-only")
	}
	if err := rec.validate(); err != nil {
		return false, err
	}
	if s.Has(rec.Path) {
		return false, nil
	}
	rec.Signature = Fit(rec.Signature, s.length)
	if err := s.writer.Write(rec.fields()); err != nil {
		return false, fmt.Errorf("write store record: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return false, fmt.Errorf("flush store record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return false, fmt.Errorf("sync signature store: %w", err)
	}
	s.index(rec)
	s.stats.Records = len(s.records)
	return true, nil
}

// Close releases the file handle and the lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.file != nil {
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			errs = append(errs, err)
		}
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
		s.file = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release store lock: %w", err))
		}
	}
	return errors.Join(errs...)
}
