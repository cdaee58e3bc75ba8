package signature

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one catalogued file.
type Record struct {
	Path      string
	Signature string
	// Duration is in seconds.
	Duration float64
}

var errInvalidRecord = errors.New("invalid record")

func (r Record) validate() error {
	switch {
	case r.Path == "":
		return fmt.Errorf("%w: empty path", errInvalidRecord)
	case strings.ContainsAny(r.Path, "\r\n"):
		return fmt.Errorf("%w: path contains a line break", errInvalidRecord)
	case !Valid(r.Signature):
		return fmt.Errorf("%w: signature is not base-4", errInvalidRecord)
	case math.IsNaN(r.Duration) || math.IsInf(r.Duration, 0) || r.Duration < 0:
		return fmt.Errorf("%w: duration %v", errInvalidRecord, r.Duration)
	}
	return nil
}

func (r Record) fields() []string {
	return []string{r.Path, r.Signature, strconv.FormatFloat(r.Duration, 'f', -1, 64)}
}

func parseRecord(fields []string) (Record, error) {
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("%w: %d fields", errInvalidRecord, len(fields))
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: duration %q", errInvalidRecord, fields[2])
	}
	rec := Record{Path: fields[0], Signature: strings.TrimSpace(fields[1]), Duration: duration}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
