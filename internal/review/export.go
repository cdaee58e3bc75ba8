package review

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"sieve/internal/fileutil"
	"sieve/internal/logging"
	"sieve/internal/media/metadata"
)

const (
	// DocumentFile is the data document consumed by other front ends.
	DocumentFile = "review.json"
	// PageFile is the self-contained review page.
	PageFile = "review.html"
)

//go:embed review.html.tmpl
var pageTemplate string

// Document is the exported review data.
type Document struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Pairs       []DocumentPair `json:"pairs"`
	Deletions   []string       `json:"deletions"`
}

// DocumentPair is one reviewable pair.
type DocumentPair struct {
	Score int          `json:"score"`
	A     DocumentSide `json:"a"`
	B     DocumentSide `json:"b"`
}

// DocumentSide carries everything a front end needs to show one file and to
// propagate a selection to its other occurrences through Key.
type DocumentSide struct {
	Path     string  `json:"path"`
	Identity string  `json:"identity,omitempty"`
	Key      string  `json:"key"`
	Duration float64 `json:"duration"`
	Selected bool    `json:"selected"`
	// Marked is set only on the occurrence whose path is on the deletion list.
	Marked   bool           `json:"marked"`
	Source   string         `json:"source"`
	Metadata *metadata.Info `json:"metadata,omitempty"`
}

// ExportOptions controls document generation.
type ExportOptions struct {
	RunID string
	// Now stamps the document; time.Now when nil.
	Now func() time.Time
	// Resolve maps a catalogue path to the file on disk for metadata lookups
	// and audio links. Identity when nil.
	Resolve func(string) string
	// Metadata enriches each side; nil skips enrichment.
	Metadata metadata.Lookup
	Logger   *slog.Logger
}

// ExportResult lists the written files.
type ExportResult struct {
	DocumentPath string
	PagePath     string
	Pairs        int
	Enriched     int
	Failed       int
}

// BuildDocument assembles the data document, enriching each distinct file
// once. Lookup failures are logged and leave that side without metadata.
func BuildDocument(ctx context.Context, m *Model, opts ExportOptions) (Document, ExportResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "review")
	if opts.RunID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, opts.RunID))
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func(p string) string { return p }
	}

	var result ExportResult
	infos := make(map[string]*metadata.Info)
	enrich := func(path string) (*metadata.Info, error) {
		if info, ok := infos[path]; ok {
			return info, nil
		}
		info, err := opts.Metadata.Lookup(ctx, resolve(path))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.Failed++
			logging.WarnWithContext(logger, "metadata lookup failed", "metadata_lookup_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the file exists under paths.media_root"),
				logging.String(logging.FieldImpact, "file shown without title or stream details"),
			)
			infos[path] = nil
			return nil, nil
		}
		result.Enriched++
		infos[path] = &info
		return &info, nil
	}

	side := func(s Side) (DocumentSide, error) {
		out := DocumentSide{
			Path:     s.Path,
			Identity: s.Identity,
			Key:      s.Key,
			Duration: s.Duration,
			Selected: m.Selected(s),
			Marked:   m.Marked(s),
			Source:   mediaURL(resolve(s.Path)),
		}
		if opts.Metadata != nil {
			info, err := enrich(s.Path)
			if err != nil {
				return out, err
			}
			out.Metadata = info
			if out.Duration == 0 && info != nil {
				out.Duration = info.Duration
			}
		}
		return out, nil
	}

	doc := Document{
		RunID:       opts.RunID,
		GeneratedAt: now().UTC(),
		Pairs:       make([]DocumentPair, 0, m.Len()),
		Deletions:   m.DeletionList(),
	}
	for _, p := range m.pairs {
		a, err := side(p.A)
		if err != nil {
			return doc, result, err
		}
		b, err := side(p.B)
		if err != nil {
			return doc, result, err
		}
		doc.Pairs = append(doc.Pairs, DocumentPair{Score: p.Score, A: a, B: b})
	}
	result.Pairs = len(doc.Pairs)
	return doc, result, nil
}

// Export writes review.json and review.html into dir.
func Export(ctx context.Context, dir string, m *Model, opts ExportOptions) (ExportResult, error) {
	doc, result, err := BuildDocument(ctx, m, opts)
	if err != nil {
		return result, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return result, fmt.Errorf("encode review document: %w", err)
	}
	page, err := RenderPage(doc)
	if err != nil {
		return result, err
	}

	result.DocumentPath = filepath.Join(dir, DocumentFile)
	result.PagePath = filepath.Join(dir, PageFile)
	if err := fileutil.WriteFileAtomic(result.DocumentPath, append(data, '\n'), 0o644); err != nil {
		return result, fmt.Errorf("write review document: %w", err)
	}
	if err := fileutil.WriteFileAtomic(result.PagePath, page, 0o644); err != nil {
		return result, fmt.Errorf("write review page: %w", err)
	}

	logging.NewComponentLogger(opts.Logger, "review").Info("review exported",
		logging.String(logging.FieldRunID, opts.RunID),
		logging.Int("pairs", result.Pairs),
		logging.Int("enriched", result.Enriched),
		logging.Int("lookup_failures", result.Failed),
		logging.Path(result.PagePath),
	)
	return result, nil
}

var pageFuncs = template.FuncMap{
	"clock":    clock,
	"kbit":     func(bps int64) string { return humanize.Comma(bps / 1000) },
	"kbytes":   func(size int64) string { return humanize.Comma(size / 1000) },
	"hz":       func(rate int) string { return humanize.Comma(int64(rate)) },
	"mediaURL": func(s string) template.URL { return template.URL(s) },
}

var page = template.Must(template.New("review").Funcs(pageFuncs).Parse(pageTemplate))

// RenderPage renders the interactive review page for doc.
func RenderPage(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render review page: %w", err)
	}
	return buf.Bytes(), nil
}

// mediaURL builds an href for an audio element. Absolute paths become file
// URLs; Windows drive paths are kept out of the scheme position.
func mediaURL(path string) string {
	slashed := filepath.ToSlash(strings.ReplaceAll(path, `\`, "/"))
	switch {
	case strings.HasPrefix(slashed, "/"):
		return (&url.URL{Scheme: "file", Path: slashed}).String()
	case len(slashed) > 1 && slashed[1] == ':':
		return (&url.URL{Scheme: "file", Path: "/" + slashed}).String()
	default:
		return (&url.URL{Path: slashed}).String()
	}
}

func clock(seconds float64) string {
	d := time.Duration(seconds+0.5) * time.Second
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
