package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sieve/internal/logging"
)

// audioExtensions are the file types a directory walk picks up.
var audioExtensions = map[string]struct{}{
	".mka": {}, ".mkv": {}, ".mp4": {}, ".opus": {}, ".alac": {}, ".mp3": {},
	".flac": {}, ".fla": {}, ".m4a": {}, ".wav": {}, ".m4p": {}, ".ogg": {},
	".au": {}, ".ape": {}, ".webm": {}, ".aac": {}, ".wma": {}, ".aiff": {},
	".aif": {},
}

func isAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// collectPaths expands the ingest arguments. Plain files are taken as given,
// directories are walked for audio files, and arguments containing glob
// metacharacters are expanded. Paths are not cleaned: the store matches them
// by exact string. Order is preserved and repeats are dropped.
func collectPaths(args []string, logger *slog.Logger) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, arg := range args {
		if arg == "" {
			continue
		}
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			files, walkErr := walkAudio(arg, logger)
			if walkErr != nil {
				return nil, walkErr
			}
			for _, f := range files {
				add(f)
			}
		case err == nil:
			add(arg)
		case hasGlobMeta(arg):
			matches, globErr := filepath.Glob(arg)
			if globErr != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, globErr)
			}
			slices.Sort(matches)
			for _, m := range matches {
				if st, statErr := os.Stat(m); statErr == nil && !st.IsDir() {
					add(m)
				}
			}
		case errors.Is(err, fs.ErrNotExist):
			// Left for the fingerprinter to report per file.
			add(arg)
		default:
			return nil, fmt.Errorf("inspect %q: %w", arg, err)
		}
	}
	return out, nil
}

// walkAudio lists audio files under root. An unreadable entry below root is
// logged and skipped; only an unreadable root fails the walk.
func walkAudio(root string, logger *slog.Logger) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil || path == root {
				return err
			}
			logging.WarnWithContext(logger, "skipping unreadable path", "ingest_walk_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "files below this path are not ingested"),
				logging.String(logging.FieldErrorHint, "fix permissions and rerun sieve ingest for this path"),
			)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && isAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// readPathList reads one path per line; blank lines and lines starting with
// '#' are skipped so M3U playlists work as input.
func readPathList(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read path list: %w", err)
	}
	return out, nil
}
