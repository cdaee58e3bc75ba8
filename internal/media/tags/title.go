package tags

import (
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sieve/internal/identity"
	"sieve/internal/media/metadata"
)

var titleCaser = cases.Title(language.English)

// TitleFromFilename turns "radio/the_song-name.<token>.mka" into
// "The Song Name". The identity token and extension are dropped.
func TitleFromFilename(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if token, ok := identity.Extract(base); ok {
		base = strings.ReplaceAll(strings.ToLower(base), token, "")
	}
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return ""
	}
	return titleCaser.String(base)
}

// Filename supplies only a title, derived from the path.
type Filename struct{}

func (Filename) Lookup(_ context.Context, path string) (metadata.Info, error) {
	return metadata.Info{Title: TitleFromFilename(path)}, nil
}
