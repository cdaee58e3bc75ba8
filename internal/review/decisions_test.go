package review_test

import (
	"path/filepath"
	"testing"

	"sieve/internal/review"
)

func openDecisions(t *testing.T, path string) *review.Decisions {
	t.Helper()
	d, err := review.OpenDecisions(t.Context(), path)
	if err != nil {
		t.Fatalf("OpenDecisions: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDecisionsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review", "decisions.db")
	d := openDecisions(t, path)
	ctx := t.Context()

	if err := d.Put(ctx, review.Decision{Key: tokenY, Path: pathY}); err != nil {
		t.Fatal(err)
	}
	if err := d.Put(ctx, review.Decision{Key: pathX, Path: pathX}); err != nil {
		t.Fatal(err)
	}
	if err := d.Put(ctx, review.Decision{Key: tokenY, Path: "moved." + tokenY + ".mka"}); err != nil {
		t.Fatal(err)
	}
	_ = d.Close()

	reopened := openDecisions(t, path)
	list, err := reopened.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 decisions, got %+v", list)
	}
	if list[0].Key != tokenY || list[0].Path != "moved."+tokenY+".mka" || list[0].MarkedAt.IsZero() {
		t.Fatalf("upsert did not replace path: %+v", list[0])
	}

	removed, err := reopened.Delete(ctx, pathX)
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v)", removed, err)
	}
	removed, err = reopened.Delete(ctx, pathX)
	if err != nil || removed {
		t.Fatalf("second Delete = (%v, %v)", removed, err)
	}
}

func TestDecisionsRejectIncomplete(t *testing.T) {
	d := openDecisions(t, filepath.Join(t.TempDir(), "decisions.db"))
	if err := d.Put(t.Context(), review.Decision{Key: "k"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
