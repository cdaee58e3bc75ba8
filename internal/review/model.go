package review

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"sieve/internal/identity"
	"sieve/internal/matcher"
)

// ErrUnknownReference reports a mark target that appears in no pair.
var ErrUnknownReference = errors.New("path or identity not found in candidates")

// Side is one file of a pair.
type Side struct {
	Path string
	// Identity is the filename's token, empty when it carries none.
	Identity string
	// Key groups every occurrence of the same file: Identity, or Path.
	Key      string
	Duration float64
}

// Pair is one reviewable candidate.
type Pair struct {
	Score int
	A, B  Side
}

// Group is every path observed under one identity key.
type Group struct {
	Key      string
	Identity string
	// Members are distinct paths in review order.
	Members []string
	// Pairs indexes into Model.Pairs.
	Pairs []int
}

// Decision is a persisted mark: the key selected and the path to delete.
type Decision struct {
	Key  string
	Path string
}

// Model is the correlated, markable view of a candidate list.
type Model struct {
	pairs  []Pair
	groups map[string]*Group
	order  []string
	marks  map[string]string
}

// Correlate builds the review model. Candidates are sorted by score
// descending, then PathA, then PathB; a pair listed twice in either
// orientation is kept once at its first position. durations may be nil.
func Correlate(candidates []matcher.Candidate, durations map[string]float64) *Model {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(x, y matcher.Candidate) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := strings.Compare(x.PathA, y.PathA); c != 0 {
			return c
		}
		return strings.Compare(x.PathB, y.PathB)
	})

	m := &Model{
		groups: make(map[string]*Group),
		marks:  make(map[string]string),
	}
	seen := make(map[[2]string]struct{}, len(sorted))
	for _, c := range sorted {
		if c.PathA == c.PathB {
			continue
		}
		key := [2]string{min(c.PathA, c.PathB), max(c.PathA, c.PathB)}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		idx := len(m.pairs)
		pair := Pair{Score: c.Score, A: newSide(c.PathA, durations), B: newSide(c.PathB, durations)}
		m.pairs = append(m.pairs, pair)
		m.observe(pair.A, idx)
		m.observe(pair.B, idx)
	}
	return m
}

func newSide(path string, durations map[string]float64) Side {
	token, _ := identity.Extract(path)
	return Side{Path: path, Identity: token, Key: identity.Key(path), Duration: durations[path]}
}

func (m *Model) observe(side Side, idx int) {
	g, ok := m.groups[side.Key]
	if !ok {
		g = &Group{Key: side.Key, Identity: side.Identity}
		m.groups[side.Key] = g
		m.order = append(m.order, side.Key)
	}
	if !slices.Contains(g.Members, side.Path) {
		g.Members = append(g.Members, side.Path)
	}
	if len(g.Pairs) == 0 || g.Pairs[len(g.Pairs)-1] != idx {
		g.Pairs = append(g.Pairs, idx)
	}
}

// Pairs returns the sorted pairs.
func (m *Model) Pairs() []Pair { return slices.Clone(m.pairs) }

// Len returns the number of pairs.
func (m *Model) Len() int { return len(m.pairs) }

// Empty reports whether there is nothing to review.
func (m *Model) Empty() bool { return len(m.pairs) == 0 }

// Groups returns one entry per identity key in order of first appearance.
func (m *Model) Groups() []Group {
	out := make([]Group, 0, len(m.order))
	for _, key := range m.order {
		g := m.groups[key]
		out = append(out, Group{
			Key:      g.Key,
			Identity: g.Identity,
			Members:  slices.Clone(g.Members),
			Pairs:    slices.Clone(g.Pairs),
		})
	}
	return out
}

// Resolve maps a path or bare identity token to the decision marking it would
// record. A path selects itself; a token selects the first path carrying it.
func (m *Model) Resolve(ref string) (Decision, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Decision{}, fmt.Errorf("%w: empty reference", ErrUnknownReference)
	}
	key := identity.Key(ref)
	if g, ok := m.groups[key]; ok && slices.Contains(g.Members, ref) {
		return Decision{Key: key, Path: ref}, nil
	}
	if identity.IsToken(ref) {
		if g, ok := m.groups[strings.ToLower(ref)]; ok {
			return Decision{Key: g.Key, Path: g.Members[0]}, nil
		}
	}
	return Decision{}, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
}

// Mark selects ref everywhere it occurs and returns the recorded decision.
func (m *Model) Mark(ref string) (Decision, error) {
	d, err := m.Resolve(ref)
	if err != nil {
		return Decision{}, err
	}
	m.marks[d.Key] = d.Path
	return d, nil
}

// Unmark clears the selection of ref's key. It reports whether a mark existed.
func (m *Model) Unmark(ref string) (string, bool) {
	key := KeyOf(ref)
	_, ok := m.marks[key]
	delete(m.marks, key)
	return key, ok
}

// KeyOf returns the decision key a path or bare identity token addresses.
func KeyOf(ref string) string {
	ref = strings.TrimSpace(ref)
	if identity.IsToken(ref) {
		return strings.ToLower(ref)
	}
	return identity.Key(ref)
}

// Selected reports whether the file on side is marked.
func (m *Model) Selected(side Side) bool {
	_, ok := m.marks[side.Key]
	return ok
}

// Marked reports whether side's path is the one recorded for deletion. Other
// members of a selected key are Selected but not Marked.
func (m *Model) Marked(side Side) bool {
	path, ok := m.marks[side.Key]
	return ok && path == side.Path
}

// Apply loads persisted decisions. A decision is stale, and not applied, when
// its key no longer appears in any pair or its path is no longer one of the
// key's members. A mark never moves to a path the operator did not pick.
func (m *Model) Apply(decisions []Decision) (stale []Decision) {
	for _, d := range decisions {
		g, ok := m.groups[d.Key]
		if !ok || !slices.Contains(g.Members, d.Path) {
			stale = append(stale, d)
			continue
		}
		m.marks[d.Key] = d.Path
	}
	return stale
}

// Decisions returns the current marks sorted by key.
func (m *Model) Decisions() []Decision {
	out := make([]Decision, 0, len(m.marks))
	for key, path := range m.marks {
		out = append(out, Decision{Key: key, Path: path})
	}
	slices.SortFunc(out, func(a, b Decision) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// DeletionList returns each marked path once, sorted.
func (m *Model) DeletionList() []string {
	out := make([]string, 0, len(m.marks))
	for _, path := range m.marks {
		out = append(out, path)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
