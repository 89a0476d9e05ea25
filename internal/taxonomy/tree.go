package taxonomy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/models"
)

var (
	// ErrCycle is returned when walking parent pointers revisits a category.
	ErrCycle = errors.New("category cycle")
	// ErrDanglingParent is returned when a parent id names no known category.
	ErrDanglingParent = errors.New("dangling category parent")
)

// Path is an ordered root-to-leaf sequence of category names.
type Path []string

// ParsePath splits a " > " label into its segments.
func ParsePath(label string) Path {
	parts := strings.Split(label, models.PathSeparator)
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (p Path) String() string {
	return strings.Join(p, models.PathSeparator)
}

// Leaf returns the last segment, or "" for an empty path.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Hierarchical reports whether p has more than one level.
func (p Path) Hierarchical() bool {
	return len(p) > 1
}

// Tree indexes flat category rows by id for parent walks.
type Tree struct {
	order []string
	byID  map[string]models.Category
}

func NewTree(categories []models.Category) *Tree {
	t := &Tree{
		order: make([]string, 0, len(categories)),
		byID:  make(map[string]models.Category, len(categories)),
	}
	for _, c := range categories {
		if _, dup := t.byID[c.ID]; !dup {
			t.order = append(t.order, c.ID)
		}
		t.byID[c.ID] = c
	}
	return t
}

// PathTo walks parent pointers from id up to its root.
func (t *Tree) PathTo(id string) (Path, error) {
	var reversed []string
	visited := make(map[string]struct{})

	cur := id
	for {
		c, ok := t.byID[cur]
		if !ok {
			if cur == id {
				return nil, fmt.Errorf("category %s: %w", id, ErrDanglingParent)
			}
			return nil, fmt.Errorf("category %s: parent %s: %w", id, cur, ErrDanglingParent)
		}
		if _, seen := visited[cur]; seen {
			return nil, fmt.Errorf("category %s: revisited %s: %w", id, cur, ErrCycle)
		}
		visited[cur] = struct{}{}
		reversed = append(reversed, c.Name)

		if c.ParentID == nil || *c.ParentID == "" {
			break
		}
		cur = *c.ParentID
	}

	path := make(Path, len(reversed))
	for i, name := range reversed {
		path[len(reversed)-1-i] = name
	}
	return path, nil
}

// Paths returns the path of every category. Rows whose walk fails are left
// out and reported together in the returned error.
func (t *Tree) Paths() ([]Path, error) {
	paths := make([]Path, 0, len(t.order))
	var errs []error
	for _, id := range t.order {
		p, err := t.PathTo(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, p)
	}
	return paths, errors.Join(errs...)
}

// BuildPaths returns every distinct category path: those reconstructed from
// the category rows plus those only embedded as " > " labels in concepts.
func BuildPaths(categories []models.Category, labels []string) ([]Path, error) {
	treePaths, err := NewTree(categories).Paths()

	seen := make(map[string]struct{}, len(treePaths)+len(labels))
	out := make([]Path, 0, len(treePaths)+len(labels))
	add := func(p Path) {
		if len(p) == 0 {
			return
		}
		key := p.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	for _, p := range treePaths {
		add(p)
	}
	for _, label := range labels {
		if strings.Contains(label, models.PathSeparator) {
			add(ParsePath(label))
		}
	}
	return out, err
}

// Index is a lookup over a set of paths.
type Index struct {
	paths  []Path
	byFull map[string]Path
}

func NewIndex(paths []Path) *Index {
	idx := &Index{paths: paths, byFull: make(map[string]Path, len(paths))}
	for _, p := range paths {
		idx.byFull[strings.ToLower(p.String())] = p
	}
	return idx
}

// Paths returns the indexed paths in their original order.
func (i *Index) Paths() []Path {
	return i.paths
}

// Has reports whether the exact path is known.
func (i *Index) Has(p Path) bool {
	_, ok := i.byFull[strings.ToLower(p.String())]
	return ok
}

// Match finds the path a label refers to: the exact full path first,
// otherwise the longest path ending in that name.
func (i *Index) Match(label string) (Path, bool) {
	want := ParsePath(label)
	if len(want) == 0 {
		return nil, false
	}
	if p, ok := i.byFull[strings.ToLower(want.String())]; ok {
		return p, true
	}
	if want.Hierarchical() {
		return nil, false
	}

	var best Path
	for _, p := range i.paths {
		if strings.EqualFold(p.Leaf(), want.Leaf()) && len(p) > len(best) {
			best = p
		}
	}
	return best, best != nil
}

// Strings renders every path label.
func (i *Index) Strings() []string {
	out := make([]string, 0, len(i.paths))
	for _, p := range i.paths {
		out = append(out, p.String())
	}
	return out
}
