package filesystem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/sagarc03/xupload"
)

// Quota accounts data artifacts per collection directory and evicts whole
// collections, least recently modified first, to keep a scope under budget.
type Quota struct {
	root *os.Root
}

// NewQuota creates a Quota enforcer operating on the given root.
func NewQuota(root *os.Root) *Quota {
	return &Quota{root: root}
}

// Enforce makes room for incoming bytes in the scope of loc. Collections are
// removed until the existing data plus incoming fits into budget, or until
// there is nothing left to remove. The collection loc belongs to is never
// evicted. A budget of zero disables enforcement.
//
// Overflow is measured after the incoming write: total + incoming - budget.
func (q *Quota) Enforce(ctx context.Context, loc xupload.Location, budget, incoming int64) (xupload.EvictionReport, error) {
	if budget <= 0 {
		return xupload.EvictionReport{}, nil
	}

	exclude := ""
	if c := loc.Collection(); c != "." {
		exclude = slashPath(c)
	}

	return q.evict(ctx, slashPath(loc.Scope()), budget, incoming, exclude)
}

// Prune evicts collections under scope until its total size fits into budget.
func (q *Quota) Prune(ctx context.Context, scope string, budget int64) (xupload.EvictionReport, error) {
	if budget < 0 {
		return xupload.EvictionReport{}, fmt.Errorf("prune: %w", xupload.ErrInvalidQuota)
	}
	return q.evict(ctx, slashPath(scope), budget, 0, "")
}

func (q *Quota) evict(ctx context.Context, scope string, budget, incoming int64, exclude string) (xupload.EvictionReport, error) {
	usage, err := q.Usage(ctx, scope)
	if err != nil {
		return xupload.EvictionReport{}, fmt.Errorf("evict: %w", err)
	}

	var report xupload.EvictionReport
	for _, u := range usage {
		report.Total += u.Size
	}

	report.Overflow = addSaturating(report.Total, incoming) - budget
	if report.Overflow <= 0 {
		return report, nil
	}

	candidates := slices.DeleteFunc(usage, func(u xupload.CollectionUsage) bool {
		return u.Name == exclude || u.Objects == 0
	})
	slices.SortFunc(candidates, func(a, b xupload.CollectionUsage) int {
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	remaining := report.Overflow
	for _, c := range candidates {
		if remaining <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := q.root.RemoveAll(c.Name); err != nil {
			return report, fmt.Errorf("evict %s: %w", c.Name, err)
		}
		slog.Info("evicted collection", "collection", c.Name, "bytes", c.Size, "objects", c.Objects)

		report.Evicted = append(report.Evicted, c)
		report.Freed += c.Size
		remaining -= c.Size
	}

	if remaining > 0 {
		slog.Warn("quota still exceeded after eviction", "scope", scope, "budget", budget, "overflow", remaining)
	}

	return report, nil
}

// Usage returns the accounted size of every collection directly below scope.
// Regular files in scope itself are not accounted. A missing scope has no
// collections.
func (q *Quota) Usage(ctx context.Context, scope string) ([]xupload.CollectionUsage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scope = slashPath(scope)
	entries, err := fs.ReadDir(q.root.FS(), scope)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("usage %s: %w", scope, err)
	}

	usage := make([]xupload.CollectionUsage, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		u, err := q.collectionUsage(path.Join(scope, entry.Name()))
		if err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}

	return usage, nil
}

func (q *Quota) collectionUsage(dir string) (xupload.CollectionUsage, error) {
	u := xupload.CollectionUsage{Name: dir}

	err := fs.WalkDir(q.root.FS(), dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// concurrently removed entries are simply not counted
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), xupload.DataSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		u.Size += info.Size()
		u.Objects++
		if info.ModTime().After(u.ModTime) {
			u.ModTime = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return xupload.CollectionUsage{}, fmt.Errorf("walk %s: %w", dir, err)
	}

	return u, nil
}

// addSaturating adds two non-negative sizes, clamping at math.MaxInt64.
func addSaturating(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func slashPath(p string) string {
	p = path.Clean(strings.ReplaceAll(p, string(os.PathSeparator), "/"))
	if p == "" {
		return "."
	}
	return p
}
