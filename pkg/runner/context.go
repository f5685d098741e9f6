package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harrisonrobin/estima/pkg/model"
)

const noChildren = "Aucune tâche liée."

// ErrChildrenUnreadable means a record links children but none of them
// could be read.
var ErrChildrenUnreadable = eris.New("no linked child could be read")

// extraContext renders every other non-empty property as "name: value",
// sorted by name.
func extraContext(p Profile, rec model.Record) string {
	skip := p.tracked()
	var lines []string
	for _, name := range rec.Names() {
		if skip[name] {
			continue
		}
		v := rec.Get(name)
		if v.Empty() {
			continue
		}
		lines = append(lines, name+": "+v.String())
	}
	return strings.Join(lines, "\n")
}

// childrenSummary describes the linked child records, one line each.
// Unreadable children are left out, but at least one must be readable.
func (r *Runner) childrenSummary(ctx context.Context, p Profile, rec model.Record, logger *zap.Logger) (string, error) {
	ids := rec.Get(p.Children).List
	if len(ids) == 0 {
		return noChildren, nil
	}

	limit := len(ids)
	if p.ChildLimit > 0 && limit > p.ChildLimit {
		limit = p.ChildLimit
	}
	var lines []string
	for _, id := range ids[:limit] {
		child, err := r.store.Page(ctx, id)
		if err != nil {
			logger.Debug("child unreadable", zap.String("child_id", id), zap.Error(err))
			continue
		}
		name := child.TextOr(p.ChildTitle, "Tâche")
		if est := child.Get(p.ChildEstimate); est.Positive() {
			lines = append(lines, fmt.Sprintf("- %s: ~%sh estimé", name, est.String()))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: non estimé", name))
		}
	}
	if len(lines) == 0 {
		return "", eris.Wrapf(ErrChildrenUnreadable, "%d linked", len(ids))
	}
	return strings.Join(lines, "\n"), nil
}
