// Package verify checks convergence: after migration statements run, the
// migrated schema must be structurally identical to the desired one.
package verify

import (
	"fmt"
	"strings"

	"github.com/mydiff/mydiff/internal/diff"
	"github.com/mydiff/mydiff/internal/schema"
)

// MismatchError reports a schema that did not converge. Residual holds
// the change set still separating the actual schema from the desired one.
type MismatchError struct {
	Residual *diff.ChangeSet
}

func (e *MismatchError) Error() string {
	return "schemas did not converge: " + describe(e.Residual)
}

// Verify diffs actual against desired and returns nil only when no
// structural difference remains.
func Verify(actual, desired *schema.Schema) error {
	residual := diff.Diff(actual, desired)
	if residual.Empty() {
		return nil
	}
	return &MismatchError{Residual: residual}
}

// describe summarizes a change set as counted object categories, e.g.
// "2 missing tables, 1 differing table".
func describe(cs *diff.ChangeSet) string {
	var parts []string
	if n := len(cs.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing %s", n, plural(n, "table")))
	}
	if n := len(cs.Dropped); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unexpected %s", n, plural(n, "table")))
	}
	if n := len(cs.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d differing %s", n, plural(n, "table")))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
