package fixture

import (
	"strings"

	"github.com/mydiff/mydiff/internal/diff"
	"github.com/mydiff/mydiff/internal/generate"
	"github.com/mydiff/mydiff/internal/introspect"
)

// Runner executes fixtures against the diff engine for one target
// engine identity.
type Runner struct {
	Engine string
}

// NewRunner returns a Runner. An empty engine defaults to mysql, the
// engine the fixture corpus was written against.
func NewRunner(engine string) *Runner {
	if engine == "" {
		engine = "mysql"
	}
	return &Runner{Engine: engine}
}

// FailError reports a fixture whose generated statements differ from the
// expected sequence.
type FailError struct {
	Name     string
	Expected []string
	Actual   []string
}

func (e *FailError) Error() string {
	return "fixture " + e.Name + " failed:\nexpected:\n  " +
		strings.Join(e.Expected, "\n  ") + "\nactual:\n  " +
		strings.Join(e.Actual, "\n  ")
}

// Run builds both baselines, diffs them, generates statements and
// compares the result line by line against the fixture's expectation.
func (r *Runner) Run(f *Fixture) error {
	oldSchema, err := introspect.ParseScript(f.OldScript())
	if err != nil {
		return err
	}
	newSchema, err := introspect.ParseScript(f.NewScript())
	if err != nil {
		return err
	}

	cs := diff.Diff(oldSchema, newSchema)
	stmts, err := generate.New(r.Engine).Generate(cs)
	if err != nil {
		return err
	}

	actual := generate.SQLLines(stmts)
	expected := f.ExpectedLines()
	if !sameLines(expected, actual) {
		return &FailError{Name: f.Name, Expected: expected, Actual: actual}
	}
	return nil
}

// RunDir runs every .sqltest fixture under dir, collecting one error per
// failed fixture.
func (r *Runner) RunDir(dir string) []error {
	paths, err := Glob(dir)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, path := range paths {
		f, err := Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Run(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
