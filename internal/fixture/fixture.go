// Package fixture loads and runs .sqltest files, the declarative
// acceptance format for the diff engine. A fixture describes two schema
// baselines as DDL and the exact statement sequence the engine must emit
// to migrate one to the other.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixture is one parsed .sqltest file. Sections are raw SQL text:
//
//	<both>      applied to both the old and new baselines
//	<old>       applied only to the old baseline
//	<new>       applied only to the new baseline
//	<expected>  the statement sequence the engine must produce;
//	            defaults to the <new> section when absent
//
// Every section is optional, but at least one of <new> or <expected>
// must be present.
type Fixture struct {
	Name     string
	Both     string
	Old      string
	New      string
	Expected string

	hasExpected bool
}

// Load reads and parses the fixture file at path. The fixture name is
// the file name without its extension.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, string(data))
}

// Parse parses fixture text. Lines starting with # and blank lines are
// skipped; a <section> line switches the target section.
func Parse(name, text string) (*Fixture, error) {
	f := &Fixture{Name: name}
	sections := map[string]*string{
		"<both>":     &f.Both,
		"<old>":      &f.Old,
		"<new>":      &f.New,
		"<expected>": &f.Expected,
	}

	var target *string
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if sec, ok := sections[line]; ok {
			target = sec
			if line == "<expected>" {
				f.hasExpected = true
			}
			continue
		}
		if target == nil {
			return nil, fmt.Errorf("fixture %s line %d: SQL before any <section> directive", name, i+1)
		}
		*target += line + "\n"
	}

	if f.New == "" && !f.hasExpected {
		return nil, fmt.Errorf("fixture %s: needs a <new> or <expected> section", name)
	}
	return f, nil
}

// OldScript returns the DDL that builds the old baseline.
func (f *Fixture) OldScript() string { return f.Both + f.Old }

// NewScript returns the DDL that builds the new baseline.
func (f *Fixture) NewScript() string { return f.Both + f.New }

// ExpectedLines returns the expected statement sequence, one trimmed
// non-blank line per statement.
func (f *Fixture) ExpectedLines() []string {
	src := f.New
	if f.hasExpected {
		src = f.Expected
	}
	var lines []string
	for _, line := range strings.Split(src, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Glob lists the .sqltest files under dir in name order.
func Glob(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.sqltest"))
	if err != nil {
		return nil, err
	}
	return paths, nil
}
