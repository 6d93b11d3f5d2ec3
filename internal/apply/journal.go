package apply

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Journal checkpoints migration progress so an interrupted run can resume
// at the first unexecuted statement instead of replaying DDL that already
// ran.
type Journal struct {
	Target     string    `yaml:"target"`
	StartedAt  time.Time `yaml:"started_at"`
	Statements []string  `yaml:"statements"`
	NextIndex  int       `yaml:"next_index"`
	Done       bool      `yaml:"done,omitempty"`

	path string
}

// NewJournal creates a journal at path for one statement sequence
// against one target.
func NewJournal(path, target string, statements []string) *Journal {
	return &Journal{
		Target:     target,
		StartedAt:  time.Now(),
		Statements: statements,
		path:       path,
	}
}

// LoadJournal reads a journal from disk. A missing file is not an error;
// it returns nil.
func LoadJournal(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	j := &Journal{path: path}
	if err := yaml.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("parsing journal: %w", err)
	}
	return j, nil
}

// Save writes the journal to disk.
func (j *Journal) Save() error {
	data, err := yaml.Marshal(j)
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	return nil
}

// Resume validates that the journal belongs to the given target and
// returns the index to continue from. The journal's own statement list
// is the plan to replay: the target has already absorbed the executed
// prefix, so a plan recomputed from the live schema holds only the
// residual statements and cannot stand in for it.
func (j *Journal) Resume(target string) (int, error) {
	if j.Done {
		return len(j.Statements), nil
	}
	if j.Target != target {
		return 0, fmt.Errorf("journal was written for target %s, not %s", j.Target, target)
	}
	return j.NextIndex, nil
}

// Advance records that the statement at index ran, checkpointing to disk.
func (j *Journal) Advance(index int) error {
	j.NextIndex = index + 1
	return j.Save()
}

// Finish marks the journal complete.
func (j *Journal) Finish() error {
	j.Done = true
	return j.Save()
}

// Remove deletes the journal file.
func (j *Journal) Remove() error {
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
