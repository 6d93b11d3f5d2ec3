package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/apply"
	"github.com/mydiff/mydiff/internal/config"
	"github.com/mydiff/mydiff/internal/engine"
	"github.com/mydiff/mydiff/internal/generate"
	"github.com/mydiff/mydiff/internal/lock"
	"github.com/mydiff/mydiff/internal/review"
)

var (
	applyDryRun     bool
	applyReview     bool
	applyResume     bool
	applyJournal    string
	applySkipVerify bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [old] [new]",
	Short: "Apply the computed DDL to the old database",
	Long: `Compute the migration plan and execute it against the old source,
which must be a live database. After the statements run, the schema is
re-introspected and checked against the new source for convergence.

Engines without transactional DDL record progress in a journal; an
interrupted run continues with --resume.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldSrc, newSrc, err := resolveSources(args)
		if err != nil {
			return err
		}

		if err := lock.Acquire(""); err != nil {
			return err
		}
		defer lock.Release("")

		e := engine.New(logger)

		if applyResume {
			return resumeApply(cmd.Context(), e, oldSrc, newSrc)
		}

		plan, err := e.Plan(cmd.Context(), oldSrc, newSrc)
		if err != nil {
			return err
		}
		if plan.Empty() {
			fmt.Println("Schemas already match; nothing to apply.")
			return nil
		}

		if applyDryRun {
			for _, s := range plan.Statements {
				fmt.Println(s.SQL)
			}
			return nil
		}

		if applyReview {
			approved, err := runReview(plan.Statements)
			if err != nil {
				return err
			}
			if approved == nil {
				fmt.Println("Aborted.")
				return nil
			}
			plan.Statements = approved
		}

		journal, err := prepareJournal(oldSrc, plan)
		if err != nil {
			return err
		}

		if err := e.Apply(cmd.Context(), oldSrc, plan, journal); err != nil {
			return err
		}
		if journal != nil {
			defer journal.Remove()
		}

		if applySkipVerify {
			fmt.Printf("Applied %d statements.\n", len(plan.Statements))
			return nil
		}
		if err := e.Verify(cmd.Context(), oldSrc, plan.New); err != nil {
			return err
		}
		fmt.Printf("Applied %d statements; schemas converged.\n", len(plan.Statements))
		return nil
	},
}

// resumeApply replays the remaining statements of an interrupted journal.
// The journal is the plan here: the database already absorbed a prefix of
// it, so recomputing a plan would yield only the shorter residual sequence
// and never match what the interrupted run was executing.
func resumeApply(ctx context.Context, e *engine.Engine, oldSrc, newSrc string) error {
	path := journalPath()
	journal, err := apply.LoadJournal(path)
	if err != nil {
		return err
	}
	if journal == nil {
		return fmt.Errorf("no journal at %s; nothing to resume", path)
	}
	if journal.Done {
		fmt.Println("Journal is already complete; nothing to resume.")
		return journal.Remove()
	}

	if applyDryRun {
		for _, s := range journal.Statements[journal.NextIndex:] {
			fmt.Println(s)
		}
		return nil
	}

	remaining := len(journal.Statements) - journal.NextIndex
	fmt.Printf("Resuming at statement %d of %d.\n", journal.NextIndex+1, len(journal.Statements))
	if err := e.Resume(ctx, oldSrc, journal); err != nil {
		return err
	}
	defer journal.Remove()

	if applySkipVerify {
		fmt.Printf("Applied %d remaining statements.\n", remaining)
		return nil
	}
	desired, err := e.ReadSource(ctx, newSrc)
	if err != nil {
		return err
	}
	if err := e.Verify(ctx, oldSrc, desired); err != nil {
		return err
	}
	fmt.Printf("Applied %d remaining statements; schemas converged.\n", remaining)
	return nil
}

// prepareJournal creates the progress journal for a fresh plan. An
// unfinished journal on disk is an error, so a half-applied migration is
// never silently restarted from scratch.
func prepareJournal(oldSrc string, plan *engine.Plan) (*apply.Journal, error) {
	path := journalPath()
	existing, err := apply.LoadJournal(path)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Done {
		return nil, fmt.Errorf("journal %s holds an unfinished migration; rerun with --resume or remove it", path)
	}

	j := apply.NewJournal(path, oldSrc, generate.SQLLines(plan.Statements))
	if err := j.Save(); err != nil {
		return nil, err
	}
	return j, nil
}

func journalPath() string {
	if applyJournal != "" {
		return applyJournal
	}
	if cfg, err := config.Load(cfgFile); err == nil && cfg.Apply.JournalPath != "" {
		return cfg.Apply.JournalPath
	}
	return config.ExpandHome("~/.mydiff/journal.yaml")
}

func runReview(stmts []generate.Statement) ([]generate.Statement, error) {
	model := review.NewModel(stmts)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("running review: %w", err)
	}
	m, ok := final.(review.Model)
	if !ok {
		return nil, fmt.Errorf("unexpected review model type")
	}
	res := m.Result()
	if res == nil {
		return nil, nil
	}
	return res.Approved, nil
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "print the statements without executing them")
	applyCmd.Flags().BoolVar(&applyReview, "review", false, "interactively review statements before executing")
	applyCmd.Flags().BoolVar(&applyResume, "resume", false, "resume an interrupted migration from its journal")
	applyCmd.Flags().StringVar(&applyJournal, "journal", "", "journal path (default ~/.mydiff/journal.yaml)")
	applyCmd.Flags().BoolVar(&applySkipVerify, "skip-verify", false, "do not re-introspect after applying")
	rootCmd.AddCommand(applyCmd)
}
