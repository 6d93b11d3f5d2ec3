package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/engine"
)

var diffSummary bool

var diffCmd = &cobra.Command{
	Use:   "diff [old] [new]",
	Short: "Compute the DDL that migrates old to new",
	Long: `Introspect both schema sources, diff them, and print the ordered DDL
statement sequence to stdout. An empty output means the schemas already
match.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldSrc, newSrc, err := resolveSources(args)
		if err != nil {
			return err
		}

		plan, err := engine.New(logger).Plan(cmd.Context(), oldSrc, newSrc)
		if err != nil {
			return err
		}

		if diffSummary {
			fmt.Printf("-- %d added, %d dropped, %d modified tables; %d statements\n",
				len(plan.Changes.Added), len(plan.Changes.Dropped),
				len(plan.Changes.Modified), len(plan.Statements))
		}
		for _, s := range plan.Statements {
			fmt.Println(s.SQL)
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffSummary, "summary", false, "prefix output with a change summary")
	rootCmd.AddCommand(diffCmd)
}
