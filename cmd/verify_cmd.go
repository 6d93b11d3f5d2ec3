package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/engine"
	"github.com/mydiff/mydiff/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [old] [new]",
	Short: "Check that two schema sources are structurally identical",
	Long: `Introspect both sources and report whether any structural difference
remains. Exit code 0 means the schemas converged; a mismatch lists the
residual differences and exits non-zero.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldSrc, newSrc, err := resolveSources(args)
		if err != nil {
			return err
		}

		e := engine.New(logger)
		desired, err := e.ReadSource(cmd.Context(), newSrc)
		if err != nil {
			return err
		}

		err = e.Verify(cmd.Context(), oldSrc, desired)
		var merr *verify.MismatchError
		if errors.As(err, &merr) {
			fmt.Println("Schemas differ:")
			for _, t := range merr.Residual.Added {
				fmt.Printf("  missing table %s\n", t.Name)
			}
			for _, t := range merr.Residual.Dropped {
				fmt.Printf("  unexpected table %s\n", t.Name)
			}
			for _, td := range merr.Residual.Modified {
				fmt.Printf("  table %s differs\n", td.Name)
			}
			return err
		}
		if err != nil {
			return err
		}

		fmt.Println("Schemas are structurally identical.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
