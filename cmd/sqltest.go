package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/fixture"
)

var sqltestEngine string

var sqltestCmd = &cobra.Command{
	Use:   "sqltest [dir]",
	Short: "Run a directory of .sqltest fixtures against the engine",
	Long: `Load every .sqltest file under the directory, build both baselines
from its DDL sections, and check that the generated statements match the
expected sequence. Failures print the expected and actual statements.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := fixture.Glob(args[0])
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no .sqltest files under %s", args[0])
		}

		r := fixture.NewRunner(sqltestEngine)
		failed := 0
		for _, path := range paths {
			f, err := fixture.Load(path)
			if err != nil {
				return err
			}
			if err := r.Run(f); err != nil {
				failed++
				fmt.Printf("FAIL %s\n%v\n", f.Name, err)
				continue
			}
			fmt.Printf("ok   %s\n", f.Name)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d fixtures failed", failed, len(paths))
		}
		fmt.Printf("%d fixtures passed.\n", len(paths))
		return nil
	},
}

func init() {
	sqltestCmd.Flags().StringVar(&sqltestEngine, "engine", "mysql", "target engine for quirk compensation")
	rootCmd.AddCommand(sqltestCmd)
}
