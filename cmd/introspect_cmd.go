package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/engine"
)

var introspectOutput string

var introspectCmd = &cobra.Command{
	Use:   "introspect [source]",
	Short: "Read a schema source and print it as a YAML snapshot",
	Long: `Introspect one schema source and emit the schema model as YAML. The
snapshot can later stand in for the live database as a diff source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, err := engine.New(logger).ReadSource(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if introspectOutput != "" {
			if err := sch.WriteYAML(introspectOutput); err != nil {
				return err
			}
			fmt.Printf("Wrote %s to %s\n", sch.Summary(), introspectOutput)
			return nil
		}

		out, err := sch.ToYAML()
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	introspectCmd.Flags().StringVarP(&introspectOutput, "output", "o", "", "write the snapshot to a file instead of stdout")
	rootCmd.AddCommand(introspectCmd)
}
