package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/apply"
	"github.com/mydiff/mydiff/internal/lock"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock and journal state",
	RunE: func(cmd *cobra.Command, args []string) error {
		held, pid, err := lock.IsHeld("")
		if err != nil {
			return fmt.Errorf("checking lock: %w", err)
		}
		if held {
			fmt.Printf("Lock:    held by PID %d\n", pid)
		} else {
			fmt.Println("Lock:    free")
		}

		j, err := apply.LoadJournal(journalPath())
		if err != nil {
			return fmt.Errorf("reading journal: %w", err)
		}
		switch {
		case j == nil:
			fmt.Println("Journal: none")
		case j.Done:
			fmt.Printf("Journal: complete (%d statements against %s)\n", len(j.Statements), j.Target)
		default:
			fmt.Printf("Journal: in progress, %d of %d statements applied against %s\n",
				j.NextIndex, len(j.Statements), j.Target)
			fmt.Println("         rerun `mydiff apply --resume` to continue")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
