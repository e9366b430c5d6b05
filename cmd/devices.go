package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/scopeview/internal/backend"
	"github.com/smazurov/scopeview/internal/logging"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  `Enumerates V4L2 capture devices and prints their identities and labels.`,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{Level: "warn", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			found, err := backend.NewEnumerator().Enumerate(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "enumeration failed: %v\n", err)
				os.Exit(1)
			}

			if len(found) == 0 {
				fmt.Println("No capture devices found")
				return
			}

			for _, d := range found {
				label := d.Label
				if label == "" {
					label = "(no label)"
				}
				fmt.Printf("%-16s  %-12s  %s\n", d.Identity, d.Kind, label)
			}
		},
	}

	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")

	return cmd
}
