package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/scopeview/internal/backend"
	"github.com/smazurov/scopeview/internal/capture"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/stream"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var output string
	var profileName string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot [device]",
		Short: "Capture a one-shot still",
		Long: `Opens the named capture device, grabs one frame at native resolution ` +
			`and writes it as a PNG file.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			identity := args[0]

			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("snapshot").With("identity", identity)

			profile, err := stream.ProfileByName(profileName)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			handle, err := backend.NewOpener().Open(ctx, profile.Constraints(identity))
			if err != nil {
				logger.Error("Failed to open device", "error", err)
				os.Exit(1)
			}
			defer handle.Stop()

			src, ok := handle.(capture.FrameSource)
			if !ok {
				logger.Error("Device does not support frame capture")
				os.Exit(1)
			}

			frame, err := src.CaptureFrame(ctx)
			if err != nil {
				logger.Error("Failed to capture frame", "error", err)
				os.Exit(1)
			}

			data, _, err := backend.NewPNGEncoder().Encode(frame)
			if err != nil {
				logger.Error("Failed to encode frame", "error", err)
				os.Exit(1)
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				logger.Error("Failed to write output", "error", err, "path", output)
				os.Exit(1)
			}

			fmt.Printf("Wrote %dx%d snapshot to %s (%d bytes)\n", frame.Width, frame.Height, output, len(data))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.png", "Output file path")
	cmd.Flags().StringVar(&profileName, "profile", "standard", "Quality profile (standard, compat)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Capture timeout")

	return cmd
}
