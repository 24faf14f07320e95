package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/runwatch/internal/display"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
)

// snapshot is the on-disk shape read by the view command. JSON documents
// are valid YAML, so both formats decode through yaml.v3.
type snapshot struct {
	Progress  *progress.Aggregate  `yaml:"progress"`
	Screening *screening.Aggregate `yaml:"screening"`
}

func newViewCmd() *cobra.Command {
	var format, color string
	cmd := &cobra.Command{
		Use:   "view <snapshot-file|->",
		Short: "Derive the display view from a snapshot file",
		Long: `Reads a YAML or JSON document with optional "progress" and "screening"
keys and prints the view a status indicator would render. Use "-" for stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			view := display.Derive(snap.Progress, snap.Screening)
			return printView(cmd.OutOrStdout(), view, format, color)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text or json")
	cmd.Flags().StringVar(&color, "color", "auto", "text coloring: auto, always or never")
	return cmd
}

func readSnapshot(stdin io.Reader, path string) (snapshot, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func printView(w io.Writer, view display.View, format, color string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("encode view: %w", err)
		}
		return nil
	case "text":
		pal, err := newPalette(w, color)
		if err != nil {
			return err
		}
		if !view.Visible() {
			_, err := fmt.Fprintln(w, "(nothing to display)")
			return err
		}
		line := fmt.Sprintf("[%s] %s %.0f%%", view.Mode, pal.label(view), view.DisplayPct)
		if view.Position != "" {
			line += " (" + view.Position + ")"
		}
		if view.VerdictColorKey != nil {
			line += " {" + pal.verdict(*view.VerdictColorKey) + "}"
		}
		if view.Tone != "" {
			line += " {" + pal.tone(view.Tone) + "}"
		}
		_, err = fmt.Fprintln(w, line)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
