package cli

import (
	"fmt"
	"strconv"

	"applimon/internal/marker"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

func newMarkerCommand(opts *options) *cobra.Command {
	var (
		size       int
		pad        int
		out        string
		dictionary string
	)

	cmd := &cobra.Command{
		Use:   "marker <id>",
		Short: "Write a printable marker image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("marker id %q is not a number", args[0])
			}
			dict, err := marker.ParseDictionary(dictionary)
			if err != nil {
				return err
			}

			raw, err := marker.Generate(dict, id, size)
			if err != nil {
				return err
			}
			defer raw.Close()

			img := raw
			if pad > 0 {
				padded := marker.Quiet(raw, pad)
				defer padded.Close()
				img = padded
			}

			if out == "" {
				out = fmt.Sprintf("marker_%d.png", id)
			}
			if !gocv.IMWrite(out, img) {
				return fmt.Errorf("failed to write %s", out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "marker %d (%s) written to %s\n", id, dictionary, out)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 200, "marker side in pixels, border included")
	cmd.Flags().IntVar(&pad, "pad", 20, "white quiet zone around the marker in pixels")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default marker_<id>.png)")
	cmd.Flags().StringVar(&dictionary, "dictionary", "4x4_50", "marker dictionary")
	return cmd
}
