package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/preloader/engine/assets"
)

var classifyFont string

var classifyCmd = &cobra.Command{
	Use:   "classify <src>...",
	Short: "Print the resource kind of each source",
	Long: `Print the resource kind the preloader would dispatch each source to.
Unknown extensions are reported as such; preloading them aborts a run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descs := make([]assets.Descriptor, 0, len(args)+1)
		for _, src := range args {
			descs = append(descs, assets.Source(src))
		}
		if classifyFont != "" {
			descs = append(descs, assets.Font(classifyFont))
		}
		unknown := classify(cmd.OutOrStdout(), descs)
		if unknown > 0 {
			return fmt.Errorf("%d source(s) have an unknown kind", unknown)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyFont, "font", "", "also classify a font family declared by name")
	RootCmd.AddCommand(classifyCmd)
}

// classify writes one line per descriptor and returns how many are unknown.
func classify(w io.Writer, descs []assets.Descriptor) int {
	unknown := 0
	for _, d := range descs {
		kind, ext := assets.Classify(d)
		switch kind {
		case assets.KindUnknown:
			unknown++
			fmt.Fprintf(w, "%s\tunknown (%q)\n", d.Key(), ext)
		default:
			fmt.Fprintf(w, "%s\t%s\n", d.Key(), kind)
		}
	}
	return unknown
}
