package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <photo-id>",
		Short: "Print a photo's details",
		Long: `Looks up one photo. The info endpoint is tried first; when it fails the
photo list is scanned page by page up to gallery.scan_page_limit.`,
		Example: `  gallery show 237
  gallery show 237 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			p, err := c.GetPhoto(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			v := c.Links().View(p)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), v)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s\n%s\n\n", v.Title, v.Description)
			fmt.Fprintf(&b, "%-14s #%s\n", "Photo ID", v.ID)
			fmt.Fprintf(&b, "%-14s %s\n", "Photographer", v.Author)
			fmt.Fprintf(&b, "%-14s %s\n", "Dimensions", v.Dimensions)
			fmt.Fprintf(&b, "%-14s %s\n", "Aspect Ratio", v.AspectRatio)
			fmt.Fprintf(&b, "%-14s %s\n", "Full size", v.FullSize)
			fmt.Fprintf(&b, "%-14s %s\n", "Download", v.Download)
			fmt.Fprintf(&b, "%-14s %s\n", "Source", v.Source)
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}
