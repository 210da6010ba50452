package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

func newListCmd(a *app) *cobra.Command {
	var (
		page    int
		limit   int
		asJSON  bool
		showURL bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of the photo list",
		Example: `  gallery list
  gallery list --page 3 --limit 50
  gallery list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = a.config.Gallery.PageSize
			}

			c, release, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			photos, err := c.ListPhotos(cmd.Context(), page, limit)
			if err != nil {
				return err
			}

			views := c.Links().Views(photos)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			if len(views) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No photos on page %d.\n", page)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), photoTable(views, showURL))
			if len(photos) < limit {
				fmt.Fprintln(cmd.OutOrStdout(), "You've reached the end!")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "photos per page (default gallery.page_size)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&showURL, "urls", false, "include thumbnail URLs")

	return cmd
}

func photoTable(views []photo.View, showURL bool) string {
	headers := []string{"ID", "AUTHOR", "DIMENSIONS", "RATIO"}
	if showURL {
		headers = append(headers, "THUMBNAIL")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, v := range views {
		row := []string{v.ID, v.Author, strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height), v.AspectRatio}
		if showURL {
			row = append(row, v.Thumbnail)
		}
		t.Row(row...)
	}
	return t.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
