package cli

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/picsum-gallery/internal/tui"
	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
)

func newBrowseCmd(a *app) *cobra.Command {
	var (
		photoID string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the catalog in the terminal",
		Long: `Opens an infinitely scrolling photo grid. New pages load as the cursor
nears the end of the grid; enter opens a photo's details.

Logging is off while the browser owns the screen unless --log-file is set.`,
		Example: `  gallery browse
  gallery browse --photo 237
  gallery browse --log-file gallery.log --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := a.config.LogConfig()
			if logFile == "" {
				logCfg.Level = logging.LevelDisabled
			} else {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logCfg.Output = f
				logCfg.Pretty = false
			}
			logging.Setup(logCfg)

			c, release, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			gallery := pagination.New(c, a.config.PaginationConfig())
			defer gallery.Close()

			model := tui.New(cmd.Context(), gallery, tui.Options{
				Links:   c.Links(),
				Margin:  a.config.Gallery.TriggerMargin,
				Lookup:  c,
				PhotoID: photoID,
			})

			program := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("run browser: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&photoID, "photo", "", "open the detail view for this photo id")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while browsing")

	return cmd
}
