package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rumor-ml/deckhand/internal/config"
	"github.com/rumor-ml/deckhand/internal/draftcache"
	"github.com/rumor-ml/deckhand/internal/log"
	"github.com/rumor-ml/deckhand/internal/session"
	"github.com/rumor-ml/deckhand/internal/store"
	"github.com/rumor-ml/deckhand/internal/ui/cardeditor"
)

var editCmd = &cobra.Command{
	Use:   "edit [card-id]",
	Short: "Create or edit a card",
	Long: `Opens the card editor. Without an argument a new card is created;
with a card ID the existing card is edited. Unsaved drafts are kept
locally and restored the next time the editor opens.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if cfg.Project.ID == "" {
		return fmt.Errorf("no project configured; run 'deckhand init' and set project.id")
	}

	home, _ := os.UserHomeDir()
	cleanup, err := log.Init(filepath.Join(home, ".local", "state", "deckhand", "deckhand.log"))
	if err != nil {
		return fmt.Errorf("initializing log: %w", err)
	}
	defer cleanup()

	ctx := context.Background()

	st, err := store.NewFirestoreStore(ctx, cfg.Project.ID, cfg.Project.Credentials)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = st.Close() }()

	provider := session.NewFirebaseProvider(ctx, cfg.Project.ID, cfg.Project.Credentials, cfg.Session.TokenPath)
	defer provider.Stop()

	sessions := session.NewManager(provider,
		session.WithRetrySchedule(cfg.Session.AttachRetries, cfg.Session.AttachBackoff))
	sessions.Attach()
	defer sessions.Detach()

	drafts, err := draftcache.Open(cfg.Editor.DraftCache)
	if err != nil {
		// Draft persistence is a convenience; the editor works without it.
		log.Warn(log.CatEditor, "draft cache unavailable", "error", err)
		drafts = nil
	} else {
		defer func() { _ = drafts.Close() }()
	}

	cardID := ""
	if len(args) == 1 {
		cardID = args[0]
	}

	m := cardeditor.New(cardeditor.Config{
		Store:      st,
		Sessions:   sessions,
		Drafts:     drafts,
		Collection: cfg.Project.Collection,
		CardID:     cardID,
		Timeout:    cfg.Editor.SaveTimeout,
	})

	p := tea.NewProgram(program{m}, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// program adapts the editor model to the tea.Model interface.
type program struct {
	editor cardeditor.Model
}

func (p program) Init() tea.Cmd { return p.editor.Init() }

func (p program) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	p.editor, cmd = p.editor.Update(msg)
	return p, cmd
}

func (p program) View() string { return p.editor.View() }
