package main

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-chat/internal/helper"
	"pdf-chat/internal/session"
	"pdf-chat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [pdf...]",
	Short: "Chat in the terminal",
	Long:  `Chat in the terminal. PDFs given as arguments are processed on start; more can be loaded with /process.`,
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// keep log lines off the screen
	logPath := filepath.Join(os.TempDir(), "pdf-chat.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	setupLogger(cfg.Log, logFile)

	ctx := cmd.Context()
	pipeline, closeStores, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	sess := session.New(id, pipeline)
	defer sess.Close(ctx)

	title := cfg.UI.PageTitle + " " + cfg.UI.PageIcon
	if _, err := tea.NewProgram(tui.New(ctx, sess, title, args), tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	log.Info().Int("turns", len(sess.History())).Msg("Chat ended")
	return nil
}
