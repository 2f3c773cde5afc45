package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-chat/internal/helper"
	"pdf-chat/internal/parser"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks pdf...",
	Short: "Print the chunks a process action would index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChunks,
}

func init() {
	rootCmd.AddCommand(chunksCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
	files, closeAll, err := parser.OpenFiles(args)
	if err != nil {
		return err
	}
	defer closeAll()

	text, err := parser.ExtractText(files)
	if err != nil {
		return err
	}
	chunks, err := parser.NewSplitter(cfg.Chunker).SplitText(text)
	if err != nil {
		return err
	}
	log.Info().Int("documents", len(files)).Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(cmd.OutOrStdout(), chunks)
	return nil
}
