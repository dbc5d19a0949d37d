package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".wav":  {},
	".ogg":  {},
	".oga":  {},
	".flac": {},
	".aac":  {},
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".gif":  {},
	".bmp":  {},
	".tiff": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Queue new study material for processing",
	}

	addCmd.AddCommand(newAddTextCommand(ctx))
	addCmd.AddCommand(newAddFileCommand(ctx))
	addCmd.AddCommand(newAddYouTubeCommand(ctx))
	return addCmd
}

type addFlags struct {
	title    string
	language string
	user     string
}

func (f *addFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Title for the new source")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "ISO language hint (e.g. en, de)")
	cmd.Flags().StringVarP(&f.user, "user", "u", "local", "Owner of the new source")
}

func newAddTextCommand(ctx *commandContext) *cobra.Command {
	var flags addFlags
	var fromFile string

	cmd := &cobra.Command{
		Use:   "text [content]",
		Short: "Queue pasted or piped text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := resolveTextInput(cmd.InOrStdin(), args, fromFile)
			if err != nil {
				return err
			}
			return ctx.withEnv(func(cfg *config.Config, env *pipeline.Env) error {
				source, err := env.Ingest(cmd.Context(), flags.user, queue.SourceText, pipeline.IngestOptions{
					Title:        flags.title,
					RawText:      text,
					LanguageCode: flags.language,
				})
				if err != nil {
					return err
				}
				reportQueued(cmd, source)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read the text from a file instead of arguments")
	return cmd
}

func newAddFileCommand(ctx *commandContext) *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Queue an audio recording, PDF, or image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, sourceType, err := classifyFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnv(func(cfg *config.Config, env *pipeline.Env) error {
				source, err := env.Ingest(cmd.Context(), flags.user, sourceType, pipeline.IngestOptions{
					Title:        flags.title,
					StoragePath:  absPath,
					LanguageCode: flags.language,
				})
				if err != nil {
					return err
				}
				reportQueued(cmd, source)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newAddYouTubeCommand(ctx *commandContext) *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:     "youtube <url>",
		Aliases: []string{"yt"},
		Short:   "Queue a YouTube video transcript",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			if url == "" {
				return fmt.Errorf("youtube url is required")
			}
			return ctx.withEnv(func(cfg *config.Config, env *pipeline.Env) error {
				source, err := env.Ingest(cmd.Context(), flags.user, queue.SourceYouTube, pipeline.IngestOptions{
					Title:        flags.title,
					StoragePath:  url,
					LanguageCode: flags.language,
				})
				if err != nil {
					return err
				}
				reportQueued(cmd, source)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func resolveTextInput(stdin io.Reader, args []string, fromFile string) (string, error) {
	if fromFile = strings.TrimSpace(fromFile); fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no text provided; pass it as an argument, via --file, or on stdin")
	}
	return string(data), nil
}

func classifyFile(path string) (string, queue.SourceType, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", "", fmt.Errorf("file path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("resolve file path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("path %q is a directory", absPath)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	switch {
	case ext == ".pdf":
		return absPath, queue.SourcePDF, nil
	case hasExtension(audioExtensions, ext):
		return absPath, queue.SourceAudio, nil
	case hasExtension(imageExtensions, ext):
		return absPath, queue.SourceImage, nil
	default:
		return "", "", fmt.Errorf("unsupported file extension %q", ext)
	}
}

func hasExtension(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

func reportQueued(cmd *cobra.Command, source *queue.Source) {
	title := strings.TrimSpace(source.Title)
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued source #%d (%s) as %s\n", source.ID, title, source.SourceType)
}
