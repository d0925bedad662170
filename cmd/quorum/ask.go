package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"quorum/internal/council"
	"quorum/internal/logging"
	"quorum/internal/model"
)

var flagImage string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run a single question through the council and print the answer",
	Long: `Submits one question, waits for the fan-out, refinement, and synthesis
stages, and streams the final answer to stdout as it arrives. Sources are
printed after the answer completes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&flagImage, "image", "", "path to an image to attach to the question")
}

// loadAttachment reads the flagged image file, inferring the MIME type from
// the extension.
func loadAttachment(path string) (*council.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".webp":
		mime = "image/webp"
	case ".gif":
		mime = "image/gif"
	default:
		return nil, fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}
	return &council.Attachment{MIMEType: mime, Data: data}, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err = logging.Init(cfg.Logging.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	question := strings.Join(args, " ")

	var image *council.Attachment
	if flagImage != "" {
		if image, err = loadAttachment(flagImage); err != nil {
			return err
		}
	}

	updates := make(chan struct{}, 1)
	notify := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}
	runner := buildRunner(cfg, notify)

	if err := runner.Submit(context.Background(), question, image); err != nil {
		return err
	}

	var printed int
	lastStatus := ""
	for {
		<-updates

		if status := runner.Status(); status != "" && status != lastStatus {
			fmt.Fprintf(os.Stderr, "%s\n", status)
			lastStatus = status
		}

		turns := runner.Log().Snapshot()
		last := turns[len(turns)-1]
		if last.Role != model.RoleModel {
			continue
		}

		if last.IsError {
			fmt.Fprintln(os.Stderr, last.Text())
			return fmt.Errorf("run failed")
		}

		// Stream only the unseen suffix of the growing answer.
		text := last.Text()
		if len(text) > printed {
			fmt.Print(text[printed:])
			printed = len(text)
		}

		if last.Final {
			fmt.Println()
			if len(last.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, s := range last.Sources {
					title := s.Title
					if title == "" {
						title = s.URI
					}
					fmt.Printf("  %d. %s (%s)\n", i+1, title, s.URI)
				}
			}
			return nil
		}
	}
}
