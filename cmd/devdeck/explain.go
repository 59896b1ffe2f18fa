package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/schema"
)

func newExplainCmd() *cobra.Command {
	var cfgPath string
	var refactor bool
	var language string
	var plain bool
	cmd := &cobra.Command{
		Use:   "explain <file|->",
		Short: "Ask the assistant to explain or refactor code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			code, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			bridge := newBridge(cmd.Context(), cfg)
			out := cmd.OutOrStdout()

			if refactor {
				if language == "" {
					language = languageFor(args[0])
				}
				res := bridge.Refactor(cmd.Context(), code, language)
				if !res.Success {
					return errors.New(res.Message)
				}
				recordActivity(cmd.Context(), cfg, schema.ActivityEvent{Type: schema.ActivityAIRefactor})
				_, err := fmt.Fprintln(out, res.Code)
				return err
			}

			res := bridge.Explain(cmd.Context(), code)
			if !res.Success {
				return errors.New(res.Message)
			}
			recordActivity(cmd.Context(), cfg, schema.ActivityEvent{Type: schema.ActivityAIHelp})
			if plain {
				_, err := fmt.Fprintln(out, res.Text)
				return err
			}
			rendered, err := renderMarkdown(res.Text)
			if err != nil {
				rendered = res.Text
			}
			_, err = io.WriteString(out, rendered)
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&refactor, "refactor", false, "return refactored code instead of an explanation")
	cmd.Flags().StringVar(&language, "language", "", "language name for refactor prompts")
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	return cmd
}

func readSource(stdin io.Reader, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", arg, err)
	}
	return string(data), nil
}

func renderMarkdown(text string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

func languageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".go":
		return "go"
	case ".html", ".htm":
		return "html"
	default:
		return "code"
	}
}
