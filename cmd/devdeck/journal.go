package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/journal"
	"pkt.systems/pslog"
)

func newJournalCmd() *cobra.Command {
	var cfgPath string
	var limit int
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the activity journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return errors.New("journal is disabled in config")
			}
			j, err := journal.Open(cmd.Context(), cfg.Journal.Path, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			totals, err := j.Totals(cmd.Context(), time.Now().Add(-since))
			if err != nil {
				return err
			}
			return renderJournal(cmd.OutOrStdout(), entries, totals, since)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent entries")
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "window for totals")
	return cmd
}

func renderJournal(w io.Writer, entries []journal.Entry, totals []journal.Total, since time.Duration) error {
	recent := make([][]string, 0, len(entries))
	for _, e := range entries {
		secs := ""
		if e.Seconds > 0 {
			secs = formatSeconds(e.Seconds)
		}
		recent = append(recent, []string{
			e.At.Local().Format("2006-01-02 15:04:05"),
			string(e.Kind),
			secs,
			string(e.Language),
		})
	}
	sums := make([][]string, 0, len(totals))
	for _, t := range totals {
		sums = append(sums, []string{string(t.Kind), fmt.Sprint(t.Count), formatSeconds(t.Seconds)})
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render("Recent activity"))
	b.WriteString("\n")
	if len(recent) == 0 {
		b.WriteString(dimStyle.Render("no entries"))
	} else {
		b.WriteString(table.New().Border(lipgloss.NormalBorder()).Headers("at", "kind", "seconds", "language").Rows(recent...).String())
	}
	b.WriteString("\n")
	b.WriteString(headingStyle.Render(fmt.Sprintf("Totals (last %s)", since)))
	b.WriteString("\n")
	if len(sums) == 0 {
		b.WriteString(dimStyle.Render("no entries"))
	} else {
		b.WriteString(table.New().Border(lipgloss.NormalBorder()).Headers("kind", "count", "seconds").Rows(sums...).String())
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
