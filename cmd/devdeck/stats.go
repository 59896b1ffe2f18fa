package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/ledger"
	"pkt.systems/pslog"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	goalMetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newStatsCmd() *cobra.Command {
	var cfgPath string
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recent activity, goal progress, and streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg.DataDir, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			summary, err := l.Summary(cmd.Context(), days)
			if err != nil {
				return err
			}
			return renderSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().IntVar(&days, "days", 7, "number of days to show")
	return cmd
}

func renderSummary(w io.Writer, summary ledger.Summary) error {
	goal := summary.Goals.DailyCodingTimeGoalSeconds
	rows := make([][]string, 0, len(summary.Days))
	for _, day := range summary.Days {
		active := formatSeconds(day.Stats.ActiveCodingTimeSeconds)
		if goal > 0 && day.Stats.ActiveCodingTimeSeconds >= goal {
			active = goalMetStyle.Render(active)
		}
		langs := ledger.Languages(day.Stats)
		names := make([]string, 0, len(langs))
		for _, lang := range langs {
			names = append(names, string(lang))
		}
		rows = append(rows, []string{
			string(day.Day),
			active,
			fmt.Sprint(day.Stats.FilesSaved),
			fmt.Sprint(day.Stats.CodeExecutions),
			fmt.Sprint(day.Stats.AIHelps),
			fmt.Sprint(day.Stats.AIRefactors),
			strings.Join(names, ", "),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("day", "active", "saves", "runs", "explains", "refactors", "languages").
		Rows(rows...)

	var b strings.Builder
	b.WriteString(headingStyle.Render("Activity"))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("Total active:"), formatSeconds(summary.Totals.ActiveCodingTimeSeconds))
	if goal > 0 {
		fmt.Fprintf(&b, "%s %s per day\n", headingStyle.Render("Daily goal:"), formatSeconds(goal))
	} else {
		fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("Daily goal:"), dimStyle.Render("disabled"))
	}
	last := "never"
	if summary.Streak.LastDayCompleted != nil {
		last = string(*summary.Streak.LastDayCompleted)
	}
	fmt.Fprintf(&b, "%s %d (longest %d, last %s)\n", headingStyle.Render("Streak:"), summary.Streak.Current, summary.Streak.Longest, last)
	_, err := io.WriteString(w, b.String())
	return err
}

func formatSeconds(secs int64) string {
	d := time.Duration(secs) * time.Second
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}
