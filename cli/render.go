package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/compozy/logscout/engine/llm/orchestrator"
	"github.com/compozy/logscout/engine/logs"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B731"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func statusBadge(status orchestrator.ToolCallStatus) string {
	label := strings.ToUpper(string(status))
	switch status {
	case orchestrator.StatusSuccess:
		return successStyle.Render(label)
	case orchestrator.StatusError:
		return errorStyle.Render(label)
	default:
		return pendingStyle.Render(label)
	}
}

// renderToolCall formats one record as a single line.
func renderToolCall(record orchestrator.ToolCallRecord) string {
	line := fmt.Sprintf("%s %s(%s)", statusBadge(record.Status), record.ToolName, record.RawArguments)
	if d := record.Duration(); d > 0 {
		line += " " + mutedStyle.Render(d.Round(time.Millisecond).String())
	}
	switch {
	case record.Error != "":
		line += "\n  " + errorStyle.Render(record.Error)
	case record.ResultSummary != "":
		line += "\n  " + mutedStyle.Render(record.ResultSummary)
	}
	return line
}

// renderToolHistory boxes every tool call of a turn in dispatch order.
func renderToolHistory(records []orchestrator.ToolCallRecord) string {
	if len(records) == 0 {
		return ""
	}
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, headerStyle.Render(fmt.Sprintf("Tool calls (%d)", len(records))))
	for _, r := range records {
		lines = append(lines, renderToolCall(r))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderTurnFooter(result *orchestrator.TurnResult) string {
	parts := []string{fmt.Sprintf("%d iteration(s)", result.Iterations)}
	if result.RetryPrompts > 0 {
		parts = append(parts, fmt.Sprintf("%d retry prompt(s)", result.RetryPrompts))
	}
	if result.Nudges > 0 {
		parts = append(parts, fmt.Sprintf("%d nudge(s)", result.Nudges))
	}
	if result.Usage.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", result.Usage.TotalTokens))
	}
	if result.LimitReached {
		parts = append(parts, errorStyle.Render("iteration limit reached"))
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}

func renderGroups(groups []logs.LogGroup) string {
	if len(groups) == 0 {
		return mutedStyle.Render("No log groups stored yet.")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Log groups"))
	for _, g := range groups {
		fmt.Fprintf(&b, "\n%-32s %8d events  %s .. %s",
			g.Name, g.EventCount,
			g.FirstEvent.Format(time.RFC3339), g.LastEvent.Format(time.RFC3339))
	}
	return b.String()
}
