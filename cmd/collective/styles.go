package main

import (
	"fmt"
	"sort"
	"strings"

	"collective/internal/colony"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	colorPrimary = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6b7a90")
	colorInfo    = lipgloss.Color("#2196F3")
	colorWarning = lipgloss.Color("#FFC107")
	colorDanger  = lipgloss.Color("#e53935")
	colorBorder  = lipgloss.Color("#2a3850")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted).Width(18)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorInfo).MarginTop(1)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

func threatStyle(level colony.ThreatLevel) lipgloss.Style {
	switch level {
	case colony.ThreatCritical, colony.ThreatHigh:
		return lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	case colony.ThreatMedium:
		return lipgloss.NewStyle().Foreground(colorWarning)
	default:
		return mutedStyle
	}
}

func logStyle(t colony.LogType) lipgloss.Style {
	switch t {
	case colony.LogError:
		return lipgloss.NewStyle().Foreground(colorDanger)
	case colony.LogWarning:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case colony.LogSuccess, colony.LogSpawn:
		return lipgloss.NewStyle().Foreground(colorPrimary)
	default:
		return lipgloss.NewStyle()
	}
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

// renderStatus renders a snapshot as a styled report. logs bounds how many
// recent log lines are shown.
func renderStatus(snap colony.Snapshot, logs int) string {
	s := snap.State
	var b strings.Builder

	running := "stopped"
	if s.IsRunning {
		running = "running"
	}

	header := []string{
		titleStyle.Render(s.Identity),
		row("Status", running),
		row("Tick", fmt.Sprintf("%d", snap.Counters.Tick)),
		row("Agents", fmt.Sprintf("%d / %d", len(s.Agents), s.Policy.MaxAgents)),
		row("Average PAS", fmt.Sprintf("%.2f", s.AveragePAS)),
		row("Min PAS", fmt.Sprintf("%.2f", s.Policy.MinPAS)),
		row("Approval", fmt.Sprintf("%.0f%%", s.Policy.ApprovalThreshold*100)),
		row("Pending", fmt.Sprintf("%d proposals", len(s.Proposals))),
	}
	b.WriteString(panelStyle.Render(strings.Join(header, "\n")))
	b.WriteString("\n")

	if len(s.Agents) > 0 {
		b.WriteString(sectionStyle.Render("Agents"))
		b.WriteString("\n")
		agents := make([]colony.Agent, len(s.Agents))
		copy(agents, s.Agents)
		sort.SliceStable(agents, func(i, j int) bool { return agents[i].PAS > agents[j].PAS })
		for _, a := range agents {
			fmt.Fprintf(&b, "  %-14s %-10s %-12s pas %.2f  age %d\n", a.ID, a.Type, a.Role, a.PAS, a.Age)
		}
	}

	if len(s.Proposals) > 0 {
		b.WriteString(sectionStyle.Render("Proposals"))
		b.WriteString("\n")
		for _, p := range s.Proposals {
			fmt.Fprintf(&b, "  %-14s %s %s\n", p.ID, p.Action.Describe(),
				mutedStyle.Render(fmt.Sprintf("(tally %d, %d voted)", p.Tally, len(p.Voted))))
		}
	}

	if len(s.Threats) > 0 {
		b.WriteString(sectionStyle.Render("Intel"))
		b.WriteString("\n")
		for _, t := range s.Threats[:min(5, len(s.Threats))] {
			fmt.Fprintf(&b, "  %s %s\n", threatStyle(t.Level).Render(fmt.Sprintf("%-8s", t.Level)), t.Description)
		}
	}

	if logs > 0 && len(s.Logs) > 0 {
		b.WriteString(sectionStyle.Render("Log"))
		b.WriteString("\n")
		for _, l := range s.Logs[:min(logs, len(s.Logs))] {
			b.WriteString("  " + logStyle(l.Type).Render(l.Message) + "\n")
		}
	}

	return b.String()
}
