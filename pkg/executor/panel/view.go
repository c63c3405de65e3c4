package panel

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire panel interface. This is called by Bubble Tea
// whenever the UI needs to be redrawn.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.buildHeader()
	tips := m.buildTips()
	topStatus := m.buildTopStatus()
	banner := m.buildApprovalBanner()
	loadingIndicator := m.buildLoadingIndicator()
	inputBox := m.buildInputBox()
	bottomBar := m.buildBottomBar()

	viewportSection := m.viewport.View()

	baseView := m.assembleBaseView(header, tips, topStatus, banner, viewportSection, loadingIndicator, inputBox, bottomBar)

	// Add toast notification as overlay if active and not expired
	if m.toast.active && time.Now().Before(m.toast.showUntil) {
		baseView = renderToastOverlay(baseView, m.renderToast())
	}

	return baseView
}

// buildHeader renders the WebForge ASCII art header
func (m *model) buildHeader() string {
	return headerStyle.Render(`
	██╗    ██╗███████╗██████╗ ███████╗ ██████╗ ██████╗  ██████╗ ███████╗
	██║    ██║██╔════╝██╔══██╗██╔════╝██╔═══██╗██╔══██╗██╔════╝ ██╔════╝
	██║ █╗ ██║█████╗  ██████╔╝█████╗  ██║   ██║██████╔╝██║  ███╗█████╗
	██║███╗██║██╔══╝  ██╔══██╗██╔══╝  ██║   ██║██╔══██╗██║   ██║██╔══╝
	╚███╔███╔╝███████╗██████╔╝██║     ╚██████╔╝██║  ██║╚██████╔╝███████╗
	 ╚══╝╚══╝ ╚══════╝╚═════╝ ╚═╝      ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝`)
}

// buildTips renders usage tips
func (m *model) buildTips() string {
	return tipsStyle.Render(`  Tips: Describe page changes • Alt+Enter for new line • Enter to send • /help for commands • Ctrl+Y to copy last reply • Ctrl+C to exit`)
}

// buildTopStatus renders the tab and mode status bar
func (m *model) buildTopStatus() string {
	status := fmt.Sprintf(" Tab %d • Mode: %s", m.tabID, m.mode)
	if m.awaitingApproval {
		status += " • plan awaiting approval"
	}
	return statusBarStyle.Render(status)
}

// buildApprovalBanner renders the latched plan gate strip
func (m *model) buildApprovalBanner() string {
	if !m.awaitingApproval {
		return ""
	}
	return approvalBannerStyle.Render("📋 Plan awaiting approval — /approve to run it, /reject [feedback] to revise")
}

// buildLoadingIndicator renders the loading spinner when the agent is busy
func (m *model) buildLoadingIndicator() string {
	if !m.agentBusy {
		return ""
	}
	loadingMsg := fmt.Sprintf("%s %s", m.spinner.View(), m.currentLoadingMessage)
	loadingStyle := lipgloss.NewStyle().
		Foreground(salmonPink).
		Width(m.width-4).
		Padding(0, 2)
	return loadingStyle.Render(loadingMsg)
}

// buildInputBox renders the text input area
func (m *model) buildInputBox() string {
	return inputBoxStyle.Width(m.width - 4).Render(m.textarea.View())
}

// buildBottomBar renders the bottom status bar with context usage
func (m *model) buildBottomBar() string {
	bottomLeft := "webforge"
	bottomCenter := "Enter to send • Alt+Enter for new line"
	bottomRight := m.buildTokenDisplay()

	totalUsed := len(bottomLeft) + len(bottomCenter) + len(bottomRight)
	leftPadding := (m.width - totalUsed) / 3
	rightPadding := m.width - totalUsed - leftPadding*2
	if leftPadding < 2 {
		leftPadding = 2
	}
	if rightPadding < 2 {
		rightPadding = 2
	}

	return statusBarStyle.Width(m.width).Render(
		bottomLeft +
			strings.Repeat(" ", leftPadding) +
			bottomCenter +
			strings.Repeat(" ", rightPadding) +
			bottomRight,
	)
}

// buildTokenDisplay renders the context usage from the last finished run
func (m *model) buildTokenDisplay() string {
	if m.contextTokens == 0 {
		return "WebForge Agent"
	}

	contextStr := formatTokenCount(m.contextTokens)
	if m.contextWindow > 0 {
		contextStr = fmt.Sprintf("%s/%s", contextStr, formatTokenCount(m.contextWindow))
		percentage := float64(m.contextTokens) / float64(m.contextWindow) * 100
		if percentage >= 80 {
			contextStr = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(contextStr)
		}
	}

	return fmt.Sprintf("◆ Context: %s", contextStr)
}

// assembleBaseView combines all UI components into the base view
func (m *model) assembleBaseView(header, tips, topStatus, banner, viewportSection, loadingIndicator, inputBox, bottomBar string) string {
	sections := []string{header, tips, topStatus, ""}
	if banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, viewportSection)
	if m.agentBusy {
		sections = append(sections, loadingIndicator)
	}
	sections = append(sections, inputBox, bottomBar)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderToast renders a toast notification
func (m *model) renderToast() string {
	if !m.toast.active || time.Now().After(m.toast.showUntil) {
		return ""
	}

	boxWidth := m.width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s", m.toast.icon, m.toast.message))
	content.WriteString("\n")
	if m.toast.details != "" {
		content.WriteString(m.toast.details)
	}

	borderColor := salmonPink
	if m.toast.isError {
		borderColor = lipgloss.Color("203") // Red color for errors
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(boxWidth)

	return "\n" + boxStyle.Render(content.String()) + "\n"
}

// renderToastOverlay splices a toast-style box into the lines just above the
// input area without shifting the base layout.
func renderToastOverlay(baseView string, toastContent string) string {
	if toastContent == "" {
		return baseView
	}

	baseLines := strings.Split(baseView, "\n")
	toastLines := strings.Split(strings.TrimRight(toastContent, "\n"), "\n")
	toastHeight := len(toastLines)

	// Position the toast a few lines above the bottom, over the transcript
	startLine := len(baseLines) - 5 - toastHeight
	if startLine < 0 {
		startLine = 0
	}

	var result strings.Builder
	for i, line := range baseLines {
		toastLineIdx := i - startLine
		if toastLineIdx >= 0 && toastLineIdx < len(toastLines) {
			result.WriteString("  ")
			result.WriteString(toastLines[toastLineIdx])
		} else {
			result.WriteString(line)
		}
		if i < len(baseLines)-1 {
			result.WriteString("\n")
		}
	}

	return result.String()
}
