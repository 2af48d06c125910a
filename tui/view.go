package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"todoflow/model"
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	st := m.state
	title := lipgloss.NewStyle().Bold(true).Render("todoflow")
	summary := fmt.Sprintf("filter: %s • sort: %s %s", st.Filter, st.SortKey, directionArrow(st.Ascending))
	if st.SearchText != "" {
		summary += " • search: \"" + st.SearchText + "\""
	}
	if st.IsLoading {
		summary += " • loading"
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+summary),
	)

	viewW := m.viewportWidth()
	const paneGap = 1
	outerPaneW := viewW - 2
	if outerPaneW < 20 {
		outerPaneW = viewW
	}
	innerPaneW := outerPaneW - 2

	panelH := m.height - 6
	if panelH < 8 {
		panelH = 8
	}
	innerPaneH := panelH - 2

	leftW, rightW := m.paneWidths(innerPaneW, paneGap)
	split := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderOverviewPanel(leftW, innerPaneH),
		lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("│"),
		m.renderTodosPanel(rightW, innerPaneH),
	)

	frameColor := lipgloss.Color("240")
	if m.mode == modeNormal {
		frameColor = lipgloss.Color("39")
	}
	panes := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(innerPaneW).
		Height(innerPaneH).
		Render(split)

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	rightHint := "? shortcuts"
	if m.showHelp {
		rightHint = "Esc/? close shortcuts"
	}
	footerLine := m.renderFooter(m.status, statusStyle, rightHint)

	if m.showHelp {
		popupW := clamp(viewW-8, 40, 96)
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(popupW))
	}

	parts := []string{header, panes, footerLine}
	if prompt := m.promptLine(); prompt != "" && !m.showHelp {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Width(viewW).Render(prompt))
	}
	return strings.Join(parts, "\n")
}

func (m *Model) promptLine() string {
	switch m.mode {
	case modeForm:
		verb := "New todo"
		if m.editing {
			verb = "Edit todo"
		}
		return fmt.Sprintf("%s • %s: %s", verb, m.field.label(), m.input.View())
	case modeSearch:
		return "Search (/): " + m.input.View() + "  (Enter keeps, Esc clears)"
	case modeConfirmDelete:
		return fmt.Sprintf("Delete \"%s\"? [y/N]", m.confirmName)
	case modeConfirmClear:
		return fmt.Sprintf("Clear %s todos? [y/N]", m.confirmName)
	}
	return ""
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// Keep one column free so the right border does not wrap on some terminals.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

// paneWidths splits total into the overview (left, narrow) and the todo
// list (right) columns.
func (m *Model) paneWidths(total, gap int) (int, int) {
	if total <= 0 {
		return 24, 30
	}
	if gap < 0 {
		gap = 0
	}

	minLeft := 20
	minRight := 30
	if total < minLeft+minRight+gap {
		left := total / 3
		if left < 12 {
			left = 12
		}
		right := total - left - gap
		if right < 12 {
			right = 12
			left = total - right - gap
			if left < 10 {
				left = 10
			}
		}
		return left, right
	}

	left := clamp(total/4, 22, 34)
	right := total - left - gap
	if right < minRight {
		right = minRight
		left = total - right - gap
	}
	if left < minLeft {
		left = minLeft
		right = total - left - gap
	}
	return left, right
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = "Ready"
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	line := statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
	return lipgloss.NewStyle().Width(width).Render(line)
}

func (m *Model) renderHelpOverlay(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render("Shortcuts")
	section := lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	line := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	rows := []string{
		title,
		"",
		section.Render("Global"),
		line.Render("  j/k move • g/G top/bottom • q quit"),
		line.Render("  / search • ? shortcuts • Esc close/clear"),
		"",
		section.Render("Todos"),
		line.Render("  a add • e edit • x done/reopen • s favorite"),
		line.Render("  1..3 priority • d delete • y copy active"),
		"",
		section.Render("View"),
		line.Render("  f filter • o sort key • r sort direction"),
		"",
		section.Render("Bulk"),
		line.Render("  C clear completed • A complete all • R reopen all"),
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("244")).
		Padding(1, 2)

	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderOverviewPanel(width, height int) string {
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	lines := []string{panelTitleStyled("Overview", false)}

	if st := m.state.Statistics; st != nil {
		lines = append(lines,
			fmt.Sprintf("%d total • %d active", st.Total, st.Active),
			fmt.Sprintf("%d done (%.0f%%)", st.Completed, st.CompletionRate),
			fmt.Sprintf("%d high priority open", st.HighPriorityActive),
			fmt.Sprintf("%d favorites (%d done)", st.Favorites, st.FavoriteCompleted),
		)
	} else {
		lines = append(lines, muted.Render("No statistics yet"))
	}

	lines = append(lines, "", panelTitleStyled("Selected", false))
	t, ok := m.selected()
	if !ok {
		lines = append(lines, muted.Render("Nothing selected"))
	} else {
		lines = append(lines,
			truncateRunes(t.Title, width),
			"priority: "+string(t.Priority),
			"created: "+t.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
		if t.DueDate != nil {
			lines = append(lines, "due: "+t.DueDate.Format(dueLayout))
		}
		if t.CompletedAt != nil {
			lines = append(lines, "done: "+t.CompletedAt.Local().Format("2006-01-02 15:04"))
		}
		if notes := strings.TrimSpace(t.Notes); notes != "" {
			lines = append(lines, "", muted.Render(notes))
		}
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTodosPanel(width, height int) string {
	st := m.state
	lines := make([]string, 0, len(st.DisplayList)+2)
	lines = append(lines, panelTitleStyled(fmt.Sprintf("Todos (%d)", len(st.DisplayList)), m.mode == modeNormal))

	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	switch {
	case st.IsLoading && len(st.Todos) == 0:
		lines = append(lines, muted.Render("Loading..."))
	case len(st.Todos) == 0:
		lines = append(lines, muted.Render("No todos yet. Press 'a' to add one."))
	case len(st.DisplayList) == 0 && strings.TrimSpace(st.SearchText) != "":
		lines = append(lines, muted.Render("Nothing matches the current search/filter."))
	case len(st.DisplayList) == 0:
		lines = append(lines, muted.Render("Nothing for the current filter (press 'f')."))
	}

	// Keep the cursor row visible when the list is taller than the panel.
	rows := height - 1
	start := 0
	if rows > 0 && m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	for i := start; i < len(st.DisplayList); i++ {
		if rows > 0 && i-start >= rows {
			break
		}
		lines = append(lines, m.renderTodoLine(st.DisplayList[i], i == m.cursor, width))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTodoLine(t model.Todo, selected bool, width int) string {
	cursor := " "
	if selected {
		cursor = "▸"
	}
	check := "[ ]"
	if t.IsCompleted {
		check = "[x]"
	}
	fav := " "
	if t.IsFavorite {
		fav = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("★")
	}
	due := ""
	if t.DueDate != nil {
		due = " " + lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(t.DueDate.Format(dueLayout))
	}

	cursorStyle := lipgloss.NewStyle()
	textStyle := lipgloss.NewStyle()
	if t.IsCompleted {
		textStyle = textStyle.Faint(true)
	}
	if selected {
		cursorStyle = cursorStyle.Bold(true)
		textStyle = textStyle.Bold(true)
		if m.mode == modeNormal {
			sel := lipgloss.Color("229")
			cursorStyle = cursorStyle.Foreground(sel)
			textStyle = textStyle.Foreground(sel)
		}
	}

	titleW := width - 12
	if t.DueDate != nil {
		titleW -= len(dueLayout) + 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		cursorStyle.Render(cursor+" "),
		check+" ",
		priorityIndicator(t.Priority)+" ",
		fav+" ",
		textStyle.Render(truncateRunes(t.Title, titleW)),
		due,
	)
}

func panelTitleStyled(title string, active bool) string {
	base := lipgloss.NewStyle().Bold(true)
	if !active {
		return base.Render(title)
	}
	text := base.Foreground(lipgloss.Color("229")).Render(title)
	marker := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render("*")
	return lipgloss.JoinHorizontal(lipgloss.Left, text, " ", marker)
}

func priorityIndicator(p model.Priority) string {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("•")
	switch p {
	case model.PriorityLow:
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Render("●")
	case model.PriorityMedium:
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("●")
	case model.PriorityHigh:
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("●")
	}
	return s
}

func directionArrow(ascending bool) string {
	if ascending {
		return "↑"
	}
	return "↓"
}
