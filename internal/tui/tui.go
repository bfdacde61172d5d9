package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(text, width-2) + "│"
}

func truncateToWidth(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	truncated := ""
	for _, r := range []rune(s) {
		if runewidth.StringWidth(truncated+string(r)) > width-3 {
			break
		}
		truncated += string(r)
	}
	return truncated + "..."
}

// GameInfo represents the current game snapshot shown in the header
type GameInfo struct {
	Status       string
	PoolETH      float64
	WinningTeam  string
	LastBlock    int64
	VoteCount    int64
	Participants int64
	ChainID      string
	Contract     string
	LastTxSync   time.Time
}

// TeamStanding represents one team row in the standings table
type TeamStanding struct {
	ID             uint
	Name           string
	TotalETH       float64
	SupporterCount int
	SharePercent   float64
}

// UpdateMsg is sent when the game snapshot should be updated
type UpdateMsg struct {
	Game GameInfo
}

// StandingsUpdateMsg is sent when the team standings should be updated
type StandingsUpdateMsg struct {
	Teams []TeamStanding
}

// Model holds the TUI state
type Model struct {
	game   GameInfo
	teams  []TeamStanding
	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel() Model {
	return Model{teams: []TeamStanding{}}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case UpdateMsg:
		m.game = msg.Game
		return m, nil

	case StandingsUpdateMsg:
		m.teams = msg.Teams
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	standings := m.renderStandings()

	return lipgloss.JoinVertical(lipgloss.Left, header, standings)
}

// renderHeader renders the top header section
func (m Model) renderHeader() string {
	colWidth := (m.width - 4) / 3
	rightColWidth := m.width - colWidth*2 - 4

	statusStr := m.game.Status
	if statusStr == "" {
		statusStr = "unknown"
	}
	winnerStr := m.game.WinningTeam
	if winnerStr == "" {
		winnerStr = "N/A"
	}
	contractStr := m.game.Contract
	if len(contractStr) > 16 {
		contractStr = contractStr[:16] + "..."
	}

	leftLines := []string{
		fmt.Sprintf("status: %s", statusStr),
		fmt.Sprintf("pool: %.4f ETH", m.game.PoolETH),
		fmt.Sprintf("winner: %s", winnerStr),
	}

	middleLines := []string{
		fmt.Sprintf("chain id: %s", m.game.ChainID),
		fmt.Sprintf("contract: %s", contractStr),
		fmt.Sprintf("last block: %d", m.game.LastBlock),
	}

	lastTxSyncStr := "never"
	if !m.game.LastTxSync.IsZero() {
		lastTxSyncStr = m.game.LastTxSync.Format("15:04:05")
	}
	rightLines := []string{
		fmt.Sprintf("votes: %d", m.game.VoteCount),
		fmt.Sprintf("participants: %d", m.game.Participants),
		fmt.Sprintf("tx sync: %s", lastTxSyncStr),
	}

	var rows []string
	for i := 0; i < 3; i++ {
		left := truncateToWidth(leftLines[i], colWidth-2)
		middle := truncateToWidth(middleLines[i], colWidth-2)
		right := truncateToWidth(rightLines[i], rightColWidth-2)

		rows = append(rows, fmt.Sprintf("│ %s │ %s │ %s │",
			padToWidth(left, colWidth-2),
			padToWidth(middle, colWidth-2),
			padToWidth(right, rightColWidth-2)))
	}

	topBorder := fmt.Sprintf("┌%s┬%s┬%s┐",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))
	separator := fmt.Sprintf("├%s┴%s┴%s┤",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + separator
}

// renderStandings renders the team standings table
func (m Model) renderStandings() string {
	if len(m.teams) == 0 {
		return formatInfoLine("no votes yet", m.width) + "\n" +
			"└" + strings.Repeat("─", m.width-2) + "┘"
	}

	availableHeight := m.height - 7
	if availableHeight <= 0 {
		return ""
	}

	rows := len(m.teams)
	if rows > availableHeight {
		rows = availableHeight
	}

	var lines []string
	for i := 0; i < rows; i++ {
		team := m.teams[i]
		bar := renderShareBar(team.SharePercent, 20)
		cell := fmt.Sprintf(" %2d  %-20s %12.4f ETH  %5d supporters  %6.2f%% %s",
			team.ID,
			truncateToWidth(team.Name, 20),
			team.TotalETH,
			team.SupporterCount,
			team.SharePercent,
			bar)
		lines = append(lines, formatInfoLine(truncateToWidth(cell, m.width-2), m.width))
	}

	bottomBorder := "└" + strings.Repeat("─", m.width-2) + "┘"

	return strings.Join(lines, "\n") + "\n" +
		separatorLine(m.width) + "\n" +
		formatInfoLine(" ID, Team, Total Votes, Supporters, Share", m.width) + "\n" +
		bottomBorder
}

// renderShareBar renders a proportional bar for a team's share of the pool
func renderShareBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run starts the TUI program and blocks until quit
func Run(updateCh <-chan interface{}) error {
	m := NewModel()
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for data := range updateCh {
			switch msg := data.(type) {
			case GameInfo:
				p.Send(UpdateMsg{Game: msg})
			case []TeamStanding:
				p.Send(StandingsUpdateMsg{Teams: msg})
			}
		}
		p.Send(tea.Quit())
	}()

	_, err := p.Run()
	return err
}
