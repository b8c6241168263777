package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/duotalk/duo-talk-gm/internal/services"
	"github.com/duotalk/duo-talk-gm/pkg/gm"
	"github.com/duotalk/duo-talk-gm/pkg/scenario"
)

const PlaceHolderText = "Paste raw character output here (Thought: ... / Output: ...)"

// speakers alternate turn by turn.
var speakers = []string{"やな", "あゆ"}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	session      *services.Session
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	turn         int
	speakerIdx   int
	lastResponse *gm.Response
	transcript   []turnRecord

	// Scenario selection state
	showScenarioModal bool
	scenarios         []scenario.Entry
	selectedScenario  int
	loadingScenarios  bool
}

type turnRecord struct {
	speaker string
	resp    *gm.Response
}

type stepResponseMsg struct {
	resp *gm.Response
	err  error
}

type scenariosLoadedMsg struct {
	scenarios []scenario.Entry
	err       error
}

type sessionCreatedMsg struct {
	session *services.Session
	err     error
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	allowedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	deniedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 4000
	ta.SetWidth(50)
	ta.SetHeight(4)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:            cfg,
		client:            client,
		textarea:          ta,
		chatViewport:      chatVp,
		metaViewport:      metaVp,
		showScenarioModal: true,
		loadingScenarios:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadScenarios()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showScenarioModal {
		return m.updateScenarioModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.writeTranscript()
		m.metaViewport.SetContent(m.writeMetadata())
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlY:
			// Copy the last verdict JSON for bug reports.
			if m.lastResponse != nil {
				if data, err := json.MarshalIndent(m.lastResponse, "", "  "); err == nil {
					_ = clipboard.WriteAll(string(data))
				}
			}
			return m, nil
		case tea.KeyCtrlS:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.loading = true
			m.writeTranscript()
			return m, m.sendStep(input)
		}

	case stepResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.lastResponse = msg.resp
			m.transcript = append(m.transcript, turnRecord{
				speaker: speakers[m.speakerIdx],
				resp:    msg.resp,
			})
			if !msg.resp.RetrySuggested {
				m.turn++
				m.speakerIdx = (m.speakerIdx + 1) % len(speakers)
			}
		}
		m.writeTranscript()
		m.metaViewport.SetContent(m.writeMetadata())
		m.chatViewport.GotoBottom()
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 9
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m *ConsoleUI) writeTranscript() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("DUO TALK GM") + "\n\n")
	content.WriteString("Paste each character turn and press Ctrl+S to referee it.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	for i, rec := range m.transcript {
		content.WriteString(speakerStyle.Render(rec.speaker+":") + " ")
		content.WriteString(wordwrap.String(rec.resp.Parsed.Speech, chatWidth-6) + "\n")

		for _, j := range rec.resp.Judgments {
			verdict := allowedStyle.Render("✓ " + string(j.Intent.Type))
			if !j.Allowed {
				verdict = deniedStyle.Render(fmt.Sprintf("✗ %s (%s)", j.Intent.Type, j.DeniedReason))
			}
			content.WriteString("  " + verdict)
			if j.SoftCorrection != "" {
				content.WriteString(" " + promptStyle.Render(j.SoftCorrection))
			}
			content.WriteString("\n")
		}
		if rec.resp.ChangeSummary != "" {
			content.WriteString("  " + allowedStyle.Render("→ "+rec.resp.ChangeSummary) + "\n")
		}
		if rec.resp.RetrySuggested {
			content.WriteString("  " + cardStyle.Render("retry suggested: "+strings.Join(rec.resp.Guidance, " / ")) + "\n")
		}
		if rec.resp.GiveUp {
			content.WriteString("  " + cardStyle.Render("give-up: passed without world change") + "\n")
		}
		if i == len(m.transcript)-1 {
			for _, card := range rec.resp.FactCards {
				content.WriteString("  " + cardStyle.Render("⚑ "+card) + "\n")
			}
		}
		content.WriteString("\n")
	}

	if m.loading {
		content.WriteString(promptStyle.Render("judging...") + "\n")
	}
	if m.err != nil {
		content.WriteString(deniedStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	if m.session != nil {
		content.WriteString("ID:\n" + m.session.ID.String()[:8] + "...\n\n")
		content.WriteString("Scenario:\n" + m.session.ScenarioID + "\n\n")
		content.WriteString("Hash:\n" + m.session.ScenarioHash + "\n\n")
	}

	content.WriteString(fmt.Sprintf("Turn: %d\n", m.turn))
	content.WriteString(fmt.Sprintf("Next speaker: %s\n\n", speakers[m.speakerIdx]))

	if m.lastResponse != nil {
		content.WriteString(fmt.Sprintf("Stall: %.2f (%s)\n", m.lastResponse.StallScore, m.lastResponse.StallSeverity))
		content.WriteString("World hash:\n" + m.lastResponse.WorldHash + "\n\n")

		if w := m.lastResponse.World; w != nil {
			content.WriteString("Characters:\n")
			for _, name := range speakers {
				if ch, ok := w.Characters[name]; ok {
					content.WriteString(fmt.Sprintf("• %s @ %s\n", ch.Name, ch.Location))
					for _, obj := range ch.Holding {
						content.WriteString("    " + obj + "\n")
					}
				}
			}
		}
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• Ctrl+S: Judge turn\n")
	content.WriteString("• Ctrl+Y: Copy verdict\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) sendStep(raw string) tea.Cmd {
	return func() tea.Msg {
		resp, err := stepTurn(m.client, m.config.APIBaseURL, stepRequest{
			SessionID:  m.session.ID.String(),
			TurnNumber: m.turn,
			Speaker:    speakers[m.speakerIdx],
			RawOutput:  raw,
		})
		return stepResponseMsg{resp, err}
	}
}

func (m ConsoleUI) loadScenarios() tea.Cmd {
	return func() tea.Msg {
		entries, err := listScenarios(m.client, m.config.APIBaseURL)
		return scenariosLoadedMsg{entries, err}
	}
}

func (m ConsoleUI) createSessionFromScenario(scenarioID string) tea.Cmd {
	return func() tea.Msg {
		session, err := createSession(m.client, m.config.APIBaseURL, scenarioID)
		return sessionCreatedMsg{session, err}
	}
}

func (m ConsoleUI) updateScenarioModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scenariosLoadedMsg:
		m.loadingScenarios = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.scenarios = msg.scenarios
		}

	case sessionCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = msg.session
			m.showScenarioModal = false
			m.resize()
			m.writeTranscript()
			m.metaViewport.SetContent(m.writeMetadata())
			m.textarea.Focus()
			m.ready = true
		}
		return m, textarea.Blink

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedScenario > 0 {
				m.selectedScenario--
			}
		case tea.KeyDown:
			if m.selectedScenario < len(m.scenarios)-1 {
				m.selectedScenario++
			}
		case tea.KeyEnter:
			if len(m.scenarios) > 0 && !m.loading {
				m.loading = true
				return m, m.createSessionFromScenario(m.scenarios[m.selectedScenario].ScenarioID)
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderScenarioModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingScenarios:
		content.WriteString(titleStyle.Render("Loading Scenarios...") + "\n\n")
		content.WriteString("Please wait while we fetch available scenarios...")
	case m.err != nil:
		content.WriteString(titleStyle.Render("Error") + "\n\n")
		content.WriteString(deniedStyle.Render(fmt.Sprintf("Failed to load scenarios: %v", m.err)))
		content.WriteString("\n\nPress Ctrl+C to exit")
	case m.loading:
		content.WriteString(titleStyle.Render("Creating Session...") + "\n\n")
		content.WriteString("Setting up the world...")
	default:
		content.WriteString(titleStyle.Render("Select a Scenario") + "\n\n")
		for i, entry := range m.scenarios {
			label := entry.ScenarioID
			if entry.Description != "" {
				label += " - " + entry.Description
			}
			if i == m.selectedScenario {
				content.WriteString(modalSelectedItemStyle.Render("▶ "+label) + "\n")
			} else {
				content.WriteString("  " + label + "\n")
			}
		}
		content.WriteString("\n" + promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showScenarioModal {
		return m.renderScenarioModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.70) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
