package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/resource"
	"github.com/wippyai/zbox-host/worker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	handleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	fieldOp = iota
	fieldObject
	fieldParams
	fieldCount
)

// historySize bounds the exchanges kept on screen.
const historySize = 8

type exchange struct {
	request worker.Message
	reply   worker.Message
}

type shellModel struct {
	ctx      context.Context
	d        *worker.Dispatcher
	version  string
	inputs   []textinput.Model
	history  []exchange
	err      error
	nextID   uint64
	focusIdx int
}

func newShellModel(ctx context.Context, d *worker.Dispatcher, version string) *shellModel {
	m := &shellModel{ctx: ctx, d: d, version: version, nextID: 1}
	m.inputs = make([]textinput.Model, fieldCount)

	op := textinput.New()
	op.Prompt = "operation: "
	op.Placeholder = "zbox.version"
	op.ShowSuggestions = true
	op.SetSuggestions(worker.Operations)
	op.Width = 40
	op.Focus()
	m.inputs[fieldOp] = op

	obj := textinput.New()
	obj.Prompt = "object:    "
	obj.Placeholder = "handle"
	obj.Width = 12
	m.inputs[fieldObject] = obj

	params := textinput.New()
	params.Prompt = "params:    "
	params.Placeholder = "JSON"
	params.Width = 60
	m.inputs[fieldParams] = params
	return m
}

type replyMsg struct {
	request worker.Message
	reply   worker.Message
	err     error
}

func (m *shellModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "tab", "shift+tab":
			if msg.String() == "tab" && m.focusIdx == fieldOp && m.inputs[fieldOp].CurrentSuggestion() != "" &&
				m.inputs[fieldOp].Value() != m.inputs[fieldOp].CurrentSuggestion() {
				break
			}
			m.inputs[m.focusIdx].Blur()
			if msg.String() == "tab" {
				m.focusIdx = (m.focusIdx + 1) % fieldCount
			} else {
				m.focusIdx = (m.focusIdx + fieldCount - 1) % fieldCount
			}
			return m, m.inputs[m.focusIdx].Focus()

		case "enter":
			req, err := m.request()
			if err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.nextID++
			return m, m.dispatch(req)

		case "esc":
			for i := range m.inputs {
				m.inputs[i].SetValue("")
			}
			m.err = nil
			return m, nil
		}

	case replyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.history = append(m.history, exchange{request: msg.request, reply: msg.reply})
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
		m.inputs[fieldParams].SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	return m, cmd
}

// request builds a message from the input fields.
func (m *shellModel) request() (worker.Message, error) {
	op := strings.TrimSpace(m.inputs[fieldOp].Value())
	scope, typ, ok := splitOperation(op)
	if !ok {
		return worker.Message{}, fmt.Errorf("operation wants scope.type, got %q", op)
	}
	msg := worker.Message{ID: m.nextID, Scope: scope, Type: typ}

	if s := strings.TrimSpace(m.inputs[fieldObject].Value()); s != "" {
		h, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return worker.Message{}, fmt.Errorf("object: %w", err)
		}
		msg.Object = resource.Handle(h)
	}

	if s := strings.TrimSpace(m.inputs[fieldParams].Value()); s != "" {
		if !json.Valid([]byte(s)) {
			// bare words are taken as strings, so paths need no quoting
			raw, _ := json.Marshal(s)
			s = string(raw)
		}
		msg.Params = json.RawMessage(s)
	}
	return msg, nil
}

func (m *shellModel) dispatch(req worker.Message) tea.Cmd {
	return func() tea.Msg {
		var reply worker.Message
		fault := errors.Catch(func() {
			reply = m.d.Dispatch(m.ctx, req)
		})
		if fault != nil {
			return replyMsg{err: fault}
		}
		return replyMsg{request: req, reply: reply}
	}
}

func (m *shellModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("zbox shell"))
	b.WriteString(" ")
	b.WriteString(m.version)
	files, readers := m.d.Opened()
	b.WriteString(handleStyle.Render(fmt.Sprintf("  %d files, %d readers open", files, readers)))
	b.WriteString("\n\n")

	for _, ex := range m.history {
		b.WriteString(opStyle.Render(fmt.Sprintf("#%d %s.%s", ex.request.ID, ex.request.Scope, ex.request.Type)))
		if ex.request.Object != 0 {
			b.WriteString(handleStyle.Render(fmt.Sprintf(" @%d", ex.request.Object)))
		}
		if len(ex.request.Params) > 0 {
			b.WriteString(" ")
			b.Write(ex.request.Params)
		}
		b.WriteString("\n  ")
		if ex.reply.Error != nil {
			b.WriteString(errorStyle.Render(ex.reply.Error.Message))
		} else {
			b.WriteString(resultStyle.Render(formatResult(ex.reply.Result)))
		}
		b.WriteString("\n")
	}
	if len(m.history) > 0 {
		b.WriteString("\n")
	}

	for _, input := range m.inputs {
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab next field • enter send • esc clear • ctrl+c quit"))
	return b.String()
}

func formatResult(v any) string {
	if v == nil {
		return "ok"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func runInteractive(ctx context.Context, d *worker.Dispatcher, version string) error {
	p := tea.NewProgram(newShellModel(ctx, d, version), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
