// cmd/console
//
// 终端控制台：展示客户旅程与需求生成任务状态，运营可触发、重试与审批。
// 连接信息从 yaml profile 读取。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"journey_backend/internal/console"
	"journey_backend/internal/dto"
	"journey_backend/internal/journey"
	"journey_backend/internal/model"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Profile 控制台连接配置
type Profile struct {
	Server       string     `yaml:"server"`
	Token        string     `yaml:"token"`
	AssessmentID string     `yaml:"assessment_id"`
	Role         model.Role `yaml:"role"`
	PollSeconds  int        `yaml:"poll_seconds"`
}

func loadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if p.Server == "" || p.Token == "" || p.AssessmentID == "" {
		return nil, errors.New("profile needs server, token and assessment_id")
	}
	if p.Role == "" {
		p.Role = model.RoleAdmin
	}
	return &p, nil
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	upcomingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	lockedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	attentionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type overviewMsg struct {
	ov  *console.Overview
	err error
}

type jobMsg struct{ st *dto.JobStatus }

type actionMsg struct {
	note string
	err  error
}

type consoleModel struct {
	ctx     context.Context
	profile *Profile
	client  *console.Client
	watcher *console.JobWatcher
	spinner spinner.Model

	overview *console.Overview
	job      *dto.JobStatus
	status   string
	err      error
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m consoleModel) load() tea.Cmd {
	return func() tea.Msg {
		ov, err := m.client.LoadOverview(m.ctx, m.profile.AssessmentID)
		return overviewMsg{ov: ov, err: err}
	}
}

func (m consoleModel) retry(force bool) tea.Cmd {
	return func() tea.Msg {
		_, err := m.watcher.Retry(m.ctx, force)
		if err != nil {
			return actionMsg{err: err}
		}
		if force {
			return actionMsg{note: "generation re-dispatched"}
		}
		return actionMsg{note: "generation started"}
	}
}

func (m consoleModel) approve() tea.Cmd {
	return func() tea.Msg {
		_, err := m.client.Approve(m.ctx, m.profile.AssessmentID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{note: "questionnaire approved"}
	}
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.watcher.Stop()
			return m, tea.Quit
		case "t":
			if m.profile.Role.Privileged() {
				m.status = "triggering..."
				return m, m.retry(false)
			}
		case "r":
			if m.profile.Role.Privileged() {
				m.status = "retrying..."
				return m, m.retry(true)
			}
		case "a":
			if m.profile.Role.Privileged() {
				m.status = "approving..."
				return m, m.approve()
			}
		}
	case overviewMsg:
		m.err = msg.err
		if msg.err == nil {
			m.overview = msg.ov
			m.job = msg.ov.Job
			if m.job != nil && m.job.GenerationJob != nil && m.job.State == model.JobRunning && !m.watcher.Polling() {
				return m, func() tea.Msg {
					st, err := m.watcher.Start(m.ctx)
					if err != nil {
						return actionMsg{err: err}
					}
					return jobMsg{st: st}
				}
			}
		}
	case jobMsg:
		prev := m.job
		m.job = msg.st
		// 任务进入终态时刷新旅程
		if prev != nil && prev.GenerationJob != nil && prev.State == model.JobRunning && msg.st.State != model.JobRunning {
			return m, m.load()
		}
	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.note
			return m, m.load()
		}
		m.status = ""
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func stageLine(s journey.Stage) string {
	marker := map[journey.StageStatus]string{
		journey.StatusCompleted: "●",
		journey.StatusActive:    "◐",
		journey.StatusUpcoming:  "○",
		journey.StatusLocked:    "·",
	}[s.Status]
	line := fmt.Sprintf("%s %s", marker, s.Label)
	if s.At != nil {
		line += "  " + s.At.Local().Format("2006-01-02")
	}
	switch {
	case s.NeedsAttention:
		return attentionStyle.Render(line + "  needs attention")
	case s.Status == journey.StatusCompleted:
		return completedStyle.Render(line)
	case s.Status == journey.StatusActive:
		return activeStyle.Render(line)
	case s.Status == journey.StatusUpcoming:
		return upcomingStyle.Render(line)
	}
	return lockedStyle.Render(line)
}

func (m consoleModel) jobView() string {
	if m.job == nil || m.job.GenerationJob == nil {
		return "requirements: unknown"
	}
	j := m.job
	switch j.State {
	case model.JobRunning:
		line := fmt.Sprintf("%s generating requirements (%s)", m.spinner.View(), time.Duration(j.ElapsedSeconds)*time.Second)
		if m.watcher.TakingLonger() || j.TakingLonger {
			line += "\n  taking longer than usual; press r to re-dispatch"
		}
		return line
	case model.JobFailed:
		return attentionStyle.Render("generation failed: "+j.ErrorMessage) + "\n  press t to retry"
	case model.JobCompleted:
		return completedStyle.Render(fmt.Sprintf("%d questions, %d document requests", j.QuestionsCount, j.DocumentsCount))
	}
	return "requirements not generated yet; press t to start"
}

func (m consoleModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Customer journey " + m.profile.AssessmentID))
	b.WriteString("\n\n")

	if m.overview != nil && m.overview.Journey != nil {
		var lines []string
		for _, s := range m.overview.Journey.Stages {
			lines = append(lines, stageLine(s))
		}
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
	}

	b.WriteString(m.jobView())
	b.WriteString("\n")

	if q := m.overviewQuestionnaire(); q != nil {
		b.WriteString(fmt.Sprintf("questionnaire: %s, %d/%d required answered\n",
			q.FormStatus, q.Progress.AnsweredRequired, q.Progress.TotalRequired))
	}
	if m.overview != nil {
		total := 0
		for _, files := range m.overview.Uploads {
			total += len(files)
		}
		b.WriteString(fmt.Sprintf("documents: %d uploaded across %d slots\n", total, len(m.overview.Uploads)))
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + attentionStyle.Render(m.err.Error()) + "\n")
	}

	help := "q quit"
	if m.profile.Role.Privileged() {
		help = "t trigger • r force retry • a approve • q quit"
	}
	b.WriteString("\n" + helpStyle.Render(help) + "\n")
	return b.String()
}

func (m consoleModel) overviewQuestionnaire() *dto.QuestionnaireView {
	if m.overview == nil {
		return nil
	}
	return m.overview.Questionnaire
}

func main() {
	profilePath := flag.String("profile", "console.yaml", "连接配置文件")
	flag.Parse()

	profile, err := loadProfile(*profilePath)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := console.NewClient(profile.Server, profile.Token)
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	var program *tea.Program
	interval := console.DefaultPollInterval
	if profile.PollSeconds > 0 {
		interval = time.Duration(profile.PollSeconds) * time.Second
	}
	watcher := console.NewJobWatcher(client, profile.AssessmentID,
		console.WithPollInterval(interval),
		console.WithOnUpdate(func(st *dto.JobStatus) {
			if program != nil {
				program.Send(jobMsg{st: st})
			}
		}))

	program = tea.NewProgram(consoleModel{
		ctx:     ctx,
		profile: profile,
		client:  client,
		watcher: watcher,
		spinner: sp,
	})
	if _, err := program.Run(); err != nil {
		log.Fatalf("console: %v", err)
	}
}
