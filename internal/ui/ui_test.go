package ui

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/lanprobe/internal/discovery"
	"github.com/muurk/lanprobe/internal/protocol"
)

func TestProgress_Apply(t *testing.T) {
	bound := netip.MustParseAddrPort("0.0.0.0:20088")
	dest := netip.MustParseAddrPort("255.255.255.255:20086")
	peer := netip.MustParseAddrPort("10.0.0.7:20086")

	tests := []struct {
		name        string
		events      []discovery.Event
		wantStatus  [3]StepStatus
		wantPercent float64
		wantAttempt int
	}{
		{
			name:       "fresh",
			wantStatus: [3]StepStatus{StepPending, StepPending, StepPending},
		},
		{
			name: "bind retry in progress",
			events: []discovery.Event{
				{Kind: discovery.EventBindFailed, Attempt: 2, MaxAttempts: 6, Err: errors.New("in use")},
			},
			wantStatus: [3]StepStatus{StepRunning, StepPending, StepPending},
		},
		{
			name: "bind exhausted",
			events: []discovery.Event{
				{Kind: discovery.EventBindFailed, Attempt: 6, MaxAttempts: 6, Err: errors.New("in use")},
				{Kind: discovery.EventBroadcast, Addr: dest, Bytes: 40},
			},
			wantStatus: [3]StepStatus{StepFailed, StepComplete, StepRunning},
		},
		{
			name: "waiting",
			events: []discovery.Event{
				{Kind: discovery.EventBound, Addr: bound},
				{Kind: discovery.EventBroadcast, Addr: dest, Bytes: 40},
				{Kind: discovery.EventWaitTimeout, Attempt: 3, MaxAttempts: 15},
			},
			wantStatus:  [3]StepStatus{StepComplete, StepComplete, StepRunning},
			wantPercent: 3.0 / 16.0,
			wantAttempt: 3,
		},
		{
			name: "received",
			events: []discovery.Event{
				{Kind: discovery.EventBound, Addr: bound},
				{Kind: discovery.EventBroadcast, Addr: dest, Bytes: 40},
				{Kind: discovery.EventWaitTimeout, Attempt: 1, MaxAttempts: 15},
				{Kind: discovery.EventReceived, Addr: peer, Bytes: 52},
			},
			wantStatus:  [3]StepStatus{StepComplete, StepComplete, StepComplete},
			wantPercent: 1,
			wantAttempt: 1,
		},
		{
			name: "exhausted",
			events: []discovery.Event{
				{Kind: discovery.EventBound, Addr: bound},
				{Kind: discovery.EventBroadcast, Addr: dest, Bytes: 40},
				{Kind: discovery.EventExhausted, Attempt: 16, MaxAttempts: 15},
			},
			wantStatus:  [3]StepStatus{StepComplete, StepComplete, StepFailed},
			wantPercent: 1,
			wantAttempt: 16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress("", 15)
			for _, ev := range tt.events {
				p.Apply(ev)
			}
			for i, want := range tt.wantStatus {
				if got := p.Steps[i].Status; got != want {
					t.Errorf("step %d status = %v, want %v", i+1, got, want)
				}
			}
			if p.Percent != tt.wantPercent {
				t.Errorf("Percent = %v, want %v", p.Percent, tt.wantPercent)
			}
			if p.Attempt != tt.wantAttempt {
				t.Errorf("Attempt = %d, want %d", p.Attempt, tt.wantAttempt)
			}
		})
	}
}

func TestProgress_RenderShowsSteps(t *testing.T) {
	p := NewProgress("Waiting", 15).SetWidth(80)
	p.Apply(discovery.Event{Kind: discovery.EventWaitTimeout, Attempt: 4, MaxAttempts: 15})

	out := p.Render()
	for _, want := range []string{"Waiting", "Bind reply listener", "Broadcast query", "Wait for announcement", "timeout 4/15", "[4/15]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}

func TestNewProgress_DefaultCeiling(t *testing.T) {
	if p := NewProgress("", 0); p.Max != discovery.DefaultMaxAttempts {
		t.Errorf("Max = %d, want %d", p.Max, discovery.DefaultMaxAttempts)
	}
}

func TestHeader_KeepsParamOrder(t *testing.T) {
	h := NewHeader("Discovery probe", "lanprobe probe").
		Add("Listen", "0.0.0.0:20088").
		Add("Broadcast", "255.255.255.255:20086").
		SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "DISCOVERY PROBE") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	listen := strings.Index(out, "Listen:")
	bcast := strings.Index(out, "Broadcast:")
	if listen < 0 || bcast < 0 || listen > bcast {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Responder found", Param{Key: "Host", Value: "node-a"}),
			want:   []string{"SUCCESS", "Responder found", "Host:", "node-a"},
		},
		{
			name:   "failure",
			result: NewFailureResult("No responder", errors.New("boom"), []string{"check firewall"}),
			want:   []string{"FAILED", "Error: boom", "Troubleshooting:", "check firewall"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Listener unbound").AddDetail("Port", "20088"),
			want:   []string{"WARNING", "Listener unbound", "20088"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(90).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestProbeTroubleshooting(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bind", &discovery.BindError{Port: 20088, Attempts: 6}, "--bind-port"},
		{"not bound", discovery.ErrNotBound, "--bind-port"},
		{"exhausted", &discovery.FatalError{Op: "receive", Err: discovery.ErrAttemptsExhausted}, "lanprobe respond"},
		{"send", &discovery.SendError{Err: errors.New("EACCES")}, "--interface"},
		{"stale", fmt.Errorf("%w: skipped 9", discovery.ErrTooManyStale), "retry"},
		{"open", &discovery.FatalError{Op: "open", Err: errors.New("EMFILE")}, "--log-level debug"},
		{"other", errors.New("x"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := strings.Join(ProbeTroubleshooting(tt.err), "\n")
			if tt.want == "" {
				if tips != "" {
					t.Errorf("ProbeTroubleshooting() = %q, want none", tips)
				}
				return
			}
			if !strings.Contains(tips, tt.want) {
				t.Errorf("ProbeTroubleshooting() = %q, want mention of %q", tips, tt.want)
			}
		})
	}
}

func TestProbeTroubleshooting_Transient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bind", &discovery.BindError{Port: 20088, Attempts: 6}, true},
		{"send", &discovery.SendError{Err: errors.New("ENOBUFS")}, true},
		{"busy", discovery.ErrReceiveBusy, true},
		{"exhausted", &discovery.FatalError{Op: "receive", Err: discovery.ErrAttemptsExhausted}, false},
		{"open", &discovery.FatalError{Op: "open", Err: errors.New("EMFILE")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := strings.Join(ProbeTroubleshooting(tt.err), "\n")
			if got := strings.Contains(tips, "again may succeed"); got != tt.want {
				t.Errorf("transient tip present = %v, want %v (tips %q)", got, tt.want, tips)
			}
		})
	}
}

func testResult() *discovery.Result {
	q := protocol.NewQuery(protocol.ComponentBots, 1000, "alice", 20088)
	return &discovery.Result{
		Query: q,
		Announcement: &protocol.Announcement{
			ProbeID:       q.ProbeID,
			ComponentType: protocol.ComponentMachine,
			ComponentID:   7,
			PID:           4242,
			Hostname:      "node-a",
			Addr:          netip.MustParseAddrPort("10.0.0.7:20086"),
		},
		From:    netip.MustParseAddrPort("10.0.0.7:20086"),
		Skipped: 2,
	}
}

func TestServesAddr(t *testing.T) {
	from := netip.MustParseAddrPort("192.168.1.9:20086")
	tests := []struct {
		announced string
		want      string
	}{
		{"10.0.0.7:7000", "10.0.0.7:7000"},
		{"0.0.0.0:7000", "192.168.1.9:7000"},
		{"0.0.0.0:0", "192.168.1.9"},
	}
	for _, tt := range tests {
		if got := servesAddr(netip.MustParseAddrPort(tt.announced), from); got != tt.want {
			t.Errorf("servesAddr(%s) = %q, want %q", tt.announced, got, tt.want)
		}
	}
}

func TestProbeDetails(t *testing.T) {
	details := ProbeDetails(testResult(), 1500*time.Millisecond)

	got := map[string]string{}
	for _, d := range details {
		got[d.Key] = d.Value
	}
	want := map[string]string{
		"Component": "machine #7",
		"Host":      "node-a",
		"PID":       "4242",
		"Skipped":   "2 stale replies",
		"Duration":  "1.5s",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("detail %q = %q, want %q", k, got[k], v)
		}
	}
	if got["Serves"] != "10.0.0.7:20086" {
		t.Errorf("Serves = %q", got["Serves"])
	}
	if details[len(details)-1].Key != "Duration" {
		t.Errorf("Duration should be the last detail")
	}
}

func TestDatagramBox_Lines(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 80) // 5 dump lines

	if got := len(NewDatagramBox("Reply", data).Lines()); got != 5 {
		t.Errorf("Lines() = %d lines, want 5", got)
	}

	lines := NewDatagramBox("Reply", data).SetMaxLines(2).Lines()
	if len(lines) != 3 || lines[2] != "... 3 more lines" {
		t.Errorf("truncated Lines() = %q", lines)
	}

	if lines := NewDatagramBox("Reply", nil).Lines(); len(lines) != 1 || lines[0] != "(empty)" {
		t.Errorf("empty Lines() = %q", lines)
	}

	out := NewDatagramBox("Reply", data[:4]).SetWidth(90).Render()
	if !strings.Contains(out, "Reply (4 bytes)") || !strings.Contains(out, "ab ab ab ab") {
		t.Errorf("Render() =\n%s", out)
	}
}

func TestProbeModel_Update(t *testing.T) {
	m := NewProbeModel(NewHeader("Discovery probe", "lanprobe probe"), 15)

	next, cmd := m.Update(EventMsg{Kind: discovery.EventBound, Addr: netip.MustParseAddrPort("0.0.0.0:20088")})
	m = next.(ProbeModel)
	if cmd != nil {
		t.Error("event should not produce a command")
	}
	if m.progress.Steps[0].Status != StepComplete {
		t.Errorf("bind step = %v, want complete", m.progress.Steps[0].Status)
	}
	if strings.Contains(m.View(), "SUCCESS") {
		t.Error("result box shown before the probe finished")
	}

	res := testResult()
	next, cmd = m.Update(probeDoneMsg{result: res})
	m = next.(ProbeModel)
	if cmd == nil {
		t.Fatal("done should quit the program")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("done command = %T, want tea.QuitMsg", cmd())
	}
	if got, err := m.Result(); got != res || err != nil {
		t.Errorf("Result() = %v, %v", got, err)
	}
	if view := m.View(); !strings.Contains(view, "Responder found") || !strings.Contains(view, "node-a") {
		t.Errorf("final View() =\n%s", view)
	}
}

func TestProbeModel_Failure(t *testing.T) {
	m := NewProbeModel(nil, 15)
	fatal := &discovery.FatalError{Op: "receive", Err: discovery.ErrAttemptsExhausted}

	next, _ := m.Update(probeDoneMsg{err: fatal})
	m = next.(ProbeModel)

	if _, err := m.Result(); !errors.Is(err, discovery.ErrAttemptsExhausted) {
		t.Errorf("Result() error = %v", err)
	}
	view := m.View()
	if !strings.Contains(view, "FAILED") || !strings.Contains(view, "Troubleshooting") {
		t.Errorf("failure View() =\n%s", view)
	}
}

func TestProbeModel_Quit(t *testing.T) {
	m := NewProbeModel(nil, 15)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(ProbeModel)

	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, err := m.Result(); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Result() error = %v, want ErrInterrupted", err)
	}
}

func TestPrinter_Observer(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	observe := p.Observer(15)

	observe(discovery.Event{Kind: discovery.EventBound, Addr: netip.MustParseAddrPort("0.0.0.0:20088")})
	observe(discovery.Event{Kind: discovery.EventBroadcast, Addr: netip.MustParseAddrPort("255.255.255.255:20086"), Bytes: 40})
	observe(discovery.Event{Kind: discovery.EventWaitTimeout, Attempt: 1, MaxAttempts: 15})
	observe(discovery.Event{Kind: discovery.EventKind(99)})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("printed %d lines, want 3:\n%s", len(lines), buf.String())
	}
	for i, want := range []string{"0.0.0.0:20088", "40 bytes to 255.255.255.255:20086", "timeout 1/15"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}
