package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

type countingPanel struct{ shown int }

func (p *countingPanel) Show() { p.shown++ }

func TestDispatch(t *testing.T) {
	tests := []struct {
		command    string
		wantMain   int
		wantFinder int
		handled    bool
	}{
		{Main, 1, 0, true},
		{Alt, 1, 0, true},
		{Finder, 0, 1, true},
		{"/unknown", 0, 0, false},
		{"aetherment", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			main, finder := &countingPanel{}, &countingPanel{}
			d := NewDispatcher(main, finder)

			if got := d.Dispatch(tt.command, "ignored args"); got != tt.handled {
				t.Errorf("Dispatch(%q) = %v, want %v", tt.command, got, tt.handled)
			}
			if main.shown != tt.wantMain || finder.shown != tt.wantFinder {
				t.Errorf("main=%d finder=%d, want %d/%d", main.shown, finder.shown, tt.wantMain, tt.wantFinder)
			}
		})
	}
}

func TestRegisterUnregister(t *testing.T) {
	main, finder := &countingPanel{}, &countingPanel{}
	d := NewDispatcher(main, finder)
	host := NewLineHost()

	if err := d.Register(host); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !host.Execute("/materialui") || !host.Execute("/texfinder extra words") {
		t.Fatal("registered commands should execute")
	}
	if main.shown != 1 || finder.shown != 1 {
		t.Errorf("main=%d finder=%d, want 1/1", main.shown, finder.shown)
	}

	d.Unregister(host)
	if host.Execute(Main) {
		t.Error("commands should be gone after Unregister")
	}
}

type failingHost struct {
	*LineHost
	failOn string
}

func (h failingHost) AddHandler(command string, info Info) error {
	if command == h.failOn {
		return errors.New("taken")
	}
	return h.LineHost.AddHandler(command, info)
}

func TestRegister_RollsBack(t *testing.T) {
	host := failingHost{LineHost: NewLineHost(), failOn: Finder}
	d := NewDispatcher(&countingPanel{}, &countingPanel{})

	if err := d.Register(host); err == nil {
		t.Fatal("expected error")
	}
	if host.Execute(Main) || host.Execute(Alt) {
		t.Error("partially registered commands should be removed")
	}
}

func TestLineHost_Run(t *testing.T) {
	main, finder := &countingPanel{}, &countingPanel{}
	host := NewLineHost()
	NewDispatcher(main, finder).Register(host)

	var out bytes.Buffer
	input := strings.NewReader("/aetherment\n\n/texfinder\n/bogus\n")
	if err := host.Run(context.Background(), input, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if main.shown != 1 || finder.shown != 1 {
		t.Errorf("main=%d finder=%d, want 1/1", main.shown, finder.shown)
	}
	if !strings.Contains(out.String(), "Unknown command: /bogus") {
		t.Errorf("output = %q", out.String())
	}

	var help bytes.Buffer
	host.Help(&help)
	if !strings.Contains(help.String(), "Texture Finder") {
		t.Errorf("help = %q", help.String())
	}
}
