package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// LineHost is a Host that reads commands from text lines, one per line,
// e.g. "/aetherment" or "/texfinder some args".
type LineHost struct {
	mu       sync.RWMutex
	handlers map[string]Info
}

// NewLineHost creates an empty LineHost.
func NewLineHost() *LineHost {
	return &LineHost{handlers: make(map[string]Info)}
}

// AddHandler implements Host.
func (h *LineHost) AddHandler(command string, info Info) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlers[command]; exists {
		return fmt.Errorf("command %s is already registered", command)
	}
	h.handlers[command] = info
	return nil
}

// RemoveHandler implements Host.
func (h *LineHost) RemoveHandler(command string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.handlers[command]
	delete(h.handlers, command)
	return ok
}

// Help writes the registered commands and their help messages to w.
func (h *LineHost) Help(w io.Writer) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.handlers))
	for name := range h.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, h.handlers[name].HelpMessage)
	}
}

// Execute runs a single line. It reports whether a handler took it.
func (h *LineHost) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	name, args, _ := strings.Cut(line, " ")

	h.mu.RLock()
	info, ok := h.handlers[name]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	info.Handler(name, strings.TrimSpace(args))
	return true
}

// Run executes lines from r until EOF or ctx is cancelled. Unknown commands
// are reported on out.
func (h *LineHost) Run(ctx context.Context, r io.Reader, out io.Writer) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !h.Execute(line) {
				fmt.Fprintf(out, "Unknown command: %s\n", strings.TrimSpace(line))
			}
		}
	}
}
