// Package command maps host chat commands to UI panels.
package command

import (
	"fmt"
)

// Registered triggers.
const (
	Main   = "/aetherment"
	Alt    = "/materialui"
	Finder = "/texfinder"
)

// Panel is a UI window the host can bring up.
type Panel interface {
	Show()
}

// HandlerFunc receives a trigger and the raw text after it.
type HandlerFunc func(command, args string)

// Info describes a command handed to the host.
type Info struct {
	HelpMessage string
	Handler     HandlerFunc
}

// Host is the command surface of the plugin host.
type Host interface {
	AddHandler(command string, info Info) error
	RemoveHandler(command string) bool
}

// Dispatcher routes the three triggers to the main and texture finder panels.
type Dispatcher struct {
	main   Panel
	finder Panel
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(main, finder Panel) *Dispatcher {
	return &Dispatcher{main: main, finder: finder}
}

// Command is a trigger bound to its handler.
type Command struct {
	Name string
	Info Info
}

// Commands returns the triggers with their help messages in registration order.
func (d *Dispatcher) Commands() []Command {
	return []Command{
		{Main, Info{HelpMessage: "Open Aetherment menu", Handler: d.handle}},
		{Alt, Info{HelpMessage: "Alternative for " + Main, Handler: d.handle}},
		{Finder, Info{HelpMessage: "Open Texture Finder, used to find any ui texture", Handler: d.handle}},
	}
}

// Dispatch shows the panel bound to command. Arguments are ignored. It
// reports whether the command is known.
func (d *Dispatcher) Dispatch(command, args string) bool {
	switch command {
	case Main, Alt:
		d.main.Show()
	case Finder:
		d.finder.Show()
	default:
		return false
	}
	return true
}

func (d *Dispatcher) handle(command, args string) {
	d.Dispatch(command, args)
}

// Register adds every trigger to host. On failure, triggers added so far
// are removed again.
func (d *Dispatcher) Register(host Host) error {
	var added []string
	for _, c := range d.Commands() {
		if err := host.AddHandler(c.Name, c.Info); err != nil {
			for _, name := range added {
				host.RemoveHandler(name)
			}
			return fmt.Errorf("registering %s: %w", c.Name, err)
		}
		added = append(added, c.Name)
	}
	return nil
}

// Unregister removes every trigger from host.
func (d *Dispatcher) Unregister(host Host) {
	for _, c := range d.Commands() {
		host.RemoveHandler(c.Name)
	}
}
