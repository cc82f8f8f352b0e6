package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// stateChangedMsg asks for a redraw after the scale state, link health,
// hold control or wizard step changed. The views read current values, so
// these messages carry nothing.
type stateChangedMsg struct{}

// bridgeMsg wraps a message delivered through a bridge.
type bridgeMsg struct {
	from *bridge
	msg  tea.Msg
}

// bridge forwards callbacks fired on session, timer and wizard goroutines
// into the bubbletea loop. It stops delivering when its context ends.
type bridge struct {
	ch   chan tea.Msg
	done <-chan struct{}
}

func newBridge(ctx context.Context) *bridge {
	return &bridge{ch: make(chan tea.Msg, 64), done: ctx.Done()}
}

// send delivers msg, waiting for room. Used for results that must not be
// lost.
func (b *bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

// notify delivers msg if there is room. Redraw requests coalesce.
func (b *bridge) notify(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// listen waits for the next message. The receiver re-arms it after every
// delivery.
func (b *bridge) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return bridgeMsg{from: b, msg: msg}
		case <-b.done:
			return nil
		}
	}
}
