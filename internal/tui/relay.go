package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mr-Dark-debug/pulse/internal/schedule"
)

// runMsg carries a scheduled callback into Update.
type runMsg func()

// relay forwards scheduled callbacks and notifications into the program.
// Posts never block: they queue on a Loop whose goroutine performs the
// blocking Send, so a post made from inside Update cannot deadlock.
// Posts made before Run are held until the program is bound.
type relay struct {
	loop *schedule.Loop
	send func(tea.Msg)
}

func newRelay() *relay {
	return &relay{loop: schedule.NewLoop()}
}

// Post delivers fn to Update as a runMsg. It is the executor for
// schedule.Timers.
func (r *relay) Post(fn func()) {
	r.Send(runMsg(fn))
}

// Send delivers msg to Update.
func (r *relay) Send(msg tea.Msg) {
	r.loop.Post(func() { r.send(msg) })
}

// Run binds send and forwards until ctx is done.
func (r *relay) Run(ctx context.Context, send func(tea.Msg)) error {
	r.send = send
	return r.loop.Run(ctx)
}
