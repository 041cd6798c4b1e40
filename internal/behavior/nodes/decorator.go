package nodes

import (
	"github.com/joeycumines/mbt/internal/behavior"
)

// decorator forwards termination and events to its single child.
type decorator struct {
	child behavior.Node
}

func (d *decorator) Update(tc behavior.TickContext) behavior.Status {
	return d.child.Tick(tc)
}

func (d *decorator) OnTerminate(tc behavior.TickContext) {
	d.child.Terminate(tc)
}

func (d *decorator) HandleEvent(ec behavior.EventContext, ev behavior.Event) {
	d.child.SendEvent(ec, ev)
}
