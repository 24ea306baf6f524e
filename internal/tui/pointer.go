package tui

import "tripcal/internal/gesture"

// mousePointer is a gesture.PointerSource fed from terminal mouse
// messages. Only one gesture holds it at a time.
type mousePointer struct {
	handlers *gesture.PointerHandlers
}

func (m *mousePointer) Attach(h gesture.PointerHandlers) func() {
	held := &h
	m.handlers = held
	return func() {
		if m.handlers == held {
			m.handlers = nil
		}
	}
}

func (m *mousePointer) active() bool { return m.handlers != nil }

func (m *mousePointer) move(p gesture.Point) {
	if h := m.handlers; h != nil && h.OnMove != nil {
		h.OnMove(p)
	}
}

func (m *mousePointer) end(p gesture.Point) {
	if h := m.handlers; h != nil && h.OnEnd != nil {
		h.OnEnd(p)
	}
}

func (m *mousePointer) cancel() {
	if h := m.handlers; h != nil && h.OnCancel != nil {
		h.OnCancel()
	}
}
