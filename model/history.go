package model

// History is the stack of step ids departed by forward or jump navigation.
type History struct {
	ids []string
}

// Push adds id unless it is already on top.
func (h *History) Push(id string) {
	if id == "" {
		return
	}
	if n := len(h.ids); n > 0 && h.ids[n-1] == id {
		return
	}
	h.ids = append(h.ids, id)
}

// Peek returns the top id.
func (h *History) Peek() (string, bool) {
	if len(h.ids) == 0 {
		return "", false
	}
	return h.ids[len(h.ids)-1], true
}

// Pop removes and returns the top id.
func (h *History) Pop() (string, bool) {
	id, ok := h.Peek()
	if ok {
		h.ids = h.ids[:len(h.ids)-1]
	}
	return id, ok
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.ids) }

// Clear removes all entries.
func (h *History) Clear() { h.ids = h.ids[:0] }

// IDs returns a copy of the stack, bottom first.
func (h *History) IDs() []string {
	return append([]string{}, h.ids...)
}
