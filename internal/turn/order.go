package turn

// Order is the cyclic sequence of participant ids that defines who may act
// next in a turn-restricted game. It is not safe for concurrent use; the
// owning game state is expected to be guarded by the room lock.
type Order struct {
	ids    []string
	cursor int
}

// New creates an order over the given ids, starting at the first one.
func New(ids []string) *Order {
	return &Order{ids: append([]string(nil), ids...)}
}

// Current returns the id whose turn it is, or "" when the order is empty.
func (o *Order) Current() string {
	if len(o.ids) == 0 {
		return ""
	}
	return o.ids[o.cursor]
}

// Advance moves the cursor to the next id, wrapping around, and returns it.
func (o *Order) Advance() string {
	if len(o.ids) == 0 {
		return ""
	}
	o.cursor = (o.cursor + 1) % len(o.ids)
	return o.ids[o.cursor]
}

// Remove extracts id from the sequence. The participant that was "next"
// stays next: it is neither skipped nor repeated. Returns false if the id is
// not part of the order.
func (o *Order) Remove(id string) bool {
	idx := -1
	for i, v := range o.ids {
		if v == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	o.ids = append(o.ids[:idx], o.ids[idx+1:]...)
	if len(o.ids) == 0 {
		o.cursor = 0
		return true
	}
	if idx < o.cursor {
		o.cursor--
	}
	// Removing the current holder leaves the cursor pointing at what was the
	// next id; wrap when the removed entry was the last slice element.
	o.cursor %= len(o.ids)
	return true
}

// Len returns the number of ids still in the order.
func (o *Order) Len() int {
	return len(o.ids)
}

// Contains reports whether id is still part of the order.
func (o *Order) Contains(id string) bool {
	for _, v := range o.ids {
		if v == id {
			return true
		}
	}
	return false
}

// IDs returns a copy of the remaining ids in rotation order.
func (o *Order) IDs() []string {
	return append([]string(nil), o.ids...)
}
