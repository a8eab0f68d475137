package protocol

// MaxOutputMessages bounds how many messages a single engine operation
// may emit. A flush of a deep book is the worst case.
const MaxOutputMessages = 1024

// OutputBuffer is a fixed-capacity accumulator the engine fills during
// one operation. It never grows; overflow drops the message and counts
// it, matching the best-effort output policy.
type OutputBuffer struct {
	msgs    []OutputMessage
	dropped uint64
}

func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = MaxOutputMessages
	}
	return &OutputBuffer{msgs: make([]OutputMessage, 0, capacity)}
}

func (b *OutputBuffer) Append(m OutputMessage) {
	if len(b.msgs) == cap(b.msgs) {
		b.dropped++
		return
	}
	b.msgs = append(b.msgs, m)
}

func (b *OutputBuffer) Reset() {
	b.msgs = b.msgs[:0]
}

// Messages exposes the accumulated slice; valid until the next Reset.
func (b *OutputBuffer) Messages() []OutputMessage {
	return b.msgs
}

func (b *OutputBuffer) Len() int { return len(b.msgs) }

// Dropped reports messages lost to buffer overflow since creation.
func (b *OutputBuffer) Dropped() uint64 { return b.dropped }
