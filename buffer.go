package h263

var (
	// BufferSize is the default capacity of a session buffer.
	BufferSize = 64 * 1024
)

// Buffer accumulates bitstream data across calls and provides bit reads and
// start code search. Consumed bytes are discarded on the next Write, so a
// unit split across two writes is seen whole.
type Buffer struct {
	bytes []byte

	bitIndex int
	mark     int

	discardRead bool
}

// NewBuffer creates a buffer instance.
func NewBuffer() *Buffer {
	return &Buffer{
		bytes:       make([]byte, 0, BufferSize),
		discardRead: true,
	}
}

// Bytes returns a slice holding the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.bytes[b.bitIndex>>3:]
}

// Index returns byte index.
func (b *Buffer) Index() int {
	return b.bitIndex >> 3
}

// Write appends the contents of p to the buffer.
func (b *Buffer) Write(p []byte) int {
	if b.discardRead {
		b.discardReadBytes()
	}

	b.bytes = append(b.bytes, p...)

	return len(p)
}

// Remaining returns the number of remaining (yet unread) bytes in the buffer.
func (b *Buffer) Remaining() int {
	return len(b.bytes) - (b.bitIndex >> 3)
}

// Reset drops all buffered data.
func (b *Buffer) Reset() {
	b.bytes = b.bytes[:0]
	b.bitIndex = 0
	b.mark = 0
}

// Mark remembers the read position, Restore returns to it.
func (b *Buffer) Mark() {
	b.mark = b.bitIndex
}

// Restore rewinds to the position saved by Mark.
func (b *Buffer) Restore() {
	b.bitIndex = b.mark
}

func (b *Buffer) discardReadBytes() {
	bytePos := b.bitIndex >> 3
	if bytePos == len(b.bytes) {
		b.bytes = b.bytes[:0]

		b.bitIndex = 0
	} else if bytePos > 0 {
		copy(b.bytes, b.bytes[bytePos:])
		b.bytes = b.bytes[:len(b.bytes)-bytePos]

		b.bitIndex -= bytePos << 3
	}
	b.mark = b.bitIndex
}

func (b *Buffer) has(count int) bool {
	return ((len(b.bytes) << 3) - b.bitIndex) >= count
}

func (b *Buffer) read(count int) int {
	if !b.has(count) {
		return 0
	}

	value := 0
	for count != 0 {
		currentByte := int(b.bytes[b.bitIndex>>3])

		remaining := 8 - (b.bitIndex & 7) // Remaining bits in byte
		read := count
		if remaining < count { // Bits in self run
			read = remaining
		}

		shift := remaining - read
		mask := 0xff >> (8 - read)

		value = (value << read) | ((currentByte & (mask << shift)) >> shift)

		b.bitIndex += read
		count -= read
	}

	return value
}

// readSigned reads a two's complement value of count bits.
func (b *Buffer) readSigned(count int) int {
	v := b.read(count)
	if v&(1<<(count-1)) != 0 {
		v -= 1 << count
	}

	return v
}

func (b *Buffer) read1() int {
	if !b.has(1) {
		return 0
	}

	currentByte := int(b.bytes[b.bitIndex>>3])

	shift := 7 - (b.bitIndex & 7)
	value := (currentByte & (1 << shift)) >> shift

	b.bitIndex += 1

	return value
}

func (b *Buffer) align() {
	b.bitIndex = ((b.bitIndex + 7) >> 3) << 3 // Align to next byte
}

// nextStartCode moves to the byte following the next 00 00 01 prefix and
// returns the code byte after it. It returns -1 when no complete start code
// is buffered, the trailing bytes that may begin one stay unread.
func (b *Buffer) nextStartCode() int {
	b.align()

	for b.has(4 << 3) {
		data := b.bytes
		byteIndex := b.bitIndex >> 3
		if data[byteIndex] == 0x00 &&
			data[byteIndex+1] == 0x00 &&
			data[byteIndex+2] == 0x01 {
			b.bitIndex = (byteIndex + 4) << 3

			return int(data[byteIndex+3])
		}

		b.bitIndex += 8
	}

	return -1
}
