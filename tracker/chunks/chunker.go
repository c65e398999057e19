// Package chunks implements the video chunker: a pull-iterator over a byte
// slice that yields fixed-size chunks, the last possibly shorter.
package chunks

// DefaultChunkSize is the fixed chunk size used for video streaming: 512
// rows of 512 bytes.
const DefaultChunkSize = 512 * 512

// Chunker iterates a byte slice in fixed-size pieces.
type Chunker struct {
	data      []byte
	chunkSize int
	offset    int
}

// New creates a Chunker over data with the given chunk size. A non-positive
// size falls back to DefaultChunkSize.
func New(data []byte, chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{data: data, chunkSize: chunkSize}
}

// Next returns the next chunk and true, or nil and false once exhausted.
func (c *Chunker) Next() ([]byte, bool) {
	if c.offset >= len(c.data) {
		return nil, false
	}
	end := c.offset + c.chunkSize
	if end > len(c.data) {
		end = len(c.data)
	}
	chunk := c.data[c.offset:end]
	c.offset = end
	return chunk, true
}

// Remaining returns the exact number of chunks left to yield, equal to
// ceil(len(remaining data) / chunk_size).
func (c *Chunker) Remaining() int {
	left := len(c.data) - c.offset
	if left <= 0 {
		return 0
	}
	return (left + c.chunkSize - 1) / c.chunkSize
}

// TotalChunks returns ceil(total / chunk_size) for a blob of the given
// total length and chunk size, without constructing a Chunker.
func TotalChunks(total, chunkSize int) int {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if total <= 0 {
		return 0
	}
	return (total + chunkSize - 1) / chunkSize
}
