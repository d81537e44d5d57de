package transmux

// chunkCache is an append-only byte buffer that accumulates pre-probe data
// until the probe table can identify the container, then yields it
// concatenated exactly once. It has no upper bound; the orchestrator is
// responsible for draining it on the first successful probe or at segment
// flush (invariant: non-empty only before the first successful probe for
// the current segment).
type chunkCache struct {
	chunks [][]byte
	length int
}

// append adds a chunk to the cache in arrival order.
func (c *chunkCache) append(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.chunks = append(c.chunks, buf)
	c.length += len(buf)
}

// len returns the number of bytes currently buffered.
func (c *chunkCache) len() int {
	return c.length
}

// flush returns the concatenation of all appended chunks in arrival order
// and empties the cache.
func (c *chunkCache) flush() []byte {
	if c.length == 0 {
		c.chunks = nil
		return nil
	}
	out := make([]byte, 0, c.length)
	for _, chunk := range c.chunks {
		out = append(out, chunk...)
	}
	c.reset()
	return out
}

// reset empties the cache without returning its contents.
func (c *chunkCache) reset() {
	c.chunks = nil
	c.length = 0
}
