package sim

import "encoding/binary"

// A Cursor reads big-endian fields from an immutable byte buffer. Reads
// advance the offset; Expect checks it without moving.
type Cursor struct {
	buf []byte
	off int
}

func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

func (c *Cursor) Offset() int64 { return int64(c.off) }

func (c *Cursor) Len() int64 { return int64(len(c.buf)) }

func (c *Cursor) Remaining() int64 { return int64(len(c.buf) - c.off) }

func (c *Cursor) need(n int) error {
	if n > len(c.buf)-c.off {
		return newError(Truncated, int64(c.off), "need %d bytes, %d left", n, len(c.buf)-c.off)
	}
	return nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// Seek moves to an absolute offset. Seeking to the end of the buffer is
// allowed; anything past it is not.
func (c *Cursor) Seek(pos uint32) error {
	if int64(pos) > int64(len(c.buf)) {
		return newError(Truncated, int64(pos), "seek past end of file (size %d)", len(c.buf))
	}
	c.off = int(pos)
	return nil
}

// Expect fails with MisalignedTable unless the cursor sits exactly at pos.
func (c *Cursor) Expect(pos int64, what string) error {
	if int64(c.off) != pos {
		return newError(MisalignedTable, int64(c.off), "%s: expected position 0x%x but was 0x%x", what, pos, c.off)
	}
	return nil
}

// Slice returns the n bytes at off without moving the cursor. The returned
// slice aliases the buffer.
func (c *Cursor) Slice(off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(c.buf)) {
		return nil, newError(Truncated, int64(off), "range [0x%x, 0x%x) past end of file (size %d)", off, end, len(c.buf))
	}
	return c.buf[off:end], nil
}
