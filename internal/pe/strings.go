package pe

import "fmt"

// ReadFixed reads n bytes at offset. With restore set the cursor returns to
// where it was before the call, otherwise it is left just past the data.
func (c *Cursor) ReadFixed(offset int64, n int, restore bool) ([]byte, error) {
	old := c.pos
	c.Seek(offset)

	data, err := c.ReadBytes(n)
	if restore || err != nil {
		c.Seek(old)
	}
	return data, err
}

// ReadCString reads a NUL-terminated string at offset, excluding the
// terminator. The terminator is located first, then the whole string is read
// in one call. Without restore the cursor is left just past the terminator.
func (c *Cursor) ReadCString(offset int64, restore bool) ([]byte, error) {
	old := c.pos
	c.Seek(offset)

	length := 0
	for {
		b, err := c.ReadU8()
		if err != nil {
			c.Seek(old)
			return nil, fmt.Errorf("字符串未终止 (起始偏移 0x%X): %w", offset, err)
		}
		if b == 0 {
			break
		}
		length++
	}

	c.Seek(offset)
	data, err := c.ReadBytes(length)
	if err != nil {
		c.Seek(old)
		return nil, err
	}

	if restore {
		c.Seek(old)
	} else {
		c.Skip(1)
	}
	return data, nil
}
