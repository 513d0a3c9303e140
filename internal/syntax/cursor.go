package syntax

import (
	"fmt"

	"fortio.org/safecast"
)

// cursor is a byte position inside the scanned text.
type cursor struct {
	src []byte
	off int
}

func (c *cursor) eof() bool {
	return c.off >= len(c.src)
}

// peek читает текущий байт, если есть, иначе возвращает 0
func (c *cursor) peek() byte {
	if c.eof() {
		return 0
	}
	return c.src[c.off]
}

// peekAt читает байт со смещением n от текущей позиции
func (c *cursor) peekAt(n int) byte {
	if c.off+n >= len(c.src) {
		return 0
	}
	return c.src[c.off+n]
}

// hasPrefix reports whether the unread text starts with s.
func (c *cursor) hasPrefix(s string) bool {
	if c.off+len(s) > len(c.src) {
		return false
	}
	return string(c.src[c.off:c.off+len(s)]) == s
}

// bump перемещает курсор на один байт вперед и возвращает прочитанный байт
func (c *cursor) bump() byte {
	if c.eof() {
		return 0
	}
	b := c.src[c.off]
	c.off++
	return b
}

func toU32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("offset overflow: %w", err))
	}
	return v
}
