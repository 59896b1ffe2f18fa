package core

import "unicode/utf8"

// UTF8Chunker turns raw read chunks into valid UTF-8 text, carrying an
// incomplete trailing sequence over to the next chunk.
type UTF8Chunker struct {
	carry []byte
}

// Next returns the text for chunk, holding back at most utf8.UTFMax-1 bytes.
func (c *UTF8Chunker) Next(chunk []byte) string {
	data := chunk
	if len(c.carry) > 0 {
		data = append(c.carry, chunk...)
		c.carry = nil
	}
	cut := len(data)
	// Look back over at most three bytes for a rune start that is not complete.
	for i := len(data) - 1; i >= 0 && i >= len(data)-(utf8.UTFMax-1); i-- {
		b := data[i]
		if b < utf8.RuneSelf {
			break
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		c.carry = append([]byte(nil), data[cut:]...)
	}
	return string(data[:cut])
}

// Flush returns any bytes still held back.
func (c *UTF8Chunker) Flush() string {
	if len(c.carry) == 0 {
		return ""
	}
	out := string(c.carry)
	c.carry = nil
	return out
}
