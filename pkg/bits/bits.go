// Package bits provides small helpers for manipulating the individual
// bits of bytes and composing/splitting 16-bit words.
package bits

// Val returns the value of the bit at the given index.
func Val(b uint8, i uint8) uint8 {
	return (b >> i) & 1
}

// Reset resets the bit at the given index.
func Reset(b, i uint8) uint8 {
	return b &^ (1 << i)
}

// Set sets the bit at the given index.
func Set(b, i uint8) uint8 {
	return b | (1 << i)
}

// Test tests the bit at the given index.
func Test(b, i uint8) bool {
	return (b>>i)&1 != 0
}

// Join composes a 16-bit word from its high and low bytes.
func Join(high, low uint8) uint16 {
	return uint16(high)<<8 | uint16(low)
}

// Split returns the high and low bytes of a 16-bit word.
func Split(value uint16) (high, low uint8) {
	return uint8(value >> 8), uint8(value)
}
