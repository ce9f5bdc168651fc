package utils

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

const BitsPerByte = 8

// Bits returns the size in bits of n bytes
func Bits(bytes int) int {
	return bytes * BitsPerByte
}

// Sizeof returns the size in bytes of values of a type
func Sizeof[T any]() int {
	var val T
	return int(unsafe.Sizeof(val))
}

// AllOnes returns a mask with the low n bits set. n may be the full width of T.
func AllOnes[T constraints.Unsigned](bits int) T {
	if bits >= Bits(Sizeof[T]()) {
		return ^T(0)
	}
	return (T(1) << bits) - T(1)
}
