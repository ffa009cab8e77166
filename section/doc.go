// Package section defines the bit-exact binary layouts of an arena image.
//
// All multi-byte fields are little-endian. An image starts with a fixed
// 40-byte Header followed by node records. Each record begins with a 32-bit
// node word holding a 2-bit type tag in the low bits and a 30-bit count:
//
//	internal: word(type=1, children)  then children x (token u32, child offset i32)
//	blob:     word(type=2, length)    then length payload bytes
//	leaf:     word(type=3, hits)      then formula id u32
//
// Internal entries are sorted by token order so that a child can be found by
// binary search directly in the mapped bytes. Offsets are relative to the
// start of the image; offset 0 lies inside the header and therefore serves as
// the null offset.
package section
