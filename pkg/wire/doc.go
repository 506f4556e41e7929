// Package wire implements the length-prefixed framing used on every
// robot connection.
//
// Frame layout (all integers big-endian):
//
//	[0:4)  total frame length L, L >= HeaderSize
//	[4:8)  sender sequence number
//	[8]    payload kind, KindTyped or KindRaw
//	[9:L)  payload
package wire
