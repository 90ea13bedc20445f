// Package buffer provides the value regions a store binds at Initialize.
//
// A [Buffer] is owned by the caller: the store views it as rows of its
// element type and never frees or resizes it. Three flavours exist:
//
//   - [NewHeap]: 64-byte aligned heap memory
//   - [Map]: a read-write shared file mapping, so another process (or a
//     restart) sees the same rows
//   - [Slice]: any caller-owned []byte
package buffer
