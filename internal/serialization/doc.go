// Package serialization saves and loads trained engine weights.
//
// Weights are stored in the SafeTensors layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The header maps each tensor name to its dtype, shape and byte range, plus
// an optional "__metadata__" string map. The engine only produces F64
// tensors; reading accepts F64 and F32.
package serialization
