// Package index builds the record offset index of a flat container.
//
// A Builder drives a boundary scanner across the whole stream exactly once.
// The resulting Index is immutable and maps a record number to the byte
// range of its boundary pair, in document order.
package index
