// Package backend turns a logical record number into a positioned stream.
//
// Two layouts are supported behind the same [Backend] contract: [Flat]
// serves records from one tag-delimited stream using an offset index, and
// [Archive] serves each record from its own zip entry named prefix+number.
package backend
