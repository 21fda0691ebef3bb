// Package dsarchive provides indexed random access to containers that hold
// many independently stored records.
//
// Two physical layouts are supported behind one API:
//   - Flat: a single stream in which every record is bracketed by a start
//     boundary `<DataSet ` and an end boundary `</DataSet>`. The stream may be
//     gzip, zstd, s2 or lz4 compressed. It is scanned once at open to build a
//     byte-accurate offset index.
//   - Archive: a zip archive holding one entry per record, named Entry0,
//     Entry1, ... The archive's own directory serves as the index.
//
// After [Open] or [New], any record can be fetched by number without
// re-scanning. Decoding a record's payload is delegated to a [Codec];
// the container never interprets payload bytes itself.
//
// Every stream obtained from the backend is closed before FetchRecord,
// ProbeType, FetchRaw or Inspect returns. Record operations only read state
// fixed at open, so they may run concurrently (InspectAll does so), but
// Close must not be called while any of them is in flight.
package dsarchive
