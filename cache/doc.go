// Package cache provides an in-memory block cache for container sources.
//
// Compressed flat containers are decompressed from the start of the stream
// for every record, and remote sources pay a round trip per read. Wrapping
// the source in a [BlockCache] keeps recently read fixed-size blocks in
// memory so repeated fetches are served locally:
//
//	bc := cache.New(cache.WithMaxBytes(64 << 20))
//	src, err := bc.Wrap(remote)
//	...
//	c, err := dsarchive.New[*dataset.DataSet](src, dataset.Codec{})
//
// A BlockCache may be shared by many sources; blocks are keyed by the
// source's SourceID.
package cache
