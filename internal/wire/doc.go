// Package wire implements the framed, optionally compressed byte format used
// by the TCP communicator.
//
// Frame format (little endian):
//
//	[Seq uint64][Kind uint8][Compression uint8][RawSize uint32][StoredSize uint32][Data...]
//
// StoredSize == 0 means Data holds RawSize uncompressed bytes. Compression is
// skipped when it does not shrink the payload below 90% of its raw size.
package wire
