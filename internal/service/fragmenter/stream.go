package fragmenter

import (
	"errors"
	"hash"
	"hash/crc32"
	"io"
)

// defaultChunkSize is the read buffer size.
const defaultChunkSize = 64 * 1024

// chunkStream is the single read cursor of a run together with the checksum
// of everything read through it. Each chunk returned by Next has already been
// folded into the checksum, so the checksum follows file order no matter how
// the chunks are spread over fragments.
type chunkStream struct {
	src      io.Reader
	checksum hash.Hash32
	buf      []byte
	consumed int64
	// pending is a read error held back because it arrived together with data.
	pending error
}

func newChunkStream(src io.Reader, chunkSize int) *chunkStream {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &chunkStream{
		src:      src,
		checksum: crc32.NewIEEE(),
		buf:      make([]byte, chunkSize),
	}
}

// Next returns the next chunk of at most limit bytes, or io.EOF once the source is exhausted.
// The chunk is only valid until the following call.
func (s *chunkStream) Next(limit int64) ([]byte, error) {
	if s.pending != nil {
		return nil, s.pending
	}

	if limit <= 0 {
		return nil, nil
	}

	want := int64(len(s.buf))
	if limit < want {
		want = limit
	}

	for {
		n, err := s.src.Read(s.buf[:want])
		if n > 0 {
			chunk := s.buf[:n]

			// hash.Hash never returns an error from Write.
			_, _ = s.checksum.Write(chunk)
			s.consumed += int64(n)
			s.pending = err

			return chunk, nil
		}

		if err != nil {
			s.pending = err

			return nil, err
		}
	}
}

// Sum returns the CRC-32 of everything consumed so far.
func (s *chunkStream) Sum() uint32 {
	return s.checksum.Sum32()
}

// Consumed returns the number of source bytes read so far.
func (s *chunkStream) Consumed() int64 {
	return s.consumed
}

// exhausted reports whether err means the source ended.
func exhausted(err error) bool {
	return errors.Is(err, io.EOF)
}
