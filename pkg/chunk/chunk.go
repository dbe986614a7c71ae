package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrInvalidFileSize is returned for negative file sizes.
	ErrInvalidFileSize = errors.New("file size must not be negative")
)

// Chunk is the byte range [Start, End) of a file.
type Chunk struct {
	Index int
	Start int64
	End   int64
	Last  bool
}

// Len returns the number of bytes in the range.
func (c Chunk) Len() int64 {
	return c.End - c.Start
}

// LastFlag returns the path segment the upload endpoint expects for the final chunk marker.
func (c Chunk) LastFlag() string {
	if c.Last {
		return "1"
	}
	return "0"
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d,%d)", c.Index, c.Start, c.End)
}

// Count returns how many chunks Plan produces for the given sizes.
func Count(fileSize, chunkSize int64) int {
	if fileSize <= 0 || chunkSize <= 0 {
		return 1
	}
	count := fileSize / chunkSize
	if fileSize%chunkSize != 0 {
		count++
	}
	return int(count)
}

// Plan splits fileSize bytes into contiguous chunks of at most chunkSize bytes.
// An empty file still yields one empty chunk flagged as last.
func Plan(fileSize, chunkSize int64) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if fileSize < 0 {
		return nil, ErrInvalidFileSize
	}

	if fileSize == 0 {
		return []Chunk{{Index: 0, Start: 0, End: 0, Last: true}}, nil
	}

	count := Count(fileSize, chunkSize)
	chunks := make([]Chunk, 0, count)
	var start int64
	for i := 0; i < count; i++ {
		// fileSize-start never overflows, start+chunkSize might.
		end := start + min(chunkSize, fileSize-start)
		chunks = append(chunks, Chunk{
			Index: i,
			Start: start,
			End:   end,
			Last:  end == fileSize,
		})
		start = end
	}

	return chunks, nil
}
