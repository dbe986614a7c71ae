package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"swisstransfer/pkg/chunk"
	"swisstransfer/pkg/client"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"
	"swisstransfer/pkg/progress"

	"golang.org/x/time/rate"
)

// ErrChunkFailed wraps the first failing chunk of a file.
var ErrChunkFailed = errors.New("chunk upload failed")

// Job describes the upload of one file into a registered container.
type Job struct {
	File   models.LocalFile
	Target client.ChunkTarget
	// Progress receives one slot per chunk. A private arena is used when nil.
	Progress *progress.Arena
	// OnProgress is called after every progress update.
	OnProgress func()
	// OnChunk is called once per chunk when its request settles.
	OnChunk func(ch chunk.Chunk, err error)
}

// Engine uploads files chunk by chunk.
type Engine struct {
	client    *client.Client
	chunkSize int64
	limiter   *rate.Limiter
}

// NewEngine creates an upload engine that splits files into chunkSize ranges.
func NewEngine(c *client.Client, chunkSize int64) *Engine {
	return &Engine{client: c, chunkSize: chunkSize}
}

// SetRateLimit caps the combined read rate of all chunk bodies. Zero or a
// negative value removes the cap.
func (e *Engine) SetRateLimit(bytesPerSecond int64) {
	if bytesPerSecond <= 0 {
		e.limiter = nil
		return
	}
	e.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
}

// ChunkSize returns the configured chunk size.
func (e *Engine) ChunkSize() int64 {
	return e.chunkSize
}

// UploadFile sends every chunk of job.File concurrently and waits for all of
// them to settle. The file is opened once; chunks read it by offset.
func (e *Engine) UploadFile(ctx context.Context, job Job) error {
	chunks, err := chunk.Plan(job.File.Size, e.chunkSize)
	if err != nil {
		return err
	}

	file, err := os.Open(job.File.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", job.File.Path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("file", job.File.Name).Msg("Failed to close upload source")
		}
	}()

	arena := job.Progress
	if arena == nil {
		arena = progress.NewArena(job.File.Name, len(chunks))
	}
	for _, ch := range chunks {
		arena.Set(ch.Index, progress.Pending(partName(job.File.Name, ch)))
	}

	log.Debug().
		Str("file", job.File.Name).
		Str("file_uuid", job.Target.FileUUID).
		Int64("size", job.File.Size).
		Int("chunks", len(chunks)).
		Msg("Uploading file")

	// Workers are launched by ascending ordinal, but the transport may send and
	// finish their requests in any order. The ordinal travels in the URL.
	errs := make([]error, len(chunks))
	var waitGroup sync.WaitGroup
	for _, ch := range chunks {
		waitGroup.Add(1)
		go func(ch chunk.Chunk) {
			defer waitGroup.Done()
			errs[ch.Index] = e.uploadChunk(ctx, file, job, arena, ch)
		}(ch)
	}
	waitGroup.Wait()

	for i, err := range errs {
		if err != nil {
			return &ChunkError{Chunk: chunks[i], Err: err}
		}
	}
	return nil
}

func (e *Engine) uploadChunk(ctx context.Context, src io.ReaderAt, job Job, arena *progress.Arena, ch chunk.Chunk) error {
	name := partName(job.File.Name, ch)
	report := func(transferred int64) {
		arena.Update(ch.Index, name, transferred, ch.Len())
		if job.OnProgress != nil {
			job.OnProgress()
		}
	}

	err := e.client.UploadChunk(ctx, job.Target, ch, func() io.Reader {
		report(0)
		return &countingReader{
			ctx:     ctx,
			reader:  io.NewSectionReader(src, ch.Start, ch.Len()),
			limiter: e.limiter,
			onRead:  report,
		}
	})
	if err == nil {
		report(ch.Len())
		log.Debug().
			Str("file", job.File.Name).
			Int("chunk", ch.Index).
			Int64("bytes", ch.Len()).
			Bool("last", ch.Last).
			Msg("Chunk uploaded")
	} else {
		log.Warn().Err(err).Str("file", job.File.Name).Int("chunk", ch.Index).Msg("Chunk upload failed")
	}

	if job.OnChunk != nil {
		job.OnChunk(ch, err)
	}
	return err
}

func partName(fileName string, ch chunk.Chunk) string {
	return fmt.Sprintf("%s - part %d", fileName, ch.Index)
}

// ChunkError identifies the chunk that made a file upload fail.
type ChunkError struct {
	Chunk chunk.Chunk
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s: %d: %v", ErrChunkFailed, e.Chunk.Index, e.Err)
}

func (e *ChunkError) Unwrap() []error {
	return []error{ErrChunkFailed, e.Err}
}

// countingReader reports the cumulative number of bytes read and optionally
// waits on a shared limiter before handing bytes to the transport.
type countingReader struct {
	ctx     context.Context
	reader  io.Reader
	limiter *rate.Limiter
	read    int64
	onRead  func(total int64)
}

func (r *countingReader) Read(p []byte) (int, error) {
	if r.limiter != nil {
		if burst := r.limiter.Burst(); len(p) > burst {
			p = p[:burst]
		}
	}

	n, err := r.reader.Read(p)
	if n > 0 && r.limiter != nil {
		if waitErr := r.limiter.WaitN(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	if n > 0 {
		r.read += int64(n)
		r.onRead(r.read)
	}
	return n, err
}
