package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"swisstransfer/pkg/client"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"
)

// Job describes the download of one remote file.
type Job struct {
	LinkUUID string
	File     models.RemoteFile
	Password string
	// NeedToken requests a fresh per-file token before the stream.
	NeedToken bool
	Dest      string
	// OnProgress is only called once the total size is known.
	OnProgress func(transferred, total int64)
}

// Engine streams remote files to disk. A file is fetched with a single GET;
// the service streams the whole object so downloads are not chunked.
type Engine struct {
	client *client.Client
}

// NewEngine creates a download engine.
func NewEngine(c *client.Client) *Engine {
	return &Engine{client: c}
}

// DownloadFile fetches job.File into job.Dest and returns the written path.
// Nothing is left on disk when the transfer fails.
func (e *Engine) DownloadFile(ctx context.Context, job Job) (string, error) {
	name, err := SafeName(job.File.FileName)
	if err != nil {
		return "", err
	}

	var token string
	if job.NeedToken {
		token, err = e.client.DownloadToken(ctx, job.File.ContainerUUID, job.File.UUID, job.Password)
		if err != nil {
			return "", fmt.Errorf("download token: %w", err)
		}
	}

	resp, err := e.client.Download(ctx, job.LinkUUID, job.File.UUID, token)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("file", name).Msg("Failed to close download stream")
		}
	}()

	path := filepath.Join(job.Dest, name)
	log.Debug().
		Str("file", name).
		Str("file_uuid", job.File.UUID).
		Int64("content_length", resp.ContentLength).
		Bool("token", token != "").
		Msg("Downloading file")

	written, err := writeFile(path, resp.Body, resp.ContentLength, job.OnProgress)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Warn().Err(removeErr).Str("path", path).Msg("Failed to remove partial download")
		}
		return "", fmt.Errorf("download %s: %w", name, err)
	}

	log.Debug().Str("file", name).Int64("bytes", written).Msg("File downloaded")
	return path, nil
}

func writeFile(path string, body io.Reader, total int64, onProgress func(transferred, total int64)) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	var src io.Reader = body
	if total > 0 && onProgress != nil {
		src = &progressReader{reader: body, total: total, onProgress: onProgress}
	}

	written, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, closeErr
	}
	if total > 0 && written < total {
		return written, fmt.Errorf("%w: %d of %d bytes", ErrShortBody, written, total)
	}
	return written, nil
}

// SafeName returns name when it can be used as a single file inside the
// destination directory.
func SafeName(name string) (string, error) {
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("%w: %q", ErrUnsafeFileName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return "", fmt.Errorf("%w: %q", ErrUnsafeFileName, name)
	case filepath.Base(name) != name:
		return "", fmt.Errorf("%w: %q", ErrUnsafeFileName, name)
	}
	return name, nil
}

type progressReader struct {
	reader     io.Reader
	read       int64
	total      int64
	onProgress func(transferred, total int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		r.onProgress(r.read, r.total)
	}
	return n, err
}
