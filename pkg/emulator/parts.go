package emulator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"swisstransfer/pkg/log"
)

const dirPerm = 0o755

// partStore keeps received chunks as one file per chunk on disk.
type partStore struct {
	dir string
}

func (p partStore) path(containerUUID, fileUUID string, index int) string {
	return filepath.Join(p.dir, containerUUID, fileUUID, fmt.Sprintf("%08d.part", index))
}

// write stores src as chunk index and returns the number of bytes written.
// A chunk is visible only once fully written.
func (p partStore) write(containerUUID, fileUUID string, index int, src io.Reader) (int64, error) {
	target := p.path(containerUUID, fileUUID, index)
	targetDir := filepath.Dir(target)
	if err := os.MkdirAll(targetDir, dirPerm); err != nil {
		return 0, err
	}

	tempFile, err := os.CreateTemp(targetDir, "upload-*")
	if err != nil {
		return 0, err
	}
	tempPath := tempFile.Name()

	written, copyErr := io.Copy(tempFile, src)
	closeErr := tempFile.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		p.cleanup(tempPath)
		return written, err
	}

	if err := os.Rename(tempPath, target); err != nil {
		p.cleanup(tempPath)
		return written, err
	}
	return written, nil
}

// remove deletes a stored chunk.
func (p partStore) remove(containerUUID, fileUUID string, index int) {
	p.cleanup(p.path(containerUUID, fileUUID, index))
}

func (p partStore) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove part file")
	}
}

// open returns the concatenation of chunks 0..count-1.
func (p partStore) open(containerUUID, fileUUID string, count int) (io.ReadCloser, error) {
	joined := &joinedParts{files: make([]*os.File, 0, count)}
	readers := make([]io.Reader, 0, count)
	for index := 0; index < count; index++ {
		file, err := os.Open(p.path(containerUUID, fileUUID, index))
		if err != nil {
			_ = joined.Close()
			return nil, err
		}
		joined.files = append(joined.files, file)
		readers = append(readers, file)
	}
	joined.reader = io.MultiReader(readers...)
	return joined, nil
}

type joinedParts struct {
	reader io.Reader
	files  []*os.File
}

func (j *joinedParts) Read(b []byte) (int, error) {
	return j.reader.Read(b)
}

func (j *joinedParts) Close() error {
	errs := make([]error, 0, len(j.files))
	for _, file := range j.files {
		errs = append(errs, file.Close())
	}
	return errors.Join(errs...)
}
