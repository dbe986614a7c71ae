package emulator

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"swisstransfer/pkg/access"
	"swisstransfer/pkg/config"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost    = bcrypt.DefaultCost
	defaultMimeType = "application/octet-stream"
	swiftVersion    = "4"
	source          = "ST"
)

func (s *Server) createContainer(ctx echo.Context) error {
	var req models.ContainerRequest
	if err := ctx.Bind(&req); err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	files, err := s.validateRegistration(req)
	if err != nil {
		return s.fail(ctx, err)
	}

	var passwordHash string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordCost)
		if err != nil {
			return s.fail(ctx, err)
		}
		passwordHash = string(hash)
	}

	now := s.now()
	container := &Container{
		UUID:          uuid.NewString(),
		Duration:      req.Duration,
		AuthorEmail:   req.AuthorEmail,
		PasswordHash:  passwordHash,
		Message:       req.Message,
		NumberOfFile:  req.NumberOfFile,
		DownloadLimit: req.NumberOfDownload,
		Lang:          req.Lang,
		SizeOfUpload:  req.SizeOfUpload,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(req.Duration) * 24 * time.Hour),
	}

	records := make([]File, len(files))
	filesUUID := make([]string, len(files))
	for i, meta := range files {
		records[i] = File{
			UUID:      uuid.NewString(),
			Position:  i,
			Name:      meta.Name,
			Size:      meta.Size,
			MimeType:  mimeType(meta.Name),
			CreatedAt: now,
		}
		filesUUID[i] = records[i].UUID
	}

	if err := s.store.CreateContainer(ctx.Request().Context(), container, records); err != nil {
		return s.fail(ctx, err)
	}

	uploadHost := s.uploadHost
	if uploadHost == "" {
		uploadHost = ctx.Request().Host
	}

	log.Info().
		Str("container", container.UUID).
		Int("files", len(records)).
		Int64("bytes", container.SizeOfUpload).
		Bool("password", container.NeedPassword()).
		Msg("Container created")

	return ctx.JSON(http.StatusOK, models.ContainerResponse{
		Container: models.CreatedContainer{
			UUID:          container.UUID,
			Duration:      container.Duration,
			DownloadLimit: container.DownloadLimit,
			Lang:          container.Lang,
			Source:        source,
			AuthorIP:      ctx.RealIP(),
			SwiftVersion:  swiftVersion,
			CreatedDate: models.ServerDate{
				Date:         access.FormatTimestamp(container.CreatedAt) + ".000000",
				TimezoneType: 3,
				Timezone:     "UTC",
			},
			ExpiredDate:  access.FormatTimestamp(container.ExpiresAt),
			NeedPassword: container.NeedPassword(),
			NumberOfFile: container.NumberOfFile,
		},
		UploadHost: uploadHost,
		FilesUUID:  filesUUID,
	})
}

func (s *Server) validateRegistration(req models.ContainerRequest) ([]models.FileMeta, error) {
	if err := config.ValidateSettings(req.ContainerSettings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	files, err := models.DecodeFiles(req.Files)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(files) == 0 || len(files) != req.NumberOfFile {
		return nil, fmt.Errorf("%w: %d files listed, %d announced", ErrInvalidRequest, len(files), req.NumberOfFile)
	}

	var size int64
	for _, file := range files {
		if file.Name == "" || file.Size < 0 {
			return nil, fmt.Errorf("%w: invalid file entry %q", ErrInvalidRequest, file.Name)
		}
		size += file.Size
	}
	if size != req.SizeOfUpload {
		return nil, fmt.Errorf("%w: files add up to %d bytes, %d announced", ErrInvalidRequest, size, req.SizeOfUpload)
	}
	return files, nil
}

func mimeType(name string) string {
	if detected := mime.TypeByExtension(filepath.Ext(name)); detected != "" {
		return detected
	}
	return defaultMimeType
}

func (s *Server) uploadChunk(ctx echo.Context) error {
	containerUUID := ctx.Param("container")
	fileUUID := ctx.Param("file")

	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil || index < 0 {
		return s.fail(ctx, fmt.Errorf("%w: chunk index %q", ErrInvalidRequest, ctx.Param("index")))
	}
	lastFlag := ctx.Param("last")
	if lastFlag != "0" && lastFlag != "1" {
		return s.fail(ctx, fmt.Errorf("%w: last flag %q", ErrInvalidRequest, lastFlag))
	}

	reqCtx := ctx.Request().Context()
	container, err := s.store.GetContainer(reqCtx, containerUUID)
	if err != nil {
		return s.fail(ctx, err)
	}
	if container.Completed {
		return s.fail(ctx, ErrContainerComplete)
	}
	file, err := s.store.GetFile(reqCtx, containerUUID, fileUUID)
	if err != nil {
		return s.fail(ctx, err)
	}

	// One byte past the file size is enough to detect an oversized chunk.
	body := io.LimitReader(ctx.Request().Body, file.Size+1)
	written, err := s.parts.write(containerUUID, fileUUID, index, body)
	if err != nil {
		s.parts.remove(containerUUID, fileUUID, index)
		return s.fail(ctx, fmt.Errorf("%w: read chunk: %w", ErrInvalidRequest, err))
	}

	contentLength := ctx.Request().ContentLength
	if written > file.Size || (contentLength >= 0 && written != contentLength) {
		s.parts.remove(containerUUID, fileUUID, index)
		return s.fail(ctx, fmt.Errorf("%w: chunk %d has %d bytes, Content-Length %d", ErrInvalidRequest, index, written, contentLength))
	}

	if err := s.store.PutChunk(reqCtx, fileUUID, index, written, lastFlag == "1", s.now()); err != nil {
		return s.fail(ctx, err)
	}

	log.Debug().
		Str("container", containerUUID).
		Str("file", file.Name).
		Int("chunk", index).
		Int64("bytes", written).
		Bool("last", lastFlag == "1").
		Msg("Chunk stored")

	return ctx.JSON(http.StatusOK, map[string]any{"chunk": index, "size": written})
}

func (s *Server) uploadComplete(ctx echo.Context) error {
	var req models.CompleteRequest
	if err := ctx.Bind(&req); err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	reqCtx := ctx.Request().Context()
	container, err := s.store.GetContainer(reqCtx, req.UUID)
	if err != nil {
		return s.fail(ctx, err)
	}

	link, err := s.store.Complete(reqCtx, container.UUID, uuid.NewString(), s.now())
	if err != nil {
		return s.fail(ctx, err)
	}

	onetime := 0
	if container.DownloadLimit == 1 {
		onetime = 1
	}

	log.Info().Str("container", container.UUID).Str("link", link.UUID).Msg("Container finalized")

	return ctx.JSON(http.StatusOK, []models.Link{{
		LinkUUID:              link.UUID,
		ContainerUUID:         container.UUID,
		UserEmail:             container.AuthorEmail,
		DownloadCounterCredit: container.DownloadLimit,
		CreatedDate:           access.FormatTimestamp(link.CreatedAt),
		ExpiredDate:           access.FormatTimestamp(container.ExpiresAt),
		IsDownloadOnetime:     onetime,
		IsMailSent:            0,
	}})
}
