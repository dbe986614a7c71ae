package emulator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"swisstransfer/pkg/access"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

func checkPassword(container *Container, password string) error {
	if !container.NeedPassword() {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(container.PasswordHash), []byte(password)) != nil {
		return ErrWrongPassword
	}
	return nil
}

// remainingDownloads is what is left of the limit for the least downloaded file.
func remainingDownloads(container *Container, files []File) int {
	if len(files) == 0 {
		return container.DownloadLimit
	}
	least := files[0].DownloadCounter
	for _, file := range files[1:] {
		least = min(least, file.DownloadCounter)
	}
	return container.DownloadLimit - least
}

func (s *Server) containerForLink(ctx context.Context, linkUUID string) (*Container, error) {
	link, err := s.store.GetLink(ctx, linkUUID)
	if err != nil {
		return nil, err
	}
	return s.store.GetContainer(ctx, link.ContainerUUID)
}

func (s *Server) isPasswordValid(ctx echo.Context) error {
	var req models.PasswordCheckRequest
	if err := ctx.Bind(&req); err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	reqCtx := ctx.Request().Context()
	container, err := s.containerForLink(reqCtx, req.LinkUUID)
	if err != nil {
		return s.fail(ctx, err)
	}

	if err := checkPassword(container, req.Password); err != nil {
		log.Debug().Str("link", req.LinkUUID).Msg("Wrong password")
		return ctx.JSON(http.StatusOK, false)
	}

	files, err := s.store.ListFiles(reqCtx, container.UUID, true)
	if err != nil {
		return s.fail(ctx, err)
	}

	remote := make([]models.RemoteFile, len(files))
	for i, file := range files {
		remote[i] = models.RemoteFile{
			ContainerUUID:       container.UUID,
			UUID:                file.UUID,
			FileName:            file.Name,
			FileSizeInBytes:     file.Size,
			DownloadCounter:     file.DownloadCounter,
			CreatedDate:         access.FormatTimestamp(file.CreatedAt),
			ExpiredDate:         access.FormatTimestamp(container.ExpiresAt),
			MimeType:            file.MimeType,
			ReceivedSizeInBytes: file.Size,
		}
	}

	needPassword := 0
	if container.NeedPassword() {
		needPassword = 1
	}

	return ctx.JSON(http.StatusOK, models.PasswordCheck{
		LinkUUID:              req.LinkUUID,
		ContainerUUID:         container.UUID,
		UserEmail:             container.AuthorEmail,
		DownloadCounterCredit: remainingDownloads(container, files),
		CreatedDate:           access.FormatTimestamp(container.CreatedAt),
		ExpiredDate:           access.FormatTimestamp(container.ExpiresAt),
		Container: models.LinkedContainer{
			UUID:          container.UUID,
			Duration:      container.Duration,
			AuthorEmail:   container.AuthorEmail,
			CreatedDate:   access.FormatTimestamp(container.CreatedAt),
			ExpiredDate:   access.FormatTimestamp(container.ExpiresAt),
			NumberOfFile:  len(files),
			Message:       container.Message,
			NeedPassword:  needPassword,
			Lang:          container.Lang,
			SizeUploaded:  container.SizeOfUpload,
			SwiftVersion:  4,
			DownloadLimit: container.DownloadLimit,
			Source:        source,
			Files:         remote,
		},
	})
}

func (s *Server) generateDownloadToken(ctx echo.Context) error {
	var req models.TokenRequest
	if err := ctx.Bind(&req); err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	reqCtx := ctx.Request().Context()
	container, err := s.store.GetContainer(reqCtx, req.ContainerUUID)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err := checkPassword(container, req.Password); err != nil {
		return s.fail(ctx, err)
	}

	file, err := s.store.GetFile(reqCtx, container.UUID, req.FileUUID)
	if err != nil {
		return s.fail(ctx, err)
	}
	if !file.Complete {
		return s.fail(ctx, ErrFileNotFound)
	}

	token := uuid.NewString()
	if err := s.store.CreateToken(reqCtx, token, file.UUID, s.now()); err != nil {
		return s.fail(ctx, err)
	}
	return ctx.JSON(http.StatusOK, token)
}

func (s *Server) download(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	container, err := s.containerForLink(reqCtx, ctx.Param("link"))
	if err != nil {
		return s.fail(ctx, err)
	}
	if s.now().After(container.ExpiresAt) {
		return s.fail(ctx, ErrLinkExpired)
	}

	file, err := s.store.GetFile(reqCtx, container.UUID, ctx.Param("file"))
	if err != nil {
		return s.fail(ctx, err)
	}
	if !file.Complete {
		return s.fail(ctx, ErrFileNotFound)
	}
	if file.DownloadCounter >= container.DownloadLimit {
		return s.fail(ctx, ErrQuotaExceeded)
	}
	if container.NeedPassword() {
		if err := s.store.ConsumeToken(reqCtx, ctx.QueryParam("token"), file.UUID); err != nil {
			return s.fail(ctx, err)
		}
	}

	content, err := s.parts.open(container.UUID, file.UUID, file.ChunkCount)
	if err != nil {
		return s.fail(ctx, err)
	}
	defer func() {
		if err := content.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close part files")
		}
	}()

	if err := s.store.IncrementDownloads(reqCtx, file.UUID); err != nil {
		return s.fail(ctx, err)
	}

	log.Info().Str("container", container.UUID).Str("file", file.Name).Int64("bytes", file.Size).Msg("Serving file download")

	header := ctx.Response().Header()
	header.Set(echo.HeaderContentLength, strconv.FormatInt(file.Size, 10))
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return ctx.Stream(http.StatusOK, file.MimeType, content)
}
