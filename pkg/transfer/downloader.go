package transfer

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"swisstransfer/pkg/access"
	"swisstransfer/pkg/batch"
	"swisstransfer/pkg/client"
	"swisstransfer/pkg/download"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"
	"swisstransfer/pkg/progress"
)

// DownloaderConfig configures a download session.
type DownloaderConfig struct {
	LinkUUID string
	Password string
	// Now is used for the expiry check. Defaults to time.Now.
	Now func() time.Time
}

// Downloader fetches every file behind a share link.
type Downloader struct {
	client *client.Client
	engine *download.Engine
	cfg    DownloaderConfig

	Events DownloadEvents

	mu    sync.Mutex
	arena *progress.Arena
}

// NewDownloader creates a download session for one link.
func NewDownloader(c *client.Client, cfg DownloaderConfig) *Downloader {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Downloader{
		client: c,
		engine: download.NewEngine(c),
		cfg:    cfg,
	}
}

// Access verifies the password and runs the session pre-flight checks.
func (d *Downloader) Access(ctx context.Context) (access.Grant, error) {
	result, err := d.client.VerifyPassword(ctx, d.cfg.LinkUUID, d.cfg.Password)
	if err != nil {
		return access.Grant{}, fmt.Errorf("verify password: %w", err)
	}
	return access.Check(result, d.cfg.Now())
}

// Progress returns the batch tree with one leaf per file.
func (d *Downloader) Progress() progress.Tree {
	d.mu.Lock()
	arena := d.arena
	d.mu.Unlock()

	if arena == nil {
		return progress.Aggregate(d.cfg.LinkUUID)
	}
	return arena.Snapshot()
}

// Download writes every file of the link into dest. Access failures are
// returned before anything touches dest; per-file failures are settled in
// the returned results.
func (d *Downloader) Download(ctx context.Context, dest string) (batch.Results[models.RemoteFile], error) {
	unsubscribe := d.client.Errors.Subscribe(d.Events.RequestError.Publish)
	defer unsubscribe()

	grant, err := d.Access(ctx)
	if err != nil {
		log.Warn().Err(err).Str("link", d.cfg.LinkUUID).Msg("Download refused")
		return nil, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	log.Info().
		Str("link", grant.LinkUUID).
		Str("container", grant.ContainerUUID).
		Int("files", len(grant.Files)).
		Int("remaining_downloads", grant.RemainingDownloads).
		Bool("token", grant.RequiresToken).
		Msg("Access granted")

	arena := progress.NewArena(d.cfg.LinkUUID, len(grant.Files))
	for i, file := range grant.Files {
		arena.Set(i, progress.Pending(file.FileName))
	}
	d.mu.Lock()
	d.arena = arena
	d.mu.Unlock()

	collector := batch.NewCollector[models.RemoteFile](len(grant.Files))
	claimed := make(map[string]bool, len(grant.Files))
	var waitGroup sync.WaitGroup
	for i, file := range grant.Files {
		if file.ContainerUUID == "" {
			file.ContainerUUID = grant.ContainerUUID
		}

		// The first file keeps the name; later ones would overwrite it.
		if claimed[file.FileName] {
			fileErr := &FileError{Name: file.FileName, Err: ErrDuplicateFileName}
			collector.Set(i, batch.Result[models.RemoteFile]{ID: file.UUID, Item: file, Err: fileErr})
			log.Warn().Str("file", file.FileName).Str("file_uuid", file.UUID).Msg("Skipping file with duplicate name")
			d.Events.FileFailed.Publish(fileErr)
			continue
		}
		claimed[file.FileName] = true

		waitGroup.Add(1)
		go func(i int, file models.RemoteFile) {
			defer waitGroup.Done()

			path, err := d.engine.DownloadFile(ctx, download.Job{
				LinkUUID:  d.cfg.LinkUUID,
				File:      file,
				Password:  d.cfg.Password,
				NeedToken: grant.RequiresToken,
				Dest:      dest,
				OnProgress: func(transferred, total int64) {
					arena.Update(i, file.FileName, transferred, total)
					d.Events.Progress.Publish(arena.Snapshot())
				},
			})

			if err != nil {
				fileErr := &FileError{Name: file.FileName, Err: err}
				collector.Set(i, batch.Result[models.RemoteFile]{ID: file.UUID, Item: file, Err: fileErr})
				log.Error().Err(err).Str("file", file.FileName).Msg("File download failed")
				d.Events.FileFailed.Publish(fileErr)
				return
			}

			collector.Set(i, batch.Result[models.RemoteFile]{ID: file.UUID, Item: file})
			d.Events.FileDownloaded.Publish(FileDownloaded{File: file, Path: path})
		}(i, file)
	}
	waitGroup.Wait()

	results := collector.Results()
	log.Info().
		Str("link", d.cfg.LinkUUID).
		Int("downloaded", len(results.Succeeded())).
		Int("failed", len(results.Failed())).
		Msg("Download complete")
	return results, nil
}
