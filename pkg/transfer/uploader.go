package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swisstransfer/pkg/batch"
	"swisstransfer/pkg/chunk"
	"swisstransfer/pkg/client"
	"swisstransfer/pkg/config"
	"swisstransfer/pkg/log"
	"swisstransfer/pkg/models"
	"swisstransfer/pkg/progress"
	"swisstransfer/pkg/upload"
)

// UploaderConfig configures an upload session.
type UploaderConfig struct {
	Settings      models.ContainerSettings
	ChunkSize     int64
	MaxUploadSize int64
	// RateLimit caps upload throughput in bytes per second. Zero is unlimited.
	RateLimit int64
}

// UploadReport is the outcome of an upload session.
type UploadReport struct {
	ContainerUUID string
	// Registrations holds one entry per added path, in call order.
	Registrations batch.Results[models.LocalFile]
	// Files holds one entry per registered file, keyed by remote file UUID.
	Files batch.Results[models.LocalFile]
	Links []models.Link
}

type addSlot struct {
	path string
	file models.LocalFile
	err  error
}

// Uploader collects local files and sends them as one container.
type Uploader struct {
	client        *client.Client
	engine        *upload.Engine
	settings      models.ContainerSettings
	chunkSize     int64
	maxUploadSize int64

	Events UploadEvents

	mu        sync.Mutex
	state     State
	slots     []*addSlot
	totalSize int64
	pending   sync.WaitGroup
	arenas    []*progress.Arena
}

// NewUploader validates the container settings and creates an idle session.
func NewUploader(c *client.Client, cfg UploaderConfig) (*Uploader, error) {
	if err := config.ValidateSettings(cfg.Settings); err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultChunkSize
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = config.DefaultMaxUploadSize
	}
	if cfg.Settings.RecipientsEmails == "" {
		cfg.Settings.RecipientsEmails = models.EncodeRecipients(nil)
	}

	engine := upload.NewEngine(c, cfg.ChunkSize)
	engine.SetRateLimit(cfg.RateLimit)

	return &Uploader{
		client:        c,
		engine:        engine,
		settings:      cfg.Settings,
		chunkSize:     cfg.ChunkSize,
		maxUploadSize: cfg.MaxUploadSize,
	}, nil
}

// State returns the current lifecycle state.
func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// AddFiles registers paths asynchronously. Each path is inspected on its own
// goroutine and may finish in any order; the batch keeps call order.
// Outcomes are published on FileAdded and FileAddFailed.
func (u *Uploader) AddFiles(paths ...string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state != StateIdle {
		return ErrSessionStarted
	}

	for _, path := range paths {
		slot := &addSlot{path: path}
		index := len(u.slots)
		u.slots = append(u.slots, slot)
		u.pending.Add(1)
		go u.addFile(index, slot)
	}
	return nil
}

func (u *Uploader) addFile(index int, slot *addSlot) {
	defer u.pending.Done()

	info, err := os.Stat(slot.path)
	if err == nil && !info.Mode().IsRegular() {
		err = fmt.Errorf("%w: %s", ErrNotRegularFile, slot.path)
	}

	u.mu.Lock()
	if err == nil && u.totalSize+info.Size() > u.maxUploadSize {
		err = fmt.Errorf("%w: %s would bring the batch to %d of %d bytes",
			ErrMaxUploadSizeExceeded, slot.path, u.totalSize+info.Size(), u.maxUploadSize)
	}
	if err == nil {
		slot.file = models.LocalFile{Path: slot.path, Name: filepath.Base(slot.path), Size: info.Size()}
		u.totalSize += info.Size()
	}
	slot.err = err
	u.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("path", slot.path).Msg("File rejected")
		u.Events.FileAddFailed.Publish(FileAddFailed{Path: slot.path, Err: err})
		return
	}

	log.Debug().Str("file", slot.file.Name).Int64("size", slot.file.Size).Int("slot", index).Msg("File added")
	u.Events.FileAdded.Publish(FileAdded{Slot: index, File: slot.file})
}

// Wait blocks until every pending addition settled and returns their outcomes.
func (u *Uploader) Wait() batch.Results[models.LocalFile] {
	u.pending.Wait()

	u.mu.Lock()
	defer u.mu.Unlock()

	results := make(batch.Results[models.LocalFile], 0, len(u.slots))
	for _, slot := range u.slots {
		item := slot.file
		if slot.err != nil {
			item = models.LocalFile{Path: slot.path}
		}
		results = append(results, batch.Result[models.LocalFile]{ID: slot.path, Item: item, Err: slot.err})
	}
	return results
}

// TotalSize returns the byte size of all accepted files.
func (u *Uploader) TotalSize() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalSize
}

// Progress returns the batch tree: one node per file, one leaf per chunk.
func (u *Uploader) Progress() progress.Tree {
	u.mu.Lock()
	arenas := u.arenas
	u.mu.Unlock()

	children := make([]progress.Tree, 0, len(arenas))
	for _, arena := range arenas {
		children = append(children, arena.Snapshot())
	}
	return progress.Aggregate("upload", children...)
}

// Upload registers the container, sends every file and finalizes the batch.
// A failing file does not stop its siblings; it is reported in the result.
// Finalize runs when at least one file was uploaded.
func (u *Uploader) Upload(ctx context.Context) (*UploadReport, error) {
	u.mu.Lock()
	if u.state != StateIdle {
		u.mu.Unlock()
		return nil, ErrSessionStarted
	}
	u.state = StateFilesRegistering
	u.mu.Unlock()
	u.announce(StateIdle, StateFilesRegistering)

	report := &UploadReport{Registrations: u.Wait()}
	files := report.Registrations.Succeeded()
	if len(files) == 0 {
		return report, u.fail(ErrNoFiles)
	}

	unsubscribe := u.client.Errors.Subscribe(u.Events.RequestError.Publish)
	defer unsubscribe()

	metas := make([]models.FileMeta, len(files))
	for i, file := range files {
		metas[i] = file.Meta()
	}
	request, err := models.NewContainerRequest(u.settings, metas)
	if err != nil {
		return report, u.fail(err)
	}

	container, err := u.client.CreateContainer(ctx, request)
	if err != nil {
		return report, u.fail(fmt.Errorf("create container: %w", err))
	}
	report.ContainerUUID = container.Container.UUID
	u.transition(StateContainerCreated)

	log.Info().
		Str("container", container.Container.UUID).
		Str("upload_host", container.UploadHost).
		Int("files", len(files)).
		Int64("bytes", request.SizeOfUpload).
		Msg("Container created")

	arenas := make([]*progress.Arena, len(files))
	for i, file := range files {
		arenas[i] = progress.NewArena(file.Name, chunk.Count(file.Size, u.chunkSize))
	}
	u.mu.Lock()
	u.arenas = arenas
	u.mu.Unlock()

	u.transition(StateChunksUploading)
	report.Files = u.uploadFiles(ctx, container, files, arenas)

	if len(report.Files.Succeeded()) == 0 {
		return report, u.fail(errors.Join(ErrNothingUploaded, report.Files.Err()))
	}

	u.transition(StateFinalizing)
	links, err := u.client.Complete(ctx, container.Container.UUID, u.settings.Lang)
	if err != nil {
		return report, u.fail(fmt.Errorf("finalize container: %w", err))
	}
	report.Links = links
	u.transition(StateDone)

	log.Info().
		Str("container", container.Container.UUID).
		Int("uploaded", len(report.Files.Succeeded())).
		Int("failed", len(report.Files.Failed())).
		Int("links", len(links)).
		Msg("Upload complete")

	u.Events.Done.Publish(report)
	return report, nil
}

func (u *Uploader) uploadFiles(ctx context.Context, container *models.ContainerResponse, files []models.LocalFile, arenas []*progress.Arena) batch.Results[models.LocalFile] {
	collector := batch.NewCollector[models.LocalFile](len(files))

	var waitGroup sync.WaitGroup
	for i, file := range files {
		waitGroup.Add(1)
		go func(i int, file models.LocalFile) {
			defer waitGroup.Done()

			fileUUID := container.FilesUUID[i]
			err := u.engine.UploadFile(ctx, upload.Job{
				File: file,
				Target: client.ChunkTarget{
					UploadHost:    container.UploadHost,
					ContainerUUID: container.Container.UUID,
					FileUUID:      fileUUID,
				},
				Progress:   arenas[i],
				OnProgress: u.publishProgress,
				OnChunk: func(ch chunk.Chunk, err error) {
					if err == nil {
						u.Events.ChunkUploaded.Publish(ChunkUploaded{File: file, FileUUID: fileUUID, Chunk: ch})
					}
				},
			})

			if err != nil {
				fileErr := &FileError{Name: file.Name, Err: err}
				collector.Set(i, batch.Result[models.LocalFile]{ID: fileUUID, Item: file, Err: fileErr})
				log.Error().Err(err).Str("file", file.Name).Msg("File upload failed")
				u.Events.FileFailed.Publish(fileErr)
				return
			}

			collector.Set(i, batch.Result[models.LocalFile]{ID: fileUUID, Item: file})
			log.Debug().Str("file", file.Name).Str("file_uuid", fileUUID).Msg("File uploaded")
			u.Events.FileUploaded.Publish(FileUploaded{File: file, FileUUID: fileUUID})
		}(i, file)
	}
	waitGroup.Wait()

	return collector.Results()
}

func (u *Uploader) publishProgress() {
	u.Events.Progress.Publish(u.Progress())
}

func (u *Uploader) transition(to State) {
	u.mu.Lock()
	from := u.state
	u.state = to
	u.mu.Unlock()
	u.announce(from, to)
}

func (u *Uploader) announce(from, to State) {
	log.Debug().Stringer("from", from).Stringer("to", to).Msg("Upload state changed")
	u.Events.StateChanged.Publish(StateChanged{From: from, To: to})
}

func (u *Uploader) fail(err error) error {
	log.Error().Err(err).Msg("Upload failed")
	u.transition(StateFailed)
	return err
}
