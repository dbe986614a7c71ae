package transfer

import (
	"swisstransfer/pkg/chunk"
	"swisstransfer/pkg/events"
	"swisstransfer/pkg/models"
	"swisstransfer/pkg/progress"
)

// FileAdded is published when a path has been accepted into the batch.
type FileAdded struct {
	Slot int
	File models.LocalFile
}

// FileAddFailed is published when a path was rejected.
type FileAddFailed struct {
	Path string
	Err  error
}

// ChunkUploaded is published once per successfully sent chunk.
type ChunkUploaded struct {
	File     models.LocalFile
	FileUUID string
	Chunk    chunk.Chunk
}

// FileUploaded is published once every chunk of a file succeeded.
type FileUploaded struct {
	File     models.LocalFile
	FileUUID string
}

// StateChanged is published on every session transition.
type StateChanged struct {
	From State
	To   State
}

// UploadEvents are the observable signals of an Uploader.
type UploadEvents struct {
	FileAdded     events.Topic[FileAdded]
	FileAddFailed events.Topic[FileAddFailed]
	Progress      events.Topic[progress.Tree]
	ChunkUploaded events.Topic[ChunkUploaded]
	FileUploaded  events.Topic[FileUploaded]
	FileFailed    events.Topic[*FileError]
	RequestError  events.Topic[error]
	StateChanged  events.Topic[StateChanged]
	Done          events.Topic[*UploadReport]
}

// FileDownloaded is published when a file was written to disk.
type FileDownloaded struct {
	File models.RemoteFile
	Path string
}

// DownloadEvents are the observable signals of a Downloader.
type DownloadEvents struct {
	Progress       events.Topic[progress.Tree]
	FileDownloaded events.Topic[FileDownloaded]
	FileFailed     events.Topic[*FileError]
	RequestError   events.Topic[error]
}
