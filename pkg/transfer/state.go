package transfer

// State is the lifecycle stage of an upload session.
type State int

const (
	StateIdle State = iota
	StateFilesRegistering
	StateContainerCreated
	StateChunksUploading
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFilesRegistering:
		return "files-registering"
	case StateContainerCreated:
		return "container-created"
	case StateChunksUploading:
		return "chunks-uploading"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
