package models

// LocalFile is a file on disk registered for upload.
type LocalFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Meta returns the registration entry for the file.
func (f LocalFile) Meta() FileMeta {
	return FileMeta{Name: f.Name, Size: f.Size}
}
