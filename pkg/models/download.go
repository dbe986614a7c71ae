package models

// PasswordCheckRequest is the body of POST api/isPasswordValid.
type PasswordCheckRequest struct {
	LinkUUID string `json:"linkUUID"`
	Password string `json:"password"`
}

// RemoteFile describes a file stored in a container.
// ReceivedSizeInBytes is informational only.
type RemoteFile struct {
	ContainerUUID       string  `json:"containerUUID"`
	UUID                string  `json:"UUID"`
	FileName            string  `json:"fileName"`
	FileSizeInBytes     int64   `json:"fileSizeInBytes"`
	DownloadCounter     int     `json:"downloadCounter"`
	CreatedDate         string  `json:"createdDate"`
	ExpiredDate         string  `json:"expiredDate"`
	DeletedDate         *string `json:"deletedDate,omitempty"`
	MimeType            string  `json:"mimeType"`
	ReceivedSizeInBytes int64   `json:"receivedSizeInBytes"`
}

// LinkedContainer is the container part of a successful password check.
type LinkedContainer struct {
	UUID          string       `json:"UUID"`
	Duration      int          `json:"duration"`
	AuthorEmail   string       `json:"authorEmail"`
	AuthorIP      string       `json:"authorIP"`
	CreatedDate   string       `json:"createdDate"`
	ExpiredDate   string       `json:"expiredDate"`
	NumberOfFile  int          `json:"numberOfFile"`
	Message       string       `json:"message"`
	NeedPassword  int          `json:"needPassword"`
	Lang          string       `json:"lang"`
	SizeUploaded  int64        `json:"sizeUploaded"`
	DeletedDate   *string      `json:"deletedDate,omitempty"`
	SwiftVersion  int          `json:"swiftVersion"`
	DownloadLimit int          `json:"downloadLimit"`
	Source        string       `json:"source"`
	WSUser        *string      `json:"WSUser,omitempty"`
	Files         []RemoteFile `json:"files"`
}

// PasswordCheck is the object returned by api/isPasswordValid when access is granted.
type PasswordCheck struct {
	LinkUUID              string          `json:"linkUUID"`
	ContainerUUID         string          `json:"containerUUID"`
	UserEmail             string          `json:"userEmail"`
	DownloadCounterCredit int             `json:"downloadCounterCredit"`
	CreatedDate           string          `json:"createdDate"`
	ExpiredDate           string          `json:"expiredDate"`
	IsDownloadOnetime     int             `json:"isDownloadOnetime"`
	IsMailSent            int             `json:"isMailSent"`
	Container             LinkedContainer `json:"container"`
}

// TokenRequest is the body of POST api/generateDownloadToken.
type TokenRequest struct {
	ContainerUUID string `json:"containerUUID"`
	FileUUID      string `json:"fileUUID"`
	Password      string `json:"password"`
}
