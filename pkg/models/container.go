package models

import (
	"encoding/json"
	"fmt"
)

// RecaptchaPlaceholder is sent in place of a captcha response by non-browser clients.
const RecaptchaPlaceholder = "nope"

// ContainerSettings are the user-chosen options of an upload batch.
type ContainerSettings struct {
	Duration         int    `json:"duration"`
	AuthorEmail      string `json:"authorEmail"`
	Password         string `json:"password"`
	Message          string `json:"message"`
	NumberOfDownload int    `json:"numberOfDownload"`
	Lang             string `json:"lang"`
	RecipientsEmails string `json:"recipientsEmails"`
}

// FileMeta is the per-file entry of a container registration.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ContainerRequest is the body of POST api/containers.
type ContainerRequest struct {
	ContainerSettings
	SizeOfUpload int64  `json:"sizeOfUpload"`
	NumberOfFile int    `json:"numberOfFile"`
	Recaptcha    string `json:"recaptcha"`
	// Files is a JSON-encoded []FileMeta.
	Files string `json:"files"`
}

// NewContainerRequest builds the registration body for files, in order.
func NewContainerRequest(settings ContainerSettings, files []FileMeta) (ContainerRequest, error) {
	encoded, err := EncodeFiles(files)
	if err != nil {
		return ContainerRequest{}, err
	}

	var size int64
	for _, f := range files {
		size += f.Size
	}

	return ContainerRequest{
		ContainerSettings: settings,
		SizeOfUpload:      size,
		NumberOfFile:      len(files),
		Recaptcha:         RecaptchaPlaceholder,
		Files:             encoded,
	}, nil
}

// EncodeFiles encodes the file list the way the registration endpoint expects it.
func EncodeFiles(files []FileMeta) (string, error) {
	if files == nil {
		files = []FileMeta{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("encode files: %w", err)
	}
	return string(raw), nil
}

// DecodeFiles is the inverse of EncodeFiles.
func DecodeFiles(encoded string) ([]FileMeta, error) {
	var files []FileMeta
	if err := json.Unmarshal([]byte(encoded), &files); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	return files, nil
}

// EncodeRecipients encodes recipient addresses as the JSON string the API expects.
func EncodeRecipients(recipients []string) string {
	if len(recipients) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(recipients)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// ServerDate is the date object some endpoints return instead of a string.
type ServerDate struct {
	Date         string `json:"date"`
	TimezoneType int    `json:"timezone_type"`
	Timezone     string `json:"timezone"`
}

// CreatedContainer is the container part of the registration response.
type CreatedContainer struct {
	UUID          string     `json:"UUID"`
	Duration      int        `json:"duration"`
	DownloadLimit int        `json:"downloadLimit"`
	Lang          string     `json:"lang"`
	Source        string     `json:"source"`
	WSUser        *string    `json:"WSUser,omitempty"`
	AuthorIP      string     `json:"authorIP"`
	SwiftVersion  string     `json:"swiftVersion"`
	CreatedDate   ServerDate `json:"createdDate"`
	ExpiredDate   string     `json:"expiredDate"`
	NeedPassword  bool       `json:"needPassword"`
	NumberOfFile  int        `json:"numberOfFile"`
}

// ContainerResponse is the response of POST api/containers.
// FilesUUID is index-aligned with the submitted file list.
type ContainerResponse struct {
	Container  CreatedContainer `json:"container"`
	UploadHost string           `json:"uploadHost"`
	FilesUUID  []string         `json:"filesUUID"`
}

// CompleteRequest is the body of POST api/uploadComplete.
type CompleteRequest struct {
	UUID string `json:"UUID"`
	Lang string `json:"lang"`
}
