package models

import "strings"

// Link is one shareable link returned when a container is finalized.
type Link struct {
	LinkUUID              string `json:"linkUUID"`
	ContainerUUID         string `json:"containerUUID"`
	UserEmail             string `json:"userEmail,omitempty"`
	DownloadCounterCredit int    `json:"downloadCounterCredit"`
	CreatedDate           string `json:"createdDate"`
	ExpiredDate           string `json:"expiredDate"`
	IsDownloadOnetime     int    `json:"isDownloadOnetime"`
	IsMailSent            int    `json:"isMailSent"`
}

// URL returns the public download page of the link on host.
func (l Link) URL(host string) string {
	return strings.TrimRight(host, "/") + "/d/" + l.LinkUUID
}
