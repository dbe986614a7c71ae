package access

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"swisstransfer/pkg/models"
)

// timestampLayouts are the date formats the service is known to use.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000000",
	"2006-01-02T15:04:05",
}

// Grant is what a successful password check allows.
type Grant struct {
	LinkUUID           string
	ContainerUUID      string
	RemainingDownloads int
	ExpiresAt          time.Time
	RequiresToken      bool
	Files              []models.RemoteFile
}

// Result is either Granted or Denied.
type Result struct {
	grant   Grant
	granted bool
}

// Granted wraps a grant.
func Granted(grant Grant) Result {
	return Result{grant: grant, granted: true}
}

// Denied is the result of a rejected password.
func Denied() Result {
	return Result{}
}

// Grant returns the grant and whether access was granted.
func (r Result) Grant() (Grant, bool) {
	return r.grant, r.granted
}

// IsGranted reports whether access was granted.
func (r Result) IsGranted() bool {
	return r.granted
}

// Decode parses a password check response body: an object grants access,
// the literal false denies it, anything else is a protocol error.
func Decode(body []byte) (Result, error) {
	trimmed := bytes.TrimSpace(body)

	switch {
	case bytes.Equal(trimmed, []byte("false")):
		return Denied(), nil
	case len(trimmed) == 0 || trimmed[0] != '{':
		return Result{}, fmt.Errorf("%w: %.64q", ErrUnexpectedResponse, trimmed)
	}

	var check models.PasswordCheck
	if err := json.Unmarshal(trimmed, &check); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	grant, err := FromPasswordCheck(check)
	if err != nil {
		return Result{}, err
	}
	return Granted(grant), nil
}

// FromPasswordCheck converts the wire object into a Grant.
func FromPasswordCheck(check models.PasswordCheck) (Grant, error) {
	expiresAt, err := ParseTimestamp(check.ExpiredDate)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: expiredDate: %w", ErrUnexpectedResponse, err)
	}

	linkUUID := check.LinkUUID
	containerUUID := check.ContainerUUID
	if containerUUID == "" {
		containerUUID = check.Container.UUID
	}

	return Grant{
		LinkUUID:           linkUUID,
		ContainerUUID:      containerUUID,
		RemainingDownloads: check.DownloadCounterCredit,
		ExpiresAt:          expiresAt,
		RequiresToken:      check.Container.NeedPassword != 0,
		Files:              check.Container.Files,
	}, nil
}

// Check runs the session pre-flight gates in order: password, quota, expiry.
func Check(result Result, now time.Time) (Grant, error) {
	grant, ok := result.Grant()
	if !ok {
		return Grant{}, ErrWrongPassword
	}
	if grant.RemainingDownloads <= 0 {
		return grant, ErrQuotaExceeded
	}
	if !grant.ExpiresAt.IsZero() && grant.ExpiresAt.Before(now) {
		return grant, ErrLinkExpired
	}
	return grant, nil
}

// ParseTimestamp parses a service date. Dates without a zone are read as UTC,
// matching FormatTimestamp, so expiry checks do not depend on the host zone.
// An empty string yields the zero time.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}

// FormatTimestamp renders t in the service's date format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
