package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const grantedBody = `{
	"linkUUID": "link-1",
	"containerUUID": "container-1",
	"userEmail": "",
	"downloadCounterCredit": 19,
	"createdDate": "2024-05-01 10:00:00",
	"expiredDate": "2024-05-08 10:00:00",
	"isDownloadOnetime": 0,
	"isMailSent": 0,
	"container": {
		"UUID": "container-1",
		"duration": 7,
		"numberOfFile": 1,
		"needPassword": 1,
		"lang": "en_GB",
		"sizeUploaded": 3,
		"deletedDate": null,
		"swiftVersion": 4,
		"downloadLimit": 20,
		"files": [
			{
				"containerUUID": "container-1",
				"UUID": "file-1",
				"fileName": "a.txt",
				"fileSizeInBytes": 3,
				"downloadCounter": 1,
				"createdDate": "2024-05-01 10:00:00",
				"expiredDate": "2024-05-08 10:00:00",
				"mimeType": "text/plain",
				"receivedSizeInBytes": 3
			}
		]
	}
}`

// AccessTestSuite tests password check decoding and the pre-flight gates.
type AccessTestSuite struct {
	suite.Suite
	now time.Time
}

func TestAccessTestSuite(t *testing.T) {
	suite.Run(t, new(AccessTestSuite))
}

func (s *AccessTestSuite) SetupTest() {
	s.now = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
}

// TestDecodeGranted tests decoding of a granted password check.
func (s *AccessTestSuite) TestDecodeGranted() {
	result, err := Decode([]byte(grantedBody))
	s.Require().NoError(err)

	grant, ok := result.Grant()
	s.True(ok)
	s.True(result.IsGranted())
	s.Equal("link-1", grant.LinkUUID)
	s.Equal("container-1", grant.ContainerUUID)
	s.Equal(19, grant.RemainingDownloads)
	s.True(grant.RequiresToken)
	s.Equal(time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC), grant.ExpiresAt)
	s.Require().Len(grant.Files, 1)
	s.Equal("a.txt", grant.Files[0].FileName)
	s.Nil(grant.Files[0].DeletedDate)
}

// TestDecodeDenied tests that the literal false denies access.
func (s *AccessTestSuite) TestDecodeDenied() {
	for _, body := range []string{"false", " false\n"} {
		result, err := Decode([]byte(body))
		s.Require().NoError(err)
		s.False(result.IsGranted())

		_, err = Check(result, s.now)
		s.ErrorIs(err, ErrWrongPassword)
	}
}

// TestDecodeUnexpectedShapes tests that other bodies are protocol errors.
func (s *AccessTestSuite) TestDecodeUnexpectedShapes() {
	bodies := []string{"", "true", "null", `"yes"`, "[]", "0", `{"expiredDate": "next tuesday"}`, `{"linkUUID": 5}`}
	for _, body := range bodies {
		_, err := Decode([]byte(body))
		s.ErrorIs(err, ErrUnexpectedResponse, body)
	}
}

// TestCheckQuota tests that exhausted credit fails before expiry is considered.
func (s *AccessTestSuite) TestCheckQuota() {
	for _, credit := range []int{0, -1} {
		result := Granted(Grant{RemainingDownloads: credit, ExpiresAt: s.now.Add(-time.Hour)})
		_, err := Check(result, s.now)
		s.ErrorIs(err, ErrQuotaExceeded)
	}
}

// TestCheckExpired tests the expiry gate.
func (s *AccessTestSuite) TestCheckExpired() {
	result := Granted(Grant{RemainingDownloads: 3, ExpiresAt: s.now.Add(-time.Second)})
	_, err := Check(result, s.now)
	s.ErrorIs(err, ErrLinkExpired)
}

// TestCheckAllowed tests a grant that passes every gate.
func (s *AccessTestSuite) TestCheckAllowed() {
	result := Granted(Grant{LinkUUID: "l", RemainingDownloads: 1, ExpiresAt: s.now.Add(time.Hour)})
	grant, err := Check(result, s.now)
	s.NoError(err)
	s.Equal("l", grant.LinkUUID)

	noExpiry := Granted(Grant{RemainingDownloads: 1})
	_, err = Check(noExpiry, s.now)
	s.NoError(err)
}

// TestParseTimestamp tests the accepted date layouts.
func (s *AccessTestSuite) TestParseTimestamp() {
	want := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)

	for _, value := range []string{"2024-05-08 10:00:00", "2024-05-08T10:00:00Z", "2024-05-08T10:00:00", "2024-05-08 10:00:00.000000"} {
		ts, err := ParseTimestamp(value)
		s.Require().NoError(err, value)
		s.True(want.Equal(ts), value)
	}

	ts, err := ParseTimestamp("")
	s.NoError(err)
	s.True(ts.IsZero())

	_, err = ParseTimestamp("tomorrow")
	s.ErrorIs(err, ErrInvalidTimestamp)

	s.Equal("2024-05-08 10:00:00", FormatTimestamp(want))

	original := time.Local
	time.Local = time.FixedZone("UTC+5", 5*60*60)
	defer func() { time.Local = original }()

	ts, err = ParseTimestamp("2024-05-08 10:00:00")
	s.Require().NoError(err)
	s.True(want.Equal(ts), "naive dates must not follow the host zone")
	s.Equal(time.UTC, ts.Location())
}
