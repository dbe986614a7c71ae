package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContainerRequest(t *testing.T) {
	settings := ContainerSettings{
		Duration:         7,
		Password:         "password",
		NumberOfDownload: 20,
		Lang:             "en_GB",
		RecipientsEmails: EncodeRecipients(nil),
	}
	files := []FileMeta{{Name: "a.bin", Size: 10}, {Name: "b.bin", Size: 32}}

	req, err := NewContainerRequest(settings, files)
	require.NoError(t, err)

	assert.Equal(t, int64(42), req.SizeOfUpload)
	assert.Equal(t, 2, req.NumberOfFile)
	assert.Equal(t, "nope", req.Recaptcha)
	assert.JSONEq(t, `[{"name":"a.bin","size":10},{"name":"b.bin","size":32}]`, req.Files)

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(raw, &flat))
	for _, key := range []string{
		"duration", "authorEmail", "password", "message", "numberOfDownload", "lang",
		"recipientsEmails", "sizeOfUpload", "numberOfFile", "recaptcha", "files",
	} {
		assert.Contains(t, flat, key)
	}
	assert.Equal(t, "[]", flat["recipientsEmails"])
	assert.IsType(t, "", flat["files"])

	decoded, err := DecodeFiles(req.Files)
	require.NoError(t, err)
	assert.Equal(t, files, decoded)
}

func TestEncodeFilesEmpty(t *testing.T) {
	encoded, err := EncodeFiles(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)
}

func TestEncodeRecipients(t *testing.T) {
	assert.Equal(t, "[]", EncodeRecipients(nil))
	assert.Equal(t, `["a@example.com","b@example.com"]`, EncodeRecipients([]string{"a@example.com", "b@example.com"}))
}

func TestLinkURL(t *testing.T) {
	link := Link{LinkUUID: "4ad9f515"}
	assert.Equal(t, "https://www.swisstransfer.com/d/4ad9f515", link.URL("https://www.swisstransfer.com/"))
}

func TestContainerResponseDecode(t *testing.T) {
	body := `{
		"container": {
			"UUID": "c-1",
			"duration": 7,
			"downloadLimit": 20,
			"lang": "en_GB",
			"source": "ST",
			"WSUser": null,
			"authorIP": "127.0.0.1",
			"swiftVersion": "4",
			"createdDate": {"date": "2024-05-01 10:00:00.000000", "timezone_type": 3, "timezone": "Europe/Zurich"},
			"expiredDate": "2024-05-08 10:00:00",
			"needPassword": true,
			"numberOfFile": 2
		},
		"uploadHost": "upload.example.com",
		"filesUUID": ["f-1", "f-2"]
	}`

	var resp ContainerResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "c-1", resp.Container.UUID)
	assert.True(t, resp.Container.NeedPassword)
	assert.Nil(t, resp.Container.WSUser)
	assert.Equal(t, "Europe/Zurich", resp.Container.CreatedDate.Timezone)
	assert.Equal(t, []string{"f-1", "f-2"}, resp.FilesUUID)
}
