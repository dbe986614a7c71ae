package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"swisstransfer/pkg/access"
	"swisstransfer/pkg/chunk"
	"swisstransfer/pkg/models"

	"github.com/stretchr/testify/suite"
)

type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	UserAgent     string
	ContentLength int64
	Body          []byte
}

// ClientTestSuite tests the API client against a scripted fake service.
type ClientTestSuite struct {
	suite.Suite
	server   *httptest.Server
	client   *Client
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.requests = nil
	s.handlers = map[string]http.HandlerFunc{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			UserAgent:     r.UserAgent(),
			ContentLength: r.ContentLength,
			Body:          body,
		})
		s.mu.Unlock()

		for prefix, handler := range s.handlers {
			if strings.HasPrefix(r.URL.Path, prefix) {
				r.Body = io.NopCloser(bytes.NewReader(body))
				handler(w, r)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	s.client = New(Options{
		Host:           s.server.URL,
		UploadScheme:   "http",
		RequestTimeout: 5 * time.Second,
		RetryWaitMin:   time.Millisecond,
		RetryWaitMax:   time.Millisecond,
	})
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientTestSuite) respond(prefix string, status int, body string) {
	s.handlers[prefix] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (s *ClientTestSuite) lastRequest() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.requests)
	return s.requests[len(s.requests)-1]
}

// TestVerifyPasswordGranted tests the request shape and a granted answer.
func (s *ClientTestSuite) TestVerifyPasswordGranted() {
	s.respond("/api/isPasswordValid", http.StatusOK, `{"linkUUID":"l-1","containerUUID":"c-1","downloadCounterCredit":3,"expiredDate":"2999-01-01 00:00:00","container":{"UUID":"c-1","needPassword":1,"files":[]}}`)

	result, err := s.client.VerifyPassword(context.Background(), "l-1", "secret")
	s.Require().NoError(err)
	s.True(result.IsGranted())

	req := s.lastRequest()
	s.Equal(http.MethodPost, req.Method)
	s.Equal("swisstransfer-webext/1.0", req.UserAgent)
	s.JSONEq(`{"linkUUID":"l-1","password":"secret"}`, string(req.Body))
}

// TestVerifyPasswordDenied tests the literal false answer.
func (s *ClientTestSuite) TestVerifyPasswordDenied() {
	s.respond("/api/isPasswordValid", http.StatusOK, `false`)

	result, err := s.client.VerifyPassword(context.Background(), "l-1", "wrong")
	s.Require().NoError(err)
	s.False(result.IsGranted())
}

// TestVerifyPasswordUnexpected tests that other shapes are not coerced.
func (s *ClientTestSuite) TestVerifyPasswordUnexpected() {
	s.respond("/api/isPasswordValid", http.StatusOK, `true`)

	_, err := s.client.VerifyPassword(context.Background(), "l-1", "x")
	s.ErrorIs(err, access.ErrUnexpectedResponse)
}

// TestDownloadToken tests token decoding.
func (s *ClientTestSuite) TestDownloadToken() {
	s.respond("/api/generateDownloadToken", http.StatusOK, `"tok-123"`)

	token, err := s.client.DownloadToken(context.Background(), "c-1", "f-1", "secret")
	s.Require().NoError(err)
	s.Equal("tok-123", token)
	s.JSONEq(`{"containerUUID":"c-1","fileUUID":"f-1","password":"secret"}`, string(s.lastRequest().Body))

	s.respond("/api/generateDownloadToken", http.StatusOK, `{"token":"x"}`)
	_, err = s.client.DownloadToken(context.Background(), "c-1", "f-1", "secret")
	s.ErrorIs(err, ErrUnexpectedResponse)
}

// TestDownloadAttachesToken tests the streamed GET path and token query.
func (s *ClientTestSuite) TestDownloadAttachesToken() {
	s.handlers["/api/download/"] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "5")
		_, _ = io.WriteString(w, "hello")
	}

	resp, err := s.client.Download(context.Background(), "l-1", "f-1", "a b")
	s.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal("hello", string(data))
	s.Equal(int64(5), resp.ContentLength)

	req := s.lastRequest()
	s.Equal(http.MethodGet, req.Method)
	s.Equal("/api/download/l-1/f-1", req.Path)
	s.Equal("token=a+b", req.Query)

	plain, err := s.client.Download(context.Background(), "l-1", "f-1", "")
	s.Require().NoError(err)
	plain.Body.Close()
	s.Empty(s.lastRequest().Query)
}

// TestCreateContainer tests registration and the index alignment check.
func (s *ClientTestSuite) TestCreateContainer() {
	s.respond("/api/containers", http.StatusOK, `{"container":{"UUID":"c-1","needPassword":false},"uploadHost":"up.example.com","filesUUID":["f-1","f-2"]}`)

	request, err := models.NewContainerRequest(models.ContainerSettings{Duration: 7, NumberOfDownload: 20, Lang: "en_GB", RecipientsEmails: "[]"},
		[]models.FileMeta{{Name: "a", Size: 1}, {Name: "b", Size: 2}})
	s.Require().NoError(err)

	resp, err := s.client.CreateContainer(context.Background(), request)
	s.Require().NoError(err)
	s.Equal("c-1", resp.Container.UUID)
	s.Equal("up.example.com", resp.UploadHost)
	s.Equal([]string{"f-1", "f-2"}, resp.FilesUUID)

	var sent map[string]any
	s.Require().NoError(json.Unmarshal(s.lastRequest().Body, &sent))
	s.Equal(float64(3), sent["sizeOfUpload"])
	s.Equal(float64(2), sent["numberOfFile"])
	s.Equal("nope", sent["recaptcha"])

	s.respond("/api/containers", http.StatusOK, `{"container":{"UUID":"c-1"},"uploadHost":"up","filesUUID":["f-1"]}`)
	_, err = s.client.CreateContainer(context.Background(), request)
	s.ErrorIs(err, ErrUnexpectedResponse)
}

// TestUploadChunk tests the chunk path, body and Content-Length.
func (s *ClientTestSuite) TestUploadChunk() {
	s.respond("/api/uploadChunk/", http.StatusOK, `{}`)
	host := strings.TrimPrefix(s.server.URL, "http://")
	target := ChunkTarget{UploadHost: host, ContainerUUID: "c-1", FileUUID: "f-1"}

	ch := chunk.Chunk{Index: 3, Start: 30, End: 35, Last: true}
	err := s.client.UploadChunk(context.Background(), target, ch, func() io.Reader {
		return strings.NewReader("01234")
	})
	s.Require().NoError(err)

	req := s.lastRequest()
	s.Equal("/api/uploadChunk/c-1/f-1/3/1", req.Path)
	s.Equal(int64(5), req.ContentLength)
	s.Equal("01234", string(req.Body))

	empty := chunk.Chunk{Index: 0, Start: 0, End: 0, Last: true}
	err = s.client.UploadChunk(context.Background(), target, empty, func() io.Reader {
		s.Fail("empty chunk must not open a reader")
		return nil
	})
	s.Require().NoError(err)
	s.Equal(int64(0), s.lastRequest().ContentLength)
	s.Empty(s.lastRequest().Body)
}

// TestComplete tests the finalize call.
func (s *ClientTestSuite) TestComplete() {
	s.respond("/api/uploadComplete", http.StatusOK, `[{"linkUUID":"l-1","containerUUID":"c-1","downloadCounterCredit":20,"createdDate":"a","expiredDate":"b","isDownloadOnetime":0,"isMailSent":0}]`)

	links, err := s.client.Complete(context.Background(), "c-1", "en_GB")
	s.Require().NoError(err)
	s.Require().Len(links, 1)
	s.Equal("l-1", links[0].LinkUUID)
	s.JSONEq(`{"UUID":"c-1","lang":"en_GB"}`, string(s.lastRequest().Body))
}

// TestErrorStatusPublished tests APIError and the error topic.
func (s *ClientTestSuite) TestErrorStatusPublished() {
	s.respond("/api/uploadComplete", http.StatusBadRequest, `{"error":"unknown container"}`)

	var published []error
	unsubscribe := s.client.Errors.Subscribe(func(err error) { published = append(published, err) })
	defer unsubscribe()

	_, err := s.client.Complete(context.Background(), "c-x", "en_GB")
	s.Require().Error(err)

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusBadRequest, apiErr.StatusCode)
	s.Contains(apiErr.Error(), "unknown container")
	s.True(IsStatus(err, http.StatusBadRequest))
	s.Len(published, 1)
}

// TestNetworkErrorNotRetriedByDefault tests that a dead host fails once.
func (s *ClientTestSuite) TestNetworkErrorNotRetriedByDefault() {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	c := New(Options{Host: deadURL, RequestTimeout: time.Second})
	var published int
	c.Errors.Subscribe(func(error) { published++ })

	_, err := c.VerifyPassword(context.Background(), "l", "p")
	s.Error(err)
	s.Equal(1, published)
}

// TestUploadURL tests upload host normalization.
func (s *ClientTestSuite) TestUploadURL() {
	s.Equal("http://up.example.com", s.client.UploadURL("up.example.com"))
	s.Equal("https://up.example.com", s.client.UploadURL("https://up.example.com/"))

	defaults := New(Options{})
	s.Equal("https://www.swisstransfer.com", defaults.Host())
	s.Equal("https://up.example.com", defaults.UploadURL("up.example.com"))
}

// TestRetryPolicy tests that only missing responses are retried.
func (s *ClientTestSuite) TestRetryPolicy() {
	ctx := context.Background()

	retry, err := retryPolicy(ctx, &http.Response{StatusCode: http.StatusInternalServerError}, nil)
	s.False(retry)
	s.NoError(err)

	retry, err = retryPolicy(ctx, nil, errors.New("connection refused"))
	s.True(retry)
	s.NoError(err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = retryPolicy(canceled, nil, errors.New("connection refused"))
	s.False(retry)
	s.ErrorIs(err, context.Canceled)
}
