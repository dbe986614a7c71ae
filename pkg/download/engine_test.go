package download

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"swisstransfer/pkg/client"
	"swisstransfer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// EngineTestSuite tests streamed downloads against a scripted server.
type EngineTestSuite struct {
	suite.Suite
	server     *httptest.Server
	engine     *Engine
	dest       string
	mu         sync.Mutex
	tokenCalls int
	queries    []string
	content    string
	declared   int64
	truncate   bool
	status     int
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.tokenCalls = 0
	s.queries = nil
	s.content = "hello world"
	s.declared = int64(len(s.content))
	s.truncate = false
	s.status = http.StatusOK
	s.dest = s.T().TempDir()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/generateDownloadToken", func(w http.ResponseWriter, r *http.Request) {
		var req models.TokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.tokenCalls++
		n := s.tokenCalls
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(req.FileUUID + "-token-" + strconv.Itoa(n))
	})
	mux.HandleFunc("/api/download/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query().Get("token"))
		s.mu.Unlock()

		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		if s.declared >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(s.declared, 10))
		} else {
			// Flushing before the body forces a chunked response without a length.
			w.(http.Flusher).Flush()
		}
		if s.truncate {
			_, _ = io.WriteString(w, s.content[:3])
			hijacker, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hijacker.Hijack()
				_ = conn.Close()
			}
			return
		}
		_, _ = io.WriteString(w, s.content)
	})
	s.server = httptest.NewServer(mux)

	s.engine = NewEngine(client.New(client.Options{Host: s.server.URL, RequestTimeout: 5 * time.Second}))
}

func (s *EngineTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *EngineTestSuite) job(name string) Job {
	return Job{
		LinkUUID: "l-1",
		File:     models.RemoteFile{ContainerUUID: "c-1", UUID: "f-1", FileName: name, FileSizeInBytes: int64(len(s.content))},
		Dest:     s.dest,
	}
}

// TestDownloadWithToken tests that a fresh token is attached to every attempt.
func (s *EngineTestSuite) TestDownloadWithToken() {
	job := s.job("greeting.txt")
	job.NeedToken = true
	job.Password = "secret"

	var readings [][2]int64
	job.OnProgress = func(transferred, total int64) { readings = append(readings, [2]int64{transferred, total}) }

	path, err := s.engine.DownloadFile(context.Background(), job)
	s.Require().NoError(err)
	s.Equal(filepath.Join(s.dest, "greeting.txt"), path)

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal(s.content, string(data))

	s.Require().NotEmpty(readings)
	s.Equal([2]int64{int64(len(s.content)), int64(len(s.content))}, readings[len(readings)-1])

	_, err = s.engine.DownloadFile(context.Background(), job)
	s.Require().NoError(err)
	s.Equal(2, s.tokenCalls)
	s.Equal([]string{"f-1-token-1", "f-1-token-2"}, s.queries)
}

// TestDownloadWithoutToken tests that no token is requested for open containers.
func (s *EngineTestSuite) TestDownloadWithoutToken() {
	_, err := s.engine.DownloadFile(context.Background(), s.job("open.txt"))
	s.Require().NoError(err)
	s.Zero(s.tokenCalls)
	s.Equal([]string{""}, s.queries)
}

// TestUnknownTotalSuppressesProgress tests that chunked responses report nothing.
func (s *EngineTestSuite) TestUnknownTotalSuppressesProgress() {
	s.declared = -1
	job := s.job("stream.txt")
	job.OnProgress = func(int64, int64) { s.Fail("progress without a known total") }

	path, err := s.engine.DownloadFile(context.Background(), job)
	s.Require().NoError(err)
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal(s.content, string(data))
}

// TestStreamErrorRemovesPartialFile tests cleanup after a broken stream.
func (s *EngineTestSuite) TestStreamErrorRemovesPartialFile() {
	s.truncate = true

	_, err := s.engine.DownloadFile(context.Background(), s.job("broken.txt"))
	s.Require().Error(err)

	_, statErr := os.Stat(filepath.Join(s.dest, "broken.txt"))
	s.True(os.IsNotExist(statErr))
}

// TestBadStatusWritesNothing tests that an error status leaves the destination empty.
func (s *EngineTestSuite) TestBadStatusWritesNothing() {
	s.status = http.StatusForbidden

	_, err := s.engine.DownloadFile(context.Background(), s.job("denied.txt"))
	s.True(client.IsStatus(err, http.StatusForbidden))

	entries, readErr := os.ReadDir(s.dest)
	s.Require().NoError(readErr)
	s.Empty(entries)
}

// TestUnsafeNameRejected tests that traversal names never reach the network.
func (s *EngineTestSuite) TestUnsafeNameRejected() {
	_, err := s.engine.DownloadFile(context.Background(), s.job("../escape.txt"))
	s.ErrorIs(err, ErrUnsafeFileName)
	s.Empty(s.queries)
}

func TestSafeName(t *testing.T) {
	for _, name := range []string{"a.txt", "report 2024.pdf", ".hidden", "résumé.doc"} {
		got, err := SafeName(name)
		assert.NoError(t, err, name)
		assert.Equal(t, name, got)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "/etc/passwd", "x\x00y"} {
		_, err := SafeName(name)
		assert.ErrorIs(t, err, ErrUnsafeFileName, name)
	}
}
