package syftsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPartSize(t *testing.T) {
	u := &resumableUploader{params: &UploadParams{}}

	t.Run("default part size", func(t *testing.T) {
		size, count := u.selectPartSize(100*1024*1024, 0)
		assert.Equal(t, defaultMultipartPartSize, size)
		assert.Equal(t, 2, count)
	})

	t.Run("override below floor is clamped", func(t *testing.T) {
		size, _ := u.selectPartSize(100*1024*1024, 1024)
		assert.Equal(t, minMultipartPartSize, size)
	})

	t.Run("part size doubles until part count fits", func(t *testing.T) {
		// 5MiB parts over 60000MiB would need 12000 parts
		size, count := u.selectPartSize(int64(60000)*1024*1024, minMultipartPartSize)
		assert.LessOrEqual(t, count, maxMultipartParts)
		assert.Equal(t, minMultipartPartSize*2, size)
	})
}

func TestUploadSessionFileName(t *testing.T) {
	a := UploadSessionFileName("user@example.com/file.bin", "/tmp/file.bin")
	b := UploadSessionFileName("user@example.com/file.bin", "/tmp/other.bin")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, UploadSessionFileName("user@example.com/file.bin", "/tmp/file.bin"))
	assert.Equal(t, ".json", filepath.Ext(a))
}

func TestResumableUploader_SessionInvalidation(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(filePath, make([]byte, 1024), 0o644))
	info, err := os.Stat(filePath)
	require.NoError(t, err)

	params := &UploadParams{
		Key:       "alice@example.com/data.bin",
		FilePath:  filePath,
		ResumeDir: dir,
	}

	// seed a session with a stale fingerprint
	stale := &uploadSession{
		UploadID:    "old-upload",
		Key:         params.Key,
		FilePath:    filePath,
		Fingerprint: "0:0",
		Size:        info.Size(),
		Completed:   map[int]string{1: "etag1"},
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	sessionFile := filepath.Join(dir, UploadSessionFileName(params.Key, filePath))
	require.NoError(t, os.WriteFile(sessionFile, data, 0o644))

	u := newResumableUploader(nil, params, info)
	require.NoError(t, u.loadSession())
	assert.Nil(t, u.session, "stale fingerprint should invalidate the session")
	assert.NoFileExists(t, sessionFile)

	// a matching session survives
	fresh := *stale
	fresh.Fingerprint = u.fingerprint
	data, err = json.Marshal(&fresh)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sessionFile, data, 0o644))

	require.NoError(t, u.loadSession())
	require.NotNil(t, u.session)
	assert.Equal(t, "old-upload", u.session.UploadID)
	assert.Equal(t, "etag1", u.session.Completed[1])
}

// TestResumableUploader_ResumesAfterInterrupt drives a full multipart upload
// against a fake server, kills it after the first part, then finishes with a
// second uploader and verifies already-uploaded parts are not re-sent.
func TestResumableUploader_ResumesAfterInterrupt(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "big.bin")
	fileSize := int64(10 * 1024)
	require.NoError(t, os.WriteFile(filePath, make([]byte, fileSize), 0o644))
	info, err := os.Stat(filePath)
	require.NoError(t, err)

	const partSize = int64(4 * 1024) // 3 parts
	var mu sync.Mutex
	partPuts := make(map[int]int)
	completed := false

	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case v1BlobUploadMultipart:
			var mreq MultipartUploadRequest
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &mreq))

			urls := make(map[int]string, len(mreq.PartNumbers))
			for _, p := range mreq.PartNumbers {
				urls[p] = fmt.Sprintf("%s/part/%d", ts.URL, p)
			}
			resp := &MultipartUploadResponse{
				UploadID:  "upl-1",
				Key:       mreq.Key,
				PartSize:  partSize,
				PartCount: 3,
				URLs:      urls,
			}
			data, _ := json.Marshal(resp)
			w.Write(data)

		case v1BlobUploadComplete:
			mu.Lock()
			completed = true
			mu.Unlock()
			data, _ := json.Marshal(&UploadResponse{Key: "k", ETag: "final"})
			w.Write(data)

		default: // part PUTs
			var part int
			fmt.Sscanf(r.URL.Path, "/part/%d", &part)
			io.Copy(io.Discard, r.Body)

			mu.Lock()
			partPuts[part]++
			count := partPuts[part]
			mu.Unlock()

			// first attempt at part 2 fails to simulate an interrupt
			if part == 2 && count == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("ETag", fmt.Sprintf("%q", fmt.Sprintf("etag-%d", part)))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client := req.C().SetBaseURL(ts.URL).SetJsonMarshal(jsonMarshal).SetJsonUnmarshal(jsonUnmarshal)

	params := &UploadParams{
		Key:       "alice@example.com/big.bin",
		FilePath:  filePath,
		ResumeDir: dir,
		PartSize:  partSize,
	}

	// first run fails at part 2
	u1 := newResumableUploader(client, params, info)
	_, err = u1.Upload(context.Background())
	require.Error(t, err)

	sessionFile := filepath.Join(dir, UploadSessionFileName(params.Key, filePath))
	assert.FileExists(t, sessionFile, "failed upload should leave its session behind")

	// second run resumes and completes
	u2 := newResumableUploader(client, params, info)
	resp, err := u2.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "final", resp.ETag)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, completed)
	assert.Equal(t, 1, partPuts[1], "part 1 should not be re-uploaded on resume")
	assert.Equal(t, 2, partPuts[2], "part 2 fails once then succeeds")
	assert.Equal(t, 1, partPuts[3])
	assert.NoFileExists(t, sessionFile, "completed upload should remove its session")
}
