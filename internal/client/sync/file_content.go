package sync

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// FileContent bundles a file's metadata with its full contents. It is used
// on the priority upload path, where files are small enough to buffer.
type FileContent struct {
	FileMetadata
	Content []byte
}

// NewFileContent reads the file at absPath and computes its ETag in a
// single pass.
func NewFileContent(absPath string) (*FileContent, error) {
	file, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	}

	var buf bytes.Buffer
	buf.Grow(int(info.Size()))

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(&buf, hash), file); err != nil {
		return nil, fmt.Errorf("read %s: %w", absPath, err)
	}

	return &FileContent{
		FileMetadata: FileMetadata{
			Path:         absPath,
			ETag:         fmt.Sprintf("%x", hash.Sum(nil)),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		},
		Content: buf.Bytes(),
	}, nil
}
