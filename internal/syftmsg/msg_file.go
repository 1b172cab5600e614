package syftmsg

// FileWrite carries a changed file. A FileWrite with empty Content but
// Length > 0 is a notification; the recipient fetches the content through
// the blob API instead of writing empty bytes.
type FileWrite struct {
	Path    string `json:"pth"`
	ETag    string `json:"etg"`
	Length  int64  `json:"len"`
	Content []byte `json:"con,omitempty"`
}

// IsNotify reports whether the write carries no inline content for a
// non-empty file.
func (f *FileWrite) IsNotify() bool {
	return len(f.Content) == 0 && f.Length > 0
}

type FileDelete struct {
	Path string `json:"pth"`
}

func NewFileWrite(path string, etag string, length int64, content []byte) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFileWrite,
		Data: FileWrite{
			Path:    path,
			ETag:    etag,
			Length:  length,
			Content: content,
		},
	}
}

// NewFileNotify builds a FileWrite-shaped envelope without content.
func NewFileNotify(path string, etag string, length int64) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFileNotify,
		Data: FileWrite{
			Path:   path,
			ETag:   etag,
			Length: length,
		},
	}
}

func NewFileDelete(path string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFileDelete,
		Data: FileDelete{Path: path},
	}
}
