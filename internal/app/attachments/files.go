package attachments

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// LocalFile is a file on disk. Its type comes from the extension, falling
// back to content sniffing.
type LocalFile struct {
	Path string
}

func (f LocalFile) Name() string {
	return filepath.Base(f.Path)
}

func (f LocalFile) Type() string {
	if t := mime.TypeByExtension(filepath.Ext(f.Path)); t != "" {
		return NormalizeMIMEType(t)
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return "application/octet-stream"
	}
	defer fh.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(fh, head)
	return NormalizeMIMEType(http.DetectContentType(head[:n]))
}

func (f LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// MemFile is an in-memory file.
type MemFile struct {
	FileName string
	MIMEType string
	Content  []byte
}

func (f MemFile) Name() string { return f.FileName }
func (f MemFile) Type() string { return f.MIMEType }

func (f MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// StaticSelection is a Selection over a fixed list of files.
type StaticSelection struct {
	mu    sync.Mutex
	files []File
}

func NewSelection(files ...File) *StaticSelection {
	return &StaticSelection{files: files}
}

// LocalSelection selects the files at paths.
func LocalSelection(paths ...string) *StaticSelection {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		files = append(files, LocalFile{Path: p})
	}
	return NewSelection(files...)
}

func (s *StaticSelection) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

func (s *StaticSelection) Clear() {
	s.mu.Lock()
	s.files = nil
	s.mu.Unlock()
}
