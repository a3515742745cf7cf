package httpadapter

import (
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"

	"github.com/selkane/auxilium/internal/app/attachments"
)

// uploadFile adapts a multipart part to attachments.File.
type uploadFile struct {
	header *multipart.FileHeader
}

func (f uploadFile) Name() string { return f.header.Filename }

// Type is the client supplied Content-Type, or the one implied by the
// file extension when the client sent none.
func (f uploadFile) Type() string {
	if t := f.header.Header.Get("Content-Type"); t != "" && t != "application/octet-stream" {
		return t
	}
	return mime.TypeByExtension(filepath.Ext(f.header.Filename))
}

func (f uploadFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

// uploadSelection is the set of files of one upload request. Clearing it
// drops the references; the temporary files go with the multipart form.
type uploadSelection struct {
	files []attachments.File
}

func newUploadSelection(headers []*multipart.FileHeader) *uploadSelection {
	sel := &uploadSelection{}
	for _, h := range headers {
		sel.files = append(sel.files, uploadFile{header: h})
	}
	return sel
}

func (s *uploadSelection) Files() []attachments.File { return s.files }
func (s *uploadSelection) Clear()                    { s.files = nil }
