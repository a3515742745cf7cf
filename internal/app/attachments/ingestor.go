// Package attachments validates user selected files and turns them into
// base64 attachments waiting to be sent.
package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/observability"
)

// SupportedMIMETypes are the media types the remote model accepts. Anything
// else is rejected before a request is made.
var SupportedMIMETypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"application/pdf",
	"text/plain",
}

// File is a user selected file. Its content can be opened once.
type File interface {
	Name() string
	Type() string
	Open() (io.ReadCloser, error)
}

// Selection is the file picker the files come from.
type Selection interface {
	Files() []File
	// Clear resets the picker so selecting the same file again is noticed.
	Clear()
}

// ValidationError reports a file with an unsupported media type.
type ValidationError struct {
	Name     string
	MIMEType string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsupported format %q for %s: only JPG, PNG, WEBP, PDF and TXT are accepted", e.MIMEType, e.Name)
}

// NormalizeMIMEType lowercases t and strips parameters ("text/plain; charset=utf-8" → "text/plain").
func NormalizeMIMEType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// Validate returns a *ValidationError when f's type is not supported.
func Validate(f File) error {
	mt := NormalizeMIMEType(f.Type())
	for _, s := range SupportedMIMETypes {
		if mt == s {
			return nil
		}
	}
	return &ValidationError{Name: f.Name(), MIMEType: f.Type()}
}

type Ingestor struct {
	pending *Pending
	// limit bounds concurrent reads.
	limit int
}

func NewIngestor(pending *Pending) *Ingestor {
	return &Ingestor{pending: pending, limit: 4}
}

// Ingest reads every supported file of sel concurrently and appends each one
// to the pending list as soon as it is read, so append order follows read
// completion. Unsupported or unreadable files are logged and skipped. The
// selection is cleared once all reads were dispatched.
func (in *Ingestor) Ingest(ctx context.Context, sel Selection) error {
	log := observability.LoggerFromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.limit)

	for _, f := range sel.Files() {
		if err := Validate(f); err != nil {
			log.Warn("attachment rejected", "name", f.Name(), "mime_type", f.Type(), "error", err)
			continue
		}

		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			att, err := Read(f)
			if err != nil {
				log.Error("attachment read failed", "name", f.Name(), "error", err)
				return nil
			}
			in.pending.Add(att)
			log.Debug("attachment added", "name", att.Name, "mime_type", att.MIMEType, "size", len(att.Data))
			return nil
		})
	}

	sel.Clear()
	return g.Wait()
}

// Read loads f fully and encodes it. Images keep a data URL preview.
func Read(f File) (domain.Attachment, error) {
	rc, err := f.Open()
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("opening %s: %w", f.Name(), err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("reading %s: %w", f.Name(), err)
	}

	mt := NormalizeMIMEType(f.Type())
	att := domain.Attachment{
		MIMEType: mt,
		Data:     base64.StdEncoding.EncodeToString(raw),
		Name:     f.Name(),
	}
	if att.IsImage() {
		att.PreviewURL = "data:" + mt + ";base64," + att.Data
	}
	return att, nil
}
