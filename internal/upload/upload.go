// Package upload checks files picked for upload and builds image previews.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the largest accepted upload, in bytes.
const MaxFileSize = 5 * 1024 * 1024

// Rejection reasons.
var (
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrTooLarge       = errors.New("file too large")
)

// File is a candidate upload.
type File struct {
	open func() (io.ReadCloser, error)
	Name string
	Type string
	Size int64
}

// NewFile describes an in-memory file.
func NewFile(name, mimeType string, content []byte) File {
	return File{
		Name: name,
		Type: mimeType,
		Size: int64(len(content)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// FromPath describes a file on disk, sniffing its MIME type from content.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}

	return File{
		Name: filepath.Base(path),
		Type: baseType(mtype.String()),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path) // #nosec G304
		},
	}, nil
}

// Open returns the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

// IsImage reports whether the file has an image MIME type.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.Type, "image/")
}

// baseType drops MIME parameters such as charset.
func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// ParseAccept splits an accept list such as "image/*, application/pdf".
// Empty entries are dropped.
func ParseAccept(accept string) []string {
	var entries []string
	for _, entry := range strings.Split(accept, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Accept checks file against the accept list and the size ceiling. Each
// accept entry is used as a regular expression against the MIME type, so
// "image/*" and "image/" both admit any image. An empty list admits every
// type.
func Accept(file File, accept string) error {
	if entries := ParseAccept(accept); len(entries) > 0 && !typeAllowed(file.Type, entries) {
		return common.NewUserError("Type de fichier non autorisé",
			fmt.Errorf("%w: %s", ErrTypeNotAllowed, file.Type))
	}

	if file.Size > MaxFileSize {
		return common.NewUserError("Le fichier est trop volumineux (max 5MB)",
			fmt.Errorf("%w: %d bytes", ErrTooLarge, file.Size))
	}
	return nil
}

func typeAllowed(mimeType string, entries []string) bool {
	for _, entry := range entries {
		ok, err := common.MatchRegex(entry, mimeType)
		if err != nil {
			// not a valid pattern, compare literally
			ok = entry == mimeType
		}
		if ok {
			return true
		}
	}
	return false
}

// Preview is the outcome of an asynchronous preview read.
type Preview struct {
	Err     error
	DataURL string
}

// Selection is an accepted file together with its display label.
type Selection struct {
	// Preview yields one value for images and is nil otherwise.
	Preview <-chan Preview
	File    File
	Label   string
}

// Area is an upload slot. A rejected file leaves the previous selection in
// place.
type Area struct {
	logger   *slog.Logger
	selected *Selection
	accept   string
	mu       sync.Mutex
}

// NewArea creates an empty upload slot with the given accept list.
func NewArea(accept string) *Area {
	return &Area{accept: accept, logger: slog.Default()}
}

// Accept returns the slot's accept list.
func (a *Area) Accept() string {
	return a.accept
}

// Select validates file and, when accepted, makes it the current
// selection. Image previews are read in the background and delivered on
// the selection's Preview channel.
func (a *Area) Select(ctx context.Context, file File) (*Selection, error) {
	if err := Accept(file, a.accept); err != nil {
		a.logger.Debug("Upload rejected", "name", file.Name, "type", file.Type, "size", file.Size, "error", err)
		return nil, err
	}

	sel := &Selection{File: file, Label: file.Name}
	if file.IsImage() {
		ch := make(chan Preview, 1)
		sel.Preview = ch
		go func() {
			dataURL, err := DataURL(ctx, file)
			ch <- Preview{DataURL: dataURL, Err: err}
			close(ch)
		}()
	}

	a.mu.Lock()
	a.selected = sel
	a.mu.Unlock()
	return sel, nil
}

// Selected returns the current selection, or nil.
func (a *Area) Selected() *Selection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// Clear drops the current selection.
func (a *Area) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selected = nil
}

// DataURL encodes the file content as a data: URL.
func DataURL(ctx context.Context, file File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(file.Type)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(content))
	return b.String(), nil
}
