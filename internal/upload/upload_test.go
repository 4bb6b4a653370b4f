package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func sized(name, mimeType string, size int64) File {
	return File{Name: name, Type: mimeType, Size: size}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		accept  string
		file    File
	}{
		{name: "empty accept admits anything", file: sized("a.bin", "application/octet-stream", 10)},
		{name: "blank entries ignored", accept: " , ", file: sized("a.bin", "application/octet-stream", 10)},
		{name: "wildcard image", accept: "image/*", file: sized("a.png", "image/png", 10)},
		{name: "second entry matches", accept: "image/*, application/pdf", file: sized("a.pdf", "application/pdf", 10)},
		{name: "type not in list", accept: "image/*,application/pdf", file: sized("a.txt", "text/plain", 10), wantErr: ErrTypeNotAllowed},
		{name: "exactly 5MB accepted", file: sized("big.pdf", "application/pdf", 5*1024*1024)},
		{name: "one byte over rejected", file: sized("big.pdf", "application/pdf", 5*1024*1024+1), wantErr: ErrTooLarge},
		{name: "type checked before size", accept: "image/*", file: sized("big.txt", "text/plain", 6*1024*1024), wantErr: ErrTypeNotAllowed},
		{name: "invalid pattern compared literally", accept: "image/(", file: sized("a.png", "image/(", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Accept(tt.file, tt.accept)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccept_UserMessages(t *testing.T) {
	err := Accept(sized("a.txt", "text/plain", 1), "image/*")
	assert.Equal(t, "Type de fichier non autorisé", common.UserMessage(err))

	err = Accept(sized("a.pdf", "application/pdf", MaxFileSize+1), "")
	assert.Equal(t, "Le fichier est trop volumineux (max 5MB)", common.UserMessage(err))
}

func TestParseAccept(t *testing.T) {
	assert.Equal(t, []string{"image/*", "application/pdf"}, ParseAccept(" image/* ,application/pdf,"))
	assert.Nil(t, ParseAccept(""))
}

func TestArea_RejectionKeepsPreviousSelection(t *testing.T) {
	area := NewArea("image/*,application/pdf")
	ctx := context.Background()

	first, err := area.Select(ctx, NewFile("contract.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", first.Label)
	assert.Nil(t, first.Preview)

	_, err = area.Select(ctx, NewFile("notes.txt", "text/plain", []byte("hello")))
	require.Error(t, err)
	assert.Same(t, first, area.Selected())

	_, err = area.Select(ctx, sized("huge.pdf", "application/pdf", MaxFileSize+1))
	require.Error(t, err)
	assert.Same(t, first, area.Selected())

	area.Clear()
	assert.Nil(t, area.Selected())
}

func TestArea_ImagePreview(t *testing.T) {
	area := NewArea("image/*")

	sel, err := area.Select(context.Background(), NewFile("pixel.png", "image/png", pngPixel))
	require.NoError(t, err)
	require.NotNil(t, sel.Preview)
	assert.Equal(t, "pixel.png", sel.Label)

	select {
	case p := <-sel.Preview:
		require.NoError(t, p.Err)
		assert.Equal(t, "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAACklEQVR4nGMAAQAABQABDQottAAAAABJRU5ErkJggg==", p.DataURL)
	case <-time.After(5 * time.Second):
		t.Fatal("preview never delivered")
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixel.png")
	require.NoError(t, os.WriteFile(path, pngPixel, 0600))

	file, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "pixel.png", file.Name)
	assert.Equal(t, "image/png", file.Type)
	assert.Equal(t, int64(len(pngPixel)), file.Size)
	assert.True(t, file.IsImage())

	textPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("plain text notes\n"), 0600))
	text, err := FromPath(textPath)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", text.Type)

	_, err = FromPath(dir)
	assert.Error(t, err)
}
