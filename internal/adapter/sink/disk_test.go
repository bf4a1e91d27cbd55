package sink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikiaudio/internal/domain"
	"wikiaudio/internal/port"
)

func TestDeliver_InlineBytes(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, nil)

	id, err := d.Deliver(context.Background(), port.Delivery{
		Bytes:    []byte("RIFF....WAVE"),
		Filename: "word.wav",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "word.wav"), id)

	data, err := os.ReadFile(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF....WAVE"), data)
}

func TestDeliver_SanitizesFilename(t *testing.T) {
	dir := t.TempDir()
	d := NewDisk(dir, nil)

	id, err := d.Deliver(context.Background(), port.Delivery{
		Bytes:    []byte("x"),
		Filename: `bad:name"here.wav`,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bad_name_here.wav"), id)
}

func TestDeliver_FromURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ogg-bytes"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	d := NewDisk(dir, nil)

	id, err := d.Deliver(context.Background(), port.Delivery{
		SourceURL: ts.URL + "/En-us-word.ogg",
		Filename:  "En-us-word.ogg",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ogg-bytes"), data)
}

func TestDeliver_URL404(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer ts.Close()

	d := NewDisk(t.TempDir(), nil)
	_, err := d.Deliver(context.Background(), port.Delivery{
		SourceURL: ts.URL + "/gone.ogg",
		Filename:  "gone.ogg",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindDownloadSink, domain.KindOf(err))
}

func TestDeliver_Empty(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)
	_, err := d.Deliver(context.Background(), port.Delivery{Filename: "x.wav"})
	assert.ErrorIs(t, err, ErrEmptyDelivery)
	assert.Equal(t, domain.KindDownloadSink, domain.KindOf(err))
}
