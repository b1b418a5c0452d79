package insight

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizqa/internal/ai"
)

type stubRuntime struct {
	calls int
	last  ai.GenerateRequest
	err   error
}

func (s *stubRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: "Sales peak in Q3."}}}}, nil
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDetectMediaType(t *testing.T) {
	assert.Equal(t, MediaPNG, DetectMediaType(encodePNG(t, solid(2, 2))))
	assert.Equal(t, MediaJPEG, DetectMediaType(encodeJPEG(t, solid(2, 2))))
	assert.Equal(t, MediaJPEG, DetectMediaType([]byte("not an image")))
}

func TestAnalyzeEmptyImage(t *testing.T) {
	rt := &stubRuntime{}
	_, err := New(rt, Options{}, nil).Analyze(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyImage)
	assert.Contains(t, err.Error(), "Error: Image file is empty")
	assert.Zero(t, rt.calls)
}

func TestAnalyzeSendsImage(t *testing.T) {
	rt := &stubRuntime{}
	img := encodeJPEG(t, solid(4, 4))
	out, err := New(rt, Options{Model: "vision"}, nil).Analyze(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Sales peak in Q3.", out)

	require.Len(t, rt.last.Messages, 1)
	msg := rt.last.Messages[0]
	require.Len(t, msg.Images, 1)
	assert.Equal(t, MediaJPEG, msg.Images[0].MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(img), msg.Images[0].Data)
	assert.Equal(t, "vision", rt.last.Model)
}

func TestAnalyzeDownscales(t *testing.T) {
	rt := &stubRuntime{}
	_, err := New(rt, Options{MaxImageDim: 50}, nil).Analyze(context.Background(), encodePNG(t, solid(200, 100)))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(rt.last.Messages[0].Images[0].Data)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestAnalyzeWrapsModelErrors(t *testing.T) {
	rt := &stubRuntime{err: errors.New("boom")}
	_, err := New(rt, Options{}, nil).Analyze(context.Background(), encodePNG(t, solid(2, 2)))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Error generating insights: "))
}

func TestDownscaleKeepsSmallImages(t *testing.T) {
	img := encodePNG(t, solid(10, 10))
	out, err := Downscale(img, MediaPNG, 100)
	require.NoError(t, err)
	assert.Equal(t, img, out)

	_, err = Downscale([]byte("garbage"), MediaJPEG, 10)
	assert.Error(t, err)
}
