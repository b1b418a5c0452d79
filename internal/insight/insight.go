// Package insight sends a chart image to a vision model and returns its
// written analysis.
package insight

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/KaramelBytes/vizqa/internal/ai"
	"github.com/KaramelBytes/vizqa/internal/metrics"
)

// ErrEmptyImage is returned for a zero-length upload.
var ErrEmptyImage = errors.New("Error: Image file is empty")

const (
	MediaPNG  = "image/png"
	MediaJPEG = "image/jpeg"
)

const instruction = `You are a data analyst. Analyze the chart or image provided and describe:
- what is being visualized (chart type, variables, units if visible),
- the key patterns, trends and outliers,
- notable comparisons between groups or periods,
- any caveats about how the chart could be misread.

Finish with two or three concise, actionable takeaways.`

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// DetectMediaType reports image/png for the PNG signature and image/jpeg
// for everything else.
func DetectMediaType(b []byte) string {
	if bytes.HasPrefix(b, pngMagic) {
		return MediaPNG
	}
	return MediaJPEG
}

// Downscale shrinks img so that its longer side is at most maxDim pixels,
// keeping the media type. Images already within bounds are returned as is.
func Downscale(img []byte, mediaType string, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		return img, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return img, nil
	}
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	w, h := cfg.Width, cfg.Height
	if w >= h {
		w, h = maxDim, max(1, h*maxDim/w)
	} else {
		w, h = max(1, w*maxDim/h), maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if mediaType == MediaPNG {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Options configures the model call.
type Options struct {
	Model       string
	MaxTokens   int
	MaxImageDim int
}

const DefaultMaxTokens = 4000

// Service runs the insight pipeline.
type Service struct {
	rt   ai.Runtime
	opts Options
	log  *zap.Logger
	m    *metrics.Metrics
}

func New(rt ai.Runtime, opts Options, log *zap.Logger) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rt: rt, opts: opts, log: log, m: metrics.Get()}
}

// Analyze returns the model's analysis of img verbatim.
func (s *Service) Analyze(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", ErrEmptyImage
	}
	if s.rt == nil {
		return "", fmt.Errorf("Error generating insights: %w", ai.ErrNoAPIKey)
	}
	mediaType := DetectMediaType(img)
	if scaled, err := Downscale(img, mediaType, s.opts.MaxImageDim); err != nil {
		s.log.Warn("sending image without downscaling", zap.Error(err))
	} else {
		img = scaled
	}

	s.log.Info("Calling LLM for insights",
		zap.String("model", s.opts.Model),
		zap.String("media_type", mediaType),
		zap.Int("bytes", len(img)),
	)
	start := time.Now()
	resp, err := s.rt.Generate(ctx, ai.GenerateRequest{
		Model:     s.opts.Model,
		MaxTokens: s.opts.MaxTokens,
		Messages: []ai.Message{{
			Role:    "user",
			Content: instruction,
			Images:  []ai.Image{{MediaType: mediaType, Data: base64.StdEncoding.EncodeToString(img)}},
		}},
	})
	s.m.LLMDuration.WithLabelValues("insight").Observe(time.Since(start).Seconds())
	s.m.LLMRequestsTotal.WithLabelValues("insight", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Error("insight request failed", zap.Error(err))
		return "", fmt.Errorf("Error generating insights: %w", err)
	}
	s.m.LLMTokensTotal.WithLabelValues("insight", "prompt").Add(float64(resp.Usage.PromptTokens))
	s.m.LLMTokensTotal.WithLabelValues("insight", "completion").Add(float64(resp.Usage.CompletionTokens))
	return resp.Text(), nil
}
