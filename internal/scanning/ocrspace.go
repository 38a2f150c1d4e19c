package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	// DefaultOCRSpaceURL is the public OCR.space parse endpoint
	DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"
	// DefaultOCRTimeout is generous because large scanned documents are slow to recognize
	DefaultOCRTimeout = 60 * time.Second
)

// ocrSpaceOptions are the fixed recognition settings sent with every request:
// English, orientation auto-detection, upscaling and the more accurate engine.
var ocrSpaceOptions = [][2]string{
	{"language", "eng"},
	{"isOverlayRequired", "false"},
	{"detectOrientation", "true"},
	{"scale", "true"},
	{"OCREngine", "2"},
}

// OCRSpaceConfig configures the OCR.space client
type OCRSpaceConfig struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// OCRSpace implements the Recognizer interface using the OCR.space API
type OCRSpace struct {
	apiKey string
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewOCRSpace creates a new OCR.space client. An empty API key is allowed:
// Recognize then reports ErrOCRUnavailable.
func NewOCRSpace(cfg OCRSpaceConfig, logger *slog.Logger) *OCRSpace {
	if cfg.URL == "" {
		cfg.URL = DefaultOCRSpaceURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOCRTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRSpace{
		apiKey: cfg.APIKey,
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Recognize submits data to OCR.space and returns the text of the first result
func (o *OCRSpace) Recognize(ctx context.Context, data []byte, mediaType string) (string, error) {
	if o.apiKey == "" {
		return "", ErrOCRUnavailable
	}

	// OCR.space does not read HEIC, which is what most phones produce
	if isHEICFormat(data) || isHEICMimeType(mediaType) {
		png, err := imageToPNG(data, mediaType)
		if err != nil {
			return "", &ProcessingError{Message: err.Error()}
		}
		data, mediaType = png, defaultImageMediaType
	}

	body, contentType, err := o.encodeForm(data, mediaType)
	if err != nil {
		return "", fmt.Errorf("encoding ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", o.apiKey)

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Error("ocr request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		o.logger.Error("ocr api error", "status", resp.StatusCode, "body", truncate(string(respBody), 1<<10))
		return "", &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(respBody), 256))}
	}

	text, err := parseOCRSpaceResponse(respBody)
	if err != nil {
		return "", err
	}

	o.logger.Debug("ocr ok",
		"media_type", mediaType,
		"file_size", len(data),
		"text_length", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// encodeForm builds the multipart body carrying the document as a base64 data URI
func (o *OCRSpace) encodeForm(data []byte, mediaType string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	dataURI := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
	if err := w.WriteField("base64Image", dataURI); err != nil {
		return nil, "", err
	}
	for _, opt := range ocrSpaceOptions {
		if err := w.WriteField(opt[0], opt[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
