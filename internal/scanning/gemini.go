package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks for raw text only; field extraction stays with our
// own heuristics so both recognizers feed the same pipeline.
const transcribePrompt = `Transcribe all text visible in this receipt or invoice exactly as printed.
Keep the original line breaks and reading order, one printed line per output line.
Do not summarize, translate, correct, or add anything. Do not use markdown.
If the document contains no legible text, return an empty response.`

// Gemini implements the Recognizer interface using Google Gemini as the OCR engine
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini recognizer. A zero timeout uses DefaultOCRTimeout.
func NewGemini(ctx context.Context, apiKey string, modelName string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrOCRUnavailable
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	if timeout <= 0 {
		timeout = DefaultOCRTimeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	var temperature float32
	model.Temperature = &temperature

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Recognize transcribes the text of a receipt image or PDF
func (g *Gemini) Recognize(ctx context.Context, data []byte, mediaType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	pngData, err := toPNG(data, mediaType)
	if err != nil {
		return "", &ProcessingError{Message: err.Error()}
	}

	// genai.ImageData expects the format suffix ("png"), not the MIME type
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", pngData), genai.Text(transcribePrompt))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ProcessingError{Message: "no response from gemini"}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := strings.TrimSpace(text.String())
	out = strings.TrimPrefix(out, "```text")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
