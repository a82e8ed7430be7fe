package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hgupta/billscan/internal/pipeline"
)

// Ollama implements the Extractor interface using Ollama
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Extractor instance
// Recommended models for bill extraction (in order of recommendation):
//   - llava:1.6 (best balance of accuracy and speed)
//   - qwen2-vl:7b (good OCR capabilities)
//   - llava-phi3 (smaller, faster, but less accurate)
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models are slow on local hardware
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// ExtractPage sends the full page plus a bounded set of region crops to the
// chat API and parses the model's JSON response.
func (o *Ollama) ExtractPage(ctx context.Context, page pipeline.PageMetadata, typeHint string) (*PageExtraction, TokenUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	pageNo := strconv.Itoa(page.PageNo)

	images, err := buildImagePayload(page)
	if err != nil {
		return nil, TokenUsage{}, err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: extractionSystemPrompt,
			},
			{
				Role:    "user",
				Content: extractionPrompt(pageNo, typeHint),
				Images:  images,
			},
		},
		Options: ollamaOptions{Temperature: 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, TokenUsage{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, TokenUsage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, TokenUsage{}, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, TokenUsage{}, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, TokenUsage{}, fmt.Errorf("decoding response: %w", err)
	}

	usage := TokenUsage{
		InputTokens:  chatResp.PromptEvalCount,
		OutputTokens: chatResp.EvalCount,
		TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
	}

	extraction, err := parsePageExtraction(chatResp.Message.Content)
	if err != nil {
		return nil, usage, fmt.Errorf("parsing page %s extraction: %w", pageNo, err)
	}
	extraction.PageNo = pageNo

	return extraction, usage, nil
}

// buildImagePayload base64-encodes the full page followed by the region
// crops, skipping the full-page crop at index 0 and capping at the region
// crop budget.
func buildImagePayload(page pipeline.PageMetadata) ([]string, error) {
	fullPNG, err := pipeline.EncodePNG(page.FullImage)
	if err != nil {
		return nil, fmt.Errorf("encoding page %d: %w", page.PageNo, err)
	}
	images := []string{base64.StdEncoding.EncodeToString(fullPNG)}

	regions := page.Crops
	if len(regions) > 0 {
		regions = regions[1:]
	}
	if len(regions) > regionCropBudget {
		regions = regions[:regionCropBudget]
	}
	for _, crop := range regions {
		cropPNG, err := pipeline.EncodePNG(crop.Image)
		if err != nil {
			return nil, fmt.Errorf("encoding crop %s: %w", crop.ID, err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(cropPNG))
	}
	return images, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
