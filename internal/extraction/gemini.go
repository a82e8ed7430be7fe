package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/hgupta/billscan/internal/pipeline"
)

// regionCropBudget caps how many region crops ride along with the full page
// in one request. Beyond this the marginal signal is low and the request
// payload gets large.
const regionCropBudget = 10

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Extraction must be reproducible run to run.
	temperature := float32(0)
	model.Temperature = &temperature
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractionSystemPrompt)},
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractPage sends the full page plus a bounded set of region crops and
// parses the model's JSON response.
func (g *Gemini) ExtractPage(ctx context.Context, page pipeline.PageMetadata, typeHint string) (*PageExtraction, TokenUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pageNo := strconv.Itoa(page.PageNo)

	parts, err := buildImageParts(page)
	if err != nil {
		return nil, TokenUsage{}, err
	}
	parts = append(parts, genai.Text(extractionPrompt(pageNo, typeHint)))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, TokenUsage{}, fmt.Errorf("generating content: %w", err)
	}

	var usage TokenUsage
	if resp.UsageMetadata != nil {
		usage = TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, usage, err
	}

	extraction, err := parsePageExtraction(text)
	if err != nil {
		return nil, usage, fmt.Errorf("parsing page %s extraction: %w", pageNo, err)
	}
	extraction.PageNo = pageNo

	return extraction, usage, nil
}

// responseText concatenates the text parts of the first candidate. A
// safety-blocked candidate arrives with nil Content, so both levels are
// checked before dereferencing.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in gemini response (finish reason %v)", candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// buildImageParts encodes the full page image followed by the region crops.
// The first crop is the full-page crop, which duplicates the page image, so
// region selection starts at index 1.
func buildImageParts(page pipeline.PageMetadata) ([]genai.Part, error) {
	fullPNG, err := pipeline.EncodePNG(page.FullImage)
	if err != nil {
		return nil, fmt.Errorf("encoding page %d: %w", page.PageNo, err)
	}
	parts := []genai.Part{genai.ImageData("png", fullPNG)}

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
		parts = append(parts, genai.ImageData("png", cropPNG))
	}
	return parts, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
