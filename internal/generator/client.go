package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// LLMClient is the interface every generator backend satisfies.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Options selects and configures the backend.
type Options struct {
	UseCLI  bool
	CLIPath string
	Mock    bool
	Model   string
	APIKey  string
}

// Generator turns raw study text into a structured content bundle.
type Generator struct {
	llm   LLMClient
	model string
}

func NewGenerator(opts Options) *Generator {
	var llm LLMClient
	model := "mock"

	switch {
	case opts.UseCLI:
		cliPath := opts.CLIPath
		if cliPath == "" {
			cliPath = "claude"
		}
		llm = NewCLIClient(cliPath)
		model = "claude-cli"
		log.Println("[generator] using Claude CLI")
	case opts.Mock:
		llm = NewMockClient()
		log.Println("[generator] using mock data")
	default:
		model = opts.Model
		if model == "" {
			model = "claude-opus-4-5-20251101"
		}
		llm = NewAPIClient(opts.APIKey, model)
		log.Println("[generator] using Anthropic API:", model)
	}

	return &Generator{llm: llm, model: model}
}

// NewWithClient wraps an existing client.
func NewWithClient(llm LLMClient, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

func (g *Generator) ModelName() string {
	return g.model
}

// GenerateContent asks the model to break text into facts, concepts and
// procedures.
func (g *Generator) GenerateContent(ctx context.Context, text string) (*ContentBundle, *LLMResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, fmt.Errorf("generate content: empty source text")
	}

	resp, err := g.llm.Generate(ctx, ContentSystemPrompt(), BuildContentUserPrompt(text))
	if err != nil {
		return nil, nil, fmt.Errorf("generate content: %w", err)
	}

	bundle, err := ParseResponse(resp.Content)
	if err != nil {
		return nil, resp, fmt.Errorf("parse content response: %w", err)
	}

	return bundle, resp, nil
}

// Enrich generates a bundle and returns it encoded together with its quality
// classification.
func (g *Generator) Enrich(ctx context.Context, text string) (json.RawMessage, string, error) {
	bundle, resp, err := g.GenerateContent(ctx, text)
	if err != nil {
		return nil, "", err
	}

	score := ComputeQualityScore(ComputeStructuralScore(bundle), CoverageScore(bundle, text))
	quality := ClassifyQuality(score)
	if resp != nil {
		log.Printf("[generator] bundle %q: %d facts, %d concepts, %d procedures, quality %.2f (%s), tokens %d/%d",
			bundle.Title, len(bundle.Facts), len(bundle.Concepts), len(bundle.Procedures),
			score, quality, resp.PromptTokens, resp.OutputTokens)
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, "", fmt.Errorf("encode bundle: %w", err)
	}
	return data, quality, nil
}

// ── APIClient — Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(apiKey, model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.3),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[generator] retrying Anthropic API call in %v (attempt %d)", wait, attempt+1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.Printf("[generator] Anthropic API attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	return &LLMResponse{
		Content:      buildMockJSON(sourceFromPrompt(userPrompt)),
		PromptTokens: 600,
		OutputTokens: 900,
	}, nil
}

// sourceFromPrompt pulls the study text back out of the user prompt.
func sourceFromPrompt(prompt string) string {
	start := strings.Index(prompt, sourceOpenTag)
	end := strings.Index(prompt, sourceCloseTag)
	if start < 0 || end < start {
		return prompt
	}
	return strings.TrimSpace(prompt[start+len(sourceOpenTag) : end])
}

func buildMockJSON(source string) string {
	words := strings.Fields(source)
	title := "[Mock] Study notes"
	if len(words) > 0 {
		n := len(words)
		if n > 5 {
			n = 5
		}
		title = truncate("[Mock] "+strings.Join(words[:n], " "), maxTitleLen)
	}

	sentences := splitSentences(source)
	if len(sentences) == 0 {
		sentences = []string{"The source text was empty."}
	}

	bundle := ContentBundle{Title: title}
	for i, s := range sentences {
		if i >= 5 {
			break
		}
		bundle.Facts = append(bundle.Facts, Fact{
			Statement:   truncate(s, maxStatementLen),
			Explanation: "[Mock] Restated from the source for recall practice.",
		})
	}
	for _, w := range words {
		if len(bundle.Concepts) >= 3 {
			break
		}
		term := strings.Trim(w, ".,;:!?")
		if term == "" {
			continue
		}
		bundle.Concepts = append(bundle.Concepts, Concept{
			Term:       term,
			Definition: "[Mock] A key term appearing in the source text.",
		})
	}
	bundle.Procedures = []Procedure{{
		Name:  "[Mock] Review the material",
		Steps: []string{"Read the facts", "Define each concept", "Explain the idea in your own words"},
	}}

	data, _ := json.Marshal(bundle)
	return string(data)
}

func splitSentences(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part+".")
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
