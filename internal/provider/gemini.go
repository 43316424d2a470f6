package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// GeminiBaseURL is the Generative Language API root.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var errGeminiTruncated = errors.New("stream ended without finish reason")

// Gemini talks to the Google Generative Language REST API. Models in the
// gemma family have no system instruction support; for them the system text
// is folded into the first user message instead.
type Gemini struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates a Gemini provider. An empty baseURL uses GeminiBaseURL.
func NewGemini(baseURL, apiKey, model string, timeout time.Duration) *Gemini {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (r *geminiResponse) finished() bool {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return true
	}
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason != ""
}

type geminiErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Name returns "google".
func (g *Gemini) Name() string { return "google" }

// SupportedModels lists the known Gemini models.
func (g *Gemini) SupportedModels() []string {
	models := []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemma-3-27b-it"}
	for _, m := range models {
		if m == g.model {
			return models
		}
	}
	return append([]string{g.model}, models...)
}

// ResolveHistory folds system into history for models without a system channel.
func (g *Gemini) ResolveHistory(system string, history []domain.Message) []domain.Message {
	if !g.foldsSystem() {
		return history
	}
	return FoldSystem(system, history)
}

func (g *Gemini) foldsSystem() bool {
	return strings.HasPrefix(g.model, "gemma-")
}

// ChatCompletion implements Provider.
func (g *Gemini) ChatCompletion(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions) (string, error) {
	model, body, err := g.buildRequest(system, history, opts)
	if err != nil {
		return "", callError(g.Name(), OpChatCompletion, err)
	}

	resp, err := g.post(ctx, model+":generateContent", body)
	if err != nil {
		return "", callError(g.Name(), OpChatCompletion, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", callError(g.Name(), OpChatCompletion, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", callError(g.Name(), OpChatCompletion, geminiAPIError(resp.StatusCode, respBody))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", callError(g.Name(), OpChatCompletion, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if text := result.text(); text != "" {
		return text, nil
	}
	return EmptyResponseText, nil
}

// ChatCompletionStream implements Provider over the SSE variant of streamGenerateContent.
func (g *Gemini) ChatCompletionStream(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions, fn StreamFunc) error {
	guard := &streamGuard{fn: fn}
	return guard.result(g.Name(), g.stream(ctx, system, history, opts, guard))
}

func (g *Gemini) stream(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions, guard *streamGuard) error {
	model, body, err := g.buildRequest(system, history, opts)
	if err != nil {
		return err
	}

	resp, err := g.post(ctx, model+":streamGenerateContent?alt=sse", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return geminiAPIError(resp.StatusCode, respBody)
	}

	reader := bufio.NewReader(resp.Body)
	finished := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err != io.EOF {
				return fmt.Errorf("failed to read stream: %w", err)
			}
			if !finished {
				return errGeminiTruncated
			}
			return nil
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var chunk geminiResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &chunk); err != nil {
			continue
		}
		if err := guard.emit(chunk.text()); err != nil {
			return err
		}
		if chunk.finished() {
			finished = true
		}
	}
}

func (g *Gemini) buildRequest(system string, history []domain.Message, opts domain.CompletionOptions) (string, []byte, error) {
	params := resolveParams(opts, g.model)

	req := geminiRequest{
		Contents: make([]geminiContent, 0, len(history)),
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: params.maxTokens,
			Temperature:     params.temperature,
			TopP:            params.topP,
		},
	}
	for _, m := range history {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if system != "" && !g.foldsSystem() {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return params.model, body, nil
}

func (g *Gemini) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/models/"+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func geminiAPIError(status int, body []byte) error {
	var errResp geminiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("Gemini API error [%d]: %s (status: %s)", status, errResp.Error.Message, errResp.Error.Status)
	}
	return fmt.Errorf("Gemini API error [%d]: %s", status, string(body))
}
