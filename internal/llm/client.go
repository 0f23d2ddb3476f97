package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ImagePart is one image attached to a request, preceded by its caption.
type ImagePart struct {
	Caption   string
	MediaType string
	Data      []byte
}

// JSONSchema names and defines the structure the response must follow.
type JSONSchema struct {
	Name       string
	Definition map[string]any
}

// CompletionRequest holds the parameters for one structured completion.
type CompletionRequest struct {
	SystemPrompt string
	UserText     string
	Images       []ImagePart
	Schema       *JSONSchema
}

// CompletionResponse holds the assistant text and call metadata.
type CompletionResponse struct {
	Content   string
	Model     string
	LatencyMs int64
	Raw       []byte
}

// Client sends one chat-completion round trip. It never retries.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Provider() Provider
	Model() string
}

// chatClient implements Client for chat-completions compatible APIs. The
// provider only changes how the schema is enforced.
type chatClient struct {
	cfg      Config
	http     *http.Client
	observer Observer
}

// NewClient validates cfg and returns a Client for its provider.
func NewClient(cfg Config, observer Observer) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = DefaultConfig().TimeoutMs
	}
	return &chatClient{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
			},
		},
		observer: observer,
	}, nil
}

func (c *chatClient) Provider() Provider { return c.cfg.Provider }
func (c *chatClient) Model() string       { return c.cfg.Model }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// chatResponse is the subset of the chat-completions envelope we read.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *chatClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	raw, status, err := c.doRequest(callCtx, body)
	if err == nil {
		var resp *CompletionResponse
		resp, err = decodeEnvelope(raw)
		if err == nil {
			latency := time.Since(start).Milliseconds()
			resp.LatencyMs = latency
			if resp.Model == "" {
				resp.Model = c.cfg.Model
			}
			c.observer.OnCallComplete(CallEvent{
				Provider:   c.cfg.Provider,
				Model:      c.cfg.Model,
				LatencyMs:  latency,
				Images:     len(req.Images),
				StatusCode: status,
				Success:    true,
			})
			return resp, nil
		}
	}

	// Caller cancellation is reported as-is, not as an API failure.
	if ctx.Err() != nil {
		err = ctx.Err()
	} else if callCtx.Err() != nil {
		err = fmt.Errorf("%w: timed out after %dms: %w", ErrAPIRequestFailed, c.cfg.TimeoutMs, callCtx.Err())
	}

	c.observer.OnCallComplete(CallEvent{
		Provider:   c.cfg.Provider,
		Model:      c.cfg.Model,
		LatencyMs:  time.Since(start).Milliseconds(),
		Images:     len(req.Images),
		StatusCode: status,
		Success:    false,
		ErrorCode:  ErrorCode(err),
	})
	return nil, err
}

func (c *chatClient) buildRequest(req CompletionRequest) (chatRequest, error) {
	system := req.SystemPrompt
	var format *responseFormat

	if req.Schema != nil {
		switch c.cfg.Provider {
		case ProviderOpenAI:
			format = &responseFormat{
				Type: "json_schema",
				JSONSchema: &jsonSchemaFormat{
					Name:   req.Schema.Name,
					Strict: true,
					Schema: req.Schema.Definition,
				},
			}
		case ProviderHFRouter:
			schema, err := json.MarshalIndent(req.Schema.Definition, "", "  ")
			if err != nil {
				return chatRequest{}, fmt.Errorf("encoding schema %s: %w", req.Schema.Name, err)
			}
			system += "\n\nRespond with a single JSON object and nothing else. It must match this JSON schema:\n" + string(schema)
		}
	}

	systemRole := "system"
	if c.cfg.Provider == ProviderOpenAI {
		systemRole = "developer"
	}

	user := []contentPart{{Type: "text", Text: req.UserText}}
	for _, img := range req.Images {
		if img.Caption != "" {
			user = append(user, contentPart{Type: "text", Text: img.Caption})
		}
		user = append(user, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: dataURL(img)},
		})
	}

	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: systemRole, Content: []contentPart{{Type: "text", Text: system}}},
			{Role: "user", Content: user},
		},
		ResponseFormat: format,
		MaxTokens:      c.cfg.MaxTokens,
		Temperature:    c.cfg.Temperature,
	}, nil
}

func (c *chatClient) doRequest(ctx context.Context, body chatRequest) ([]byte, int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.EffectiveEndpoint() + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: creating request: %v", ErrAPIRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("%w: reading response: %v", ErrAPIRequestFailed, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, httpResp.StatusCode, &APIError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}
	return respBody, httpResp.StatusCode, nil
}

func decodeEnvelope(raw []byte) (*CompletionResponse, error) {
	var env chatResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrResponseDecode, err)
	}
	if len(env.Choices) == 0 {
		return nil, fmt.Errorf("%w: envelope has no choices", ErrResponseDecode)
	}
	return &CompletionResponse{
		Content: env.Choices[0].Message.Content,
		Model:   env.Model,
		Raw:     raw,
	}, nil
}

func dataURL(img ImagePart) string {
	media := img.MediaType
	if media == "" {
		media = "image/png"
	}
	return "data:" + media + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
