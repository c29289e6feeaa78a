package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// DefaultEndpointURL is the OpenAI chat completions endpoint.
const DefaultEndpointURL = "https://api.openai.com/v1/chat/completions"

// ChatRequest is the request body for the chat completions API.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the subset of the chat completions response we read.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// Choice is one candidate completion.
type Choice struct {
	Message Message `json:"message"`
}

// HTTPSender posts requests as JSON with a bearer credential.
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSender creates a sender for endpoint. A zero timeout leaves the
// transport default in place.
func NewHTTPSender(endpoint string, timeout time.Duration) *HTTPSender {
	if endpoint == "" {
		endpoint = DefaultEndpointURL
	}
	return &HTTPSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL requests are posted to.
func (s *HTTPSender) Endpoint() string {
	return s.endpoint
}

// Send posts req and decodes the response. Transport failures and non-2xx
// statuses are NETWORK_ERROR; an undecodable body is PARSE_FAILURE.
func (s *HTTPSender) Send(ctx context.Context, credential string, req *ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrParseFailure, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "failed to create HTTP request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+credential)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		logger.Error("translation request failed", err, logger.String("endpoint", s.endpoint))
		return nil, types.NewAppError(types.ErrNetwork, "translation request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "failed to read translation response", err)
	}

	logger.Debug("translation response received",
		logger.Int("statusCode", resp.StatusCode),
		logger.Int("bytes", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpStatusError(resp.StatusCode, respBody)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, types.NewAppError(types.ErrParseFailure, "failed to parse translation response", err)
	}
	return &chatResp, nil
}

// httpStatusError builds a NETWORK_ERROR, using the provider's error message
// as details when the body carries one.
func httpStatusError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	details := fmt.Sprintf("status %d", statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		details += ": " + errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return types.NewAppErrorWithDetails(types.ErrNetwork, "translation endpoint rejected the credential", details, nil)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrNetwork, "translation endpoint rate limit exceeded", details, nil)
	case http.StatusBadRequest:
		return types.NewAppErrorWithDetails(types.ErrNetwork, "translation endpoint rejected the request", details, nil)
	default:
		return types.NewAppErrorWithDetails(types.ErrNetwork, "translation request failed", details, nil)
	}
}
