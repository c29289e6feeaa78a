package translator

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/types"
)

// ChatModelFactory builds a chat model for one credential.
type ChatModelFactory func(ctx context.Context, credential string) (model.BaseChatModel, error)

// EinoSender sends requests through an eino chat model instead of raw HTTP.
// The model is built per call because the credential is read per job.
type EinoSender struct {
	newModel ChatModelFactory
}

// NewEinoSender creates a sender backed by the eino-ext OpenAI chat model.
// endpoint may be a full chat completions URL or a base URL.
func NewEinoSender(endpoint, modelName string, timeout time.Duration) *EinoSender {
	baseURL := BaseURL(endpoint)
	return &EinoSender{
		newModel: func(ctx context.Context, credential string) (model.BaseChatModel, error) {
			cfg := &openai.ChatModelConfig{
				Model:  modelName,
				APIKey: credential,
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if timeout > 0 {
				cfg.Timeout = timeout
			}
			return openai.NewChatModel(ctx, cfg)
		},
	}
}

// NewEinoSenderWithFactory creates a sender using a custom model factory.
func NewEinoSenderWithFactory(factory ChatModelFactory) *EinoSender {
	return &EinoSender{newModel: factory}
}

// Send converts req to eino messages and maps the single generated message
// back to one choice. Every failure on this path is a NETWORK_ERROR because
// eino does not distinguish transport from decode errors.
func (s *EinoSender) Send(ctx context.Context, credential string, req *ChatRequest) (*ChatResponse, error) {
	chatModel, err := s.newModel(ctx, credential)
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "failed to create chat model", err)
	}

	msgs := make([]*schema.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, schema.SystemMessage(m.Content))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}

	out, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, types.NewAppError(types.ErrNetwork, "translation request failed", err)
	}
	if out == nil {
		return &ChatResponse{}, nil
	}
	return &ChatResponse{Choices: []Choice{{Message: Message{Role: string(out.Role), Content: out.Content}}}}, nil
}

// BaseURL strips a trailing /chat/completions so the URL can be handed to
// clients that append the path themselves.
func BaseURL(endpoint string) string {
	return strings.TrimSuffix(strings.TrimSuffix(endpoint, "/"), "/chat/completions")
}
