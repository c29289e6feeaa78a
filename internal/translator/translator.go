// Package translator turns extracted document text into translated text by
// calling an OpenAI-compatible chat completions endpoint.
package translator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// KeyTranslateTo is the configuration key holding the target language.
	KeyTranslateTo = "TRANSLATE_TO"
	// KeyAPIKey is the configuration key holding the endpoint credential.
	KeyAPIKey = "OPENAI_API_KEY"

	// DefaultModel is the model named in every request unless overridden.
	DefaultModel = "gpt-4o-mini-2024-07-18"

	// NoTranslationPlaceholder is returned when the endpoint answers with no choices.
	NoTranslationPlaceholder = "No translation received"

	systemPrompt = "You are a professional translator and document formatter. " +
		"Preserve the original text layout as closely as possible in the translated output."

	userPromptTemplate = "Translate the following text to %s, preserving its original layout " +
		"as closely as possible (including paragraph breaks, section titles, and lists):\n\n%s"
)

// ConfigProvider is a read-only key-value lookup. Values may be of any type.
type ConfigProvider interface {
	Get(key string) (interface{}, bool)
}

// Sender delivers one chat request to the endpoint.
type Sender interface {
	Send(ctx context.Context, credential string, req *ChatRequest) (*ChatResponse, error)
}

// Config is the per-job configuration read from the provider.
type Config struct {
	TargetLanguage string
	APICredential  string
}

// Client builds translation requests and interprets the responses.
type Client struct {
	provider ConfigProvider
	sender   Sender
	model    string
}

// NewClient creates a Client. An empty model selects DefaultModel.
func NewClient(provider ConfigProvider, sender Sender, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{provider: provider, sender: sender, model: model}
}

// Translate sends text to the endpoint and returns the first choice's content.
// Configuration is read on every call.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	lang, err := lookupString(c.provider, KeyTranslateTo)
	if err != nil {
		return "", err
	}
	credential, err := lookupString(c.provider, KeyAPIKey)
	if err != nil {
		return "", err
	}

	req := BuildRequest(c.model, lang, text)

	logger.Debug("sending translation request",
		logger.String("model", c.model),
		logger.String("language", lang),
		logger.Int("textLen", len(text)))

	resp, err := c.sender.Send(ctx, credential, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		logger.Warn("endpoint returned no choices, using placeholder", logger.String("model", c.model))
		return NoTranslationPlaceholder, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// LoadConfig reads TRANSLATE_TO then OPENAI_API_KEY from provider.
func LoadConfig(provider ConfigProvider) (*Config, error) {
	lang, err := lookupString(provider, KeyTranslateTo)
	if err != nil {
		return nil, err
	}
	credential, err := lookupString(provider, KeyAPIKey)
	if err != nil {
		return nil, err
	}
	return &Config{TargetLanguage: lang, APICredential: credential}, nil
}

func lookupString(provider ConfigProvider, key string) (string, error) {
	v, ok := provider.Get(key)
	if !ok {
		return "", types.NewAppError(types.ErrConfigKeyMissing, key+" not found in store", nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", types.NewAppError(types.ErrConfigValueInvalid, key+" is not a valid string", nil)
	}
	return s, nil
}

// BuildRequest assembles the two-message request for text.
func BuildRequest(model, targetLanguage, text string) *ChatRequest {
	return &ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, LanguageName(targetLanguage), text)},
		},
	}
}

// LanguageName expands a BCP 47 tag such as "fr" or "pt-BR" into its English
// name. Only values written in tag form, with an all-lowercase primary subtag,
// are expanded; anything else is returned unchanged, so names like "French"
// or "Ga" pass straight through.
func LanguageName(value string) string {
	trimmed := strings.TrimSpace(value)
	if !isTagForm(trimmed) {
		return value
	}

	tag, err := language.Parse(trimmed)
	if err != nil {
		return value
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return value
	}
	return name
}

func isTagForm(s string) bool {
	subtags := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	if len(subtags) == 0 || strings.ContainsAny(s, " \t") {
		return false
	}
	primary := subtags[0]
	if len(primary) < 2 || len(primary) > 3 {
		return false
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
