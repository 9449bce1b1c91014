package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when a config names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", openAICompatibleFactory("openai", ""))
}

// openAIProvider speaks the OpenAI chat-completions protocol. It also
// serves OpenAI-compatible hosts, which differ only in base URL.
type openAIProvider struct {
	BaseProvider
	name            string
	client          *openai.Client
	estimator       TokenEstimator
	errorClassifier *ErrorClassifier
}

// openAICompatibleFactory returns a ProviderFactory for an OpenAI-style
// host.
func openAICompatibleFactory(name, defaultBaseURL string) ProviderFactory {
	return func(config ClientConfig) (CoreLLM, error) {
		p, err := newOpenAICompatibleProvider(name, defaultBaseURL, config)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// newOpenAICompatibleProvider builds a provider for name. defaultBaseURL is
// used when config carries no BaseURL; empty means the OpenAI endpoint.
func newOpenAICompatibleProvider(name, defaultBaseURL string, config ClientConfig) (*openAIProvider, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if baseURL != "" {
		validated, err := ValidateBaseURL(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validated
	}

	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		name:            name,
		client:          openai.NewClientWithConfig(clientConfig),
		estimator:       NewCharacterBasedTokenEstimator(DefaultCharsPerToken),
		errorClassifier: &ErrorClassifier{Provider: name},
	}, nil
}

// DoRequest issues one chat completion.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, NewProviderError(p.name, ErrorTypeUnknown, 0, "", ErrNoResponseChoice)
	}

	content := resp.Choices[0].Message.Content
	return content,
		tokenCount(resp.Usage.PromptTokens, prompt, p.estimator),
		tokenCount(resp.Usage.CompletionTokens, content, p.estimator),
		nil
}

func (p *openAIProvider) buildRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     options.Model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		req.Temperature = float32(ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature))
	}
	if options.TopP != nil {
		req.TopP = float32(ClampFloat64(*options.TopP, MinTopP, MaxTopP))
	}
	return req
}

func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError(p.name, ErrorTypeNetwork, 0, "request failed", err)
}

func tokenCount(actual int, text string, estimator TokenEstimator) int {
	if actual > 0 {
		return actual
	}
	return estimator.EstimateTokens(text)
}
