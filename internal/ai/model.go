package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/open-sun/software/internal/apperr"
)

// Chat roles stored in conversation memory.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model is the hosted language and vision model.
type Model interface {
	// Complete answers the last user turn of msgs under a system prompt.
	Complete(ctx context.Context, system string, msgs []Message) (string, error)
	// Describe answers prompt about the image at imageURL.
	Describe(ctx context.Context, imageURL, prompt string) (string, error)
	ChatModel() string
	VisionModel() string
}

// OpenAIModel talks to any OpenAI-compatible endpoint; in production
// that is the Zhipu GLM API.
type OpenAIModel struct {
	client      openai.Client
	chatModel   string
	visionModel string
}

func NewOpenAIModel(baseURL, apiKey, chatModel, visionModel string) *OpenAIModel {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &OpenAIModel{client: client, chatModel: chatModel, visionModel: visionModel}
}

func (m *OpenAIModel) ChatModel() string   { return m.chatModel }
func (m *OpenAIModel) VisionModel() string { return m.visionModel }

func (m *OpenAIModel) Complete(ctx context.Context, system string, msgs []Message) (string, error) {
	params := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}
	for _, msg := range msgs {
		if msg.Role == RoleAssistant {
			params = append(params, openai.AssistantMessage(msg.Content))
		} else {
			params = append(params, openai.UserMessage(msg.Content))
		}
	}

	chat, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    params,
		Model:       openai.ChatModel(m.chatModel),
		Temperature: openai.Float(0.5),
	})
	return reply(chat, err)
}

func (m *OpenAIModel) Describe(ctx context.Context, imageURL, prompt string) (string, error) {
	content := []openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageURL}),
		openai.TextContentPart(prompt),
	}
	chat, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(content)},
		Model:    openai.ChatModel(m.visionModel),
	})
	return reply(chat, err)
}

func reply(chat *openai.ChatCompletion, err error) (string, error) {
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", apperr.Wrap(apperr.Upstream, fmt.Sprintf("model API returned %d", apiErr.StatusCode), err)
		}
		return "", apperr.Wrap(apperr.Upstream, "model API unavailable", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return "", apperr.New(apperr.Upstream, "model returned an empty response")
	}
	return chat.Choices[0].Message.Content, nil
}
