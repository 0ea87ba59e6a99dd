package chatloop

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompleter implements Completer against the OpenAI chat completions
// API using its streaming function-calling protocol: field names role,
// content, function_call{name, arguments}, and name for function results.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates an OpenAI-backed completer. An empty model
// selects GPT-4o mini.
func NewOpenAICompleter(apiKey, model string) *OpenAICompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = httpClient
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// NewOpenAICompleterWithClient wraps a preconfigured go-openai client, e.g.
// for Azure or a compatible self-hosted endpoint.
func NewOpenAICompleterWithClient(client *openai.Client, model string) *OpenAICompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAICompleter{client: client, model: model}
}

// Stream sends the message history and function definitions and forwards
// response fragments to yield in arrival order. Transport errors are returned
// as-is; the Conversation wraps them as StreamError.
func (p *OpenAICompleter) Stream(ctx context.Context, messages []Message, functions []Definition, yield func(Delta) error) error {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: apiMessages(messages),
	}
	if len(functions) > 0 {
		req.Functions = apiFunctions(functions)
		req.FunctionCall = "auto"
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, choice := range resp.Choices {
			d := Delta{Content: choice.Delta.Content}
			if fc := choice.Delta.FunctionCall; fc != nil {
				d.FunctionName = fc.Name
				d.Arguments = fc.Arguments
			}
			if err := yield(d); err != nil {
				return err
			}
		}
	}
}

// apiMessages maps the conversation log onto the wire shape the API expects.
func apiMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleFunction:
			role = openai.ChatMessageRoleFunction
		}
		m := openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
			Name:    msg.Name,
		}
		if msg.FunctionCall != nil {
			m.FunctionCall = &openai.FunctionCall{
				Name:      msg.FunctionCall.Name,
				Arguments: msg.FunctionCall.Arguments,
			}
		}
		// The API rejects empty content on function-result messages.
		if role == openai.ChatMessageRoleFunction && m.Content == "" {
			m.Content = "{}"
		}
		out[i] = m
	}
	return out
}

func apiFunctions(functions []Definition) []openai.FunctionDefinition {
	out := make([]openai.FunctionDefinition, len(functions))
	for i, fn := range functions {
		out[i] = openai.FunctionDefinition{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		}
	}
	return out
}

var _ Completer = (*OpenAICompleter)(nil)
