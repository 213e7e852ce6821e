package genai

import (
	"context"
	"strings"

	"spritestudio/internal/domain"
)

const thinkingBudget = 32768

const chatSystemInstruction = "You are a helpful assistant for game developers. Answer clearly and concisely."

// SendChat sends message with the prior conversation and returns the model
// reply. UseSearch enables Google Search grounding; UseThinking routes the
// request to the thinking model with the maximum thinking budget. The flags
// are forwarded as given.
func (c *Client) SendChat(ctx context.Context, history []domain.ChatMessage, message string, opts domain.ChatOptions) (*domain.ChatMessage, error) {
	const op = "send chat message"
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.InvalidInput(op, "message is required")
	}

	contents := historyContents(history)
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: message}}})

	payload := geminiGenerateContentRequest{
		Contents:          contents,
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: chatSystemInstruction}}},
	}
	model := c.textModel
	if opts.UseSearch {
		payload.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}
	if opts.UseThinking {
		model = c.thinkingModel
		payload.GenerationConfig = &geminiGenerationConfig{
			ThinkingConfig: &geminiThinkingConfig{ThinkingBudget: thinkingBudget},
		}
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, op, c.modelPath(model, "generateContent"), payload, &response, false); err != nil {
		return nil, err
	}
	text := extractText(response)
	if text == "" {
		return nil, emptyResponseError(op, response)
	}
	reply := &domain.ChatMessage{Role: domain.ChatRoleModel, Text: text, Sources: groundingSources(response)}
	c.logger.Debug().
		Str("model", model).
		Bool("search", opts.UseSearch).
		Bool("thinking", opts.UseThinking).
		Int("sources", len(reply.Sources)).
		Msg("genai: chat reply received")
	return reply, nil
}

// historyContents converts the conversation to API contents. The API expects
// the conversation to open with a user turn, so leading model messages such
// as the greeting are skipped.
func historyContents(history []domain.ChatMessage) []geminiContent {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, msg := range history {
		if len(contents) == 0 && msg.Role != domain.ChatRoleUser {
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := "user"
		if msg.Role == domain.ChatRoleModel {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: text}}})
	}
	return contents
}

func groundingSources(response geminiGenerateContentResponse) []domain.GroundingSource {
	var sources []domain.GroundingSource
	if len(response.Candidates) == 0 || response.Candidates[0].GroundingMetadata == nil {
		return sources
	}
	for _, chunk := range response.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, domain.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}
