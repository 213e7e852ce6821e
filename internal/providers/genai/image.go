package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"spritestudio/internal/domain"
)

// SupportedImageAspectRatios lists the ratios Imagen accepts.
var SupportedImageAspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// GenerateImage renders one image from prompt through Imagen.
func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*domain.AssetResult, error) {
	const op = "generate image"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.InvalidInput(op, "Please enter a prompt to generate an image.")
	}
	aspectRatio = strings.TrimSpace(aspectRatio)
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	if !validAspect(aspectRatio, SupportedImageAspectRatios) {
		return nil, domain.InvalidInput(op, fmt.Sprintf("Unsupported aspect ratio %q.", aspectRatio))
	}

	payload := imagenPredictRequest{
		Instances: []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{
			SampleCount:    1,
			AspectRatio:    aspectRatio,
			OutputMimeType: "image/jpeg",
		},
	}
	var response imagenPredictResponse
	if err := c.invoke(ctx, op, c.modelPath(c.imageModel, "predict"), payload, &response, false); err != nil {
		return nil, err
	}
	for _, prediction := range response.Predictions {
		if prediction.BytesBase64Encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(prediction.BytesBase64Encoded)
		if err != nil {
			return nil, domain.NewError(domain.KindService, op, "decode image payload", err)
		}
		mime := firstNonEmpty(prediction.MimeType, http.DetectContentType(data))
		c.logger.Debug().Str("model", c.imageModel).Int("bytes", len(data)).Msg("genai: generated image")
		return &domain.AssetResult{Kind: domain.AssetKindImage, MIMEType: mime, Data: data}, nil
	}
	return nil, domain.NewError(domain.KindService, op, "the service returned no image", nil)
}

// EditImage applies a text instruction to an uploaded image.
func (c *Client) EditImage(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error) {
	const op = "edit image"
	prompt = strings.TrimSpace(prompt)
	if img.Empty() || prompt == "" {
		return nil, domain.InvalidInput(op, "Please upload an image and provide an editing prompt.")
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{inlinePart(img), {Text: prompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}
	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, op, c.modelPath(c.editModel, "generateContent"), payload, &response, false); err != nil {
		return nil, err
	}
	assets, err := c.collectImages(op, response, domain.AssetKindEditedImage, 1)
	if err != nil {
		return nil, err
	}
	return &assets[0], nil
}

// AnalyzeImage answers prompt about the uploaded image.
func (c *Client) AnalyzeImage(ctx context.Context, img *domain.InputImage, prompt string) (string, error) {
	const op = "analyze image"
	prompt = strings.TrimSpace(prompt)
	if img.Empty() || prompt == "" {
		return "", domain.InvalidInput(op, "Please upload an image and provide a question or prompt.")
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{inlinePart(img), {Text: prompt}},
		}},
	}
	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, op, c.modelPath(c.textModel, "generateContent"), payload, &response, false); err != nil {
		return "", err
	}
	text := extractText(response)
	if text == "" {
		return "", emptyResponseError(op, response)
	}
	return text, nil
}

// GenerateSpriteFrames asks the image model for frameCount animation frames of
// the referenced character in a single request.
func (c *Client) GenerateSpriteFrames(ctx context.Context, reference *domain.InputImage, animationPrompt string, frameCount int) ([]domain.AssetResult, error) {
	const op = "generate sprite frames"
	animationPrompt = strings.TrimSpace(animationPrompt)
	if reference.Empty() || animationPrompt == "" {
		return nil, domain.InvalidInput(op, "Please provide a reference image and an animation description.")
	}
	if frameCount <= 0 {
		return nil, domain.InvalidInput(op, "Frame count must be positive.")
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{inlinePart(reference), {Text: buildSpritePrompt(animationPrompt, frameCount)}},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}
	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, op, c.modelPath(c.editModel, "generateContent"), payload, &response, false); err != nil {
		return nil, err
	}
	frames, err := c.collectImages(op, response, domain.AssetKindSpriteFrame, frameCount)
	if err != nil {
		return nil, err
	}
	for i := range frames {
		frames[i].Filename = fmt.Sprintf("sprite-%02d%s", i+1, extensionFor(frames[i].MIMEType))
	}
	c.logger.Debug().Str("model", c.editModel).Int("frames", len(frames)).Msg("genai: generated sprite frames")
	return frames, nil
}

func buildSpritePrompt(animation string, frameCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Using the provided character as the exact reference, create a %d-frame sprite animation: %s.", frameCount, animation)
	b.WriteString(" Return each frame as a separate image, in animation order.")
	b.WriteString(" Every frame must have identical dimensions, the same character design and scale, a side view and a solid neutral background.")
	return b.String()
}

func (c *Client) collectImages(op string, response geminiGenerateContentResponse, kind domain.AssetKind, limit int) ([]domain.AssetResult, error) {
	var assets []domain.AssetResult
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, domain.NewError(domain.KindService, op, "decode inline data", err)
			}
			mime := firstNonEmpty(part.InlineData.MimeType, http.DetectContentType(data))
			assets = append(assets, domain.AssetResult{Kind: kind, MIMEType: mime, Data: data})
			if len(assets) >= limit {
				return assets, nil
			}
		}
	}
	if len(assets) == 0 {
		return nil, emptyResponseError(op, response)
	}
	return assets, nil
}

func emptyResponseError(op string, response geminiGenerateContentResponse) error {
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return domain.NewError(domain.KindService, op, "request blocked: "+response.PromptFeedback.BlockReason, nil)
	}
	for _, candidate := range response.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			return domain.NewError(domain.KindService, op, "generation stopped: "+candidate.FinishReason, nil)
		}
	}
	return domain.NewError(domain.KindService, op, "the service returned an empty response", nil)
}

func extractText(response geminiGenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Thought || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func inlinePart(img *domain.InputImage) geminiPart {
	mime := strings.TrimSpace(img.MIMEType)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(img.Data)
	}
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}}
}

func validAspect(aspect string, allowed []string) bool {
	for _, a := range allowed {
		if a == aspect {
			return true
		}
	}
	return false
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	default:
		return ".png"
	}
}
