package genai

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"spritestudio/internal/domain"
)

// SupportedVideoAspectRatios lists the ratios Veo accepts.
var SupportedVideoAspectRatios = []string{"16:9", "9:16"}

// SubmitVideo starts a long-running image-to-video operation and returns its
// initial job state.
func (c *Client) SubmitVideo(ctx context.Context, start *domain.InputImage, prompt, aspectRatio string) (*domain.GenerationJob, error) {
	const op = "submit video"
	prompt = strings.TrimSpace(prompt)
	if start.Empty() || prompt == "" {
		return nil, domain.InvalidInput(op, "Please upload an image and provide a prompt for the video.")
	}
	aspectRatio = strings.TrimSpace(aspectRatio)
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	if !validAspect(aspectRatio, SupportedVideoAspectRatios) {
		return nil, domain.InvalidInput(op, "Aspect ratio must be 16:9 or 9:16.")
	}
	mime := strings.TrimSpace(start.MIMEType)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(start.Data)
	}
	payload := veoPredictRequest{
		Instances: []veoInstance{{
			Prompt: prompt,
			Image: &veoImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(start.Data),
				MimeType:           mime,
			},
		}},
		Parameters: veoParameters{AspectRatio: aspectRatio},
	}
	var operation veoOperation
	if err := c.invoke(ctx, op, c.modelPath(c.videoModel, "predictLongRunning"), payload, &operation, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(operation.Name) == "" {
		return nil, domain.NewError(domain.KindService, op, "the service returned no operation handle", nil)
	}
	c.logger.Info().Str("model", c.videoModel).Str("handle", operation.Name).Msg("genai: video operation submitted")
	return operation.toJob(), nil
}

// CheckVideoStatus refreshes job from the service. Errors are returned
// unchanged for the poller to act on; a NOT_FOUND answer is classified as a
// credential failure.
func (c *Client) CheckVideoStatus(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error) {
	const op = "check video status"
	if job == nil || strings.TrimSpace(job.Handle) == "" {
		return nil, domain.InvalidInput(op, "job handle is required")
	}
	var operation veoOperation
	if err := c.invoke(ctx, op, job.Handle, nil, &operation, true); err != nil {
		return nil, err
	}
	if operation.Name == "" {
		operation.Name = job.Handle
	}
	return operation.toJob(), nil
}

func (o veoOperation) toJob() *domain.GenerationJob {
	job := &domain.GenerationJob{Handle: o.Name, Done: o.Done}
	if o.Error != nil && (o.Error.Message != "" || o.Error.Code != 0) {
		job.Err = &domain.OperationError{Code: o.Error.Code, Message: o.Error.Message, Status: o.Error.Status}
	}
	if !o.Done || o.Response == nil {
		return job
	}
	var refs []veoVideoRef
	if o.Response.GenerateVideoResponse != nil {
		refs = o.Response.GenerateVideoResponse.GeneratedSamples
	}
	if len(refs) == 0 {
		refs = o.Response.GeneratedVideos
	}
	for _, ref := range refs {
		if uri := strings.TrimSpace(ref.Video.URI); uri != "" {
			job.ResultLocator = uri
			break
		}
	}
	return job
}
