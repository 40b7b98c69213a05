package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/elevare/server/internal/port/outbound"
	"go.uber.org/zap"
)

var errOperationPending = errors.New("video operation still running")

type videoInstance struct {
	Prompt string `json:"prompt"`
}

type videoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

type predictLongRunningRequest struct {
	Instances  []videoInstance  `json:"instances"`
	Parameters *videoParameters `json:"parameters,omitempty"`
}

type operation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// GenerateVideo starts a long-running video operation, polls it with
// exponential backoff and downloads the first generated sample.
func (a *Adapter) GenerateVideo(ctx context.Context, req *outbound.VideoRequest) (*outbound.VideoResponse, error) {
	if err := requireKey(req.APIKey); err != nil {
		return nil, err
	}

	model := orDefault(req.Model, a.config.VideoModel)
	body := predictLongRunningRequest{
		Instances: []videoInstance{{Prompt: req.Prompt}},
	}
	if req.AspectRatio != "" || req.Resolution != "" {
		body.Parameters = &videoParameters{AspectRatio: req.AspectRatio, Resolution: req.Resolution}
	}

	var started operation
	if err := a.postJSON(ctx, "start video", a.modelURL(model, "predictLongRunning"), req.APIKey, body, &started); err != nil {
		return nil, err
	}
	if started.Name == "" {
		return nil, &outbound.ProviderResponseError{Op: "start video", Reason: "operation has no name"}
	}

	done, attempts, err := a.pollOperation(ctx, req.APIKey, started.Name)
	a.recorder.RecordPollAttempts(providerName, attempts)
	if err != nil {
		return nil, err
	}

	samples := done.Response
	if samples == nil || len(samples.GenerateVideoResponse.GeneratedSamples) == 0 ||
		samples.GenerateVideoResponse.GeneratedSamples[0].Video.URI == "" {
		return nil, &outbound.ProviderResponseError{Op: "poll video", Reason: "operation finished without a video"}
	}
	uri := samples.GenerateVideoResponse.GeneratedSamples[0].Video.URI

	r, err := a.do(ctx, "download video", http.MethodGet, uri, req.APIKey, nil, a.config.MaxVideoBytes)
	if err != nil {
		return nil, err
	}
	if len(r.body) == 0 {
		return nil, &outbound.ProviderResponseError{Op: "download video", StatusCode: r.status, Reason: "empty video"}
	}

	return &outbound.VideoResponse{
		Data:          r.body,
		MimeType:      orDefault(r.contentType, "video/mp4"),
		SourceURI:     uri,
		Model:         model,
		PollAttempts:  attempts,
		OperationName: started.Name,
	}, nil
}

// pollOperation polls until the operation is done. Pending operations and
// transient failures are retried; everything else stops polling at once.
// Running out of attempts or time yields a ProviderResponseError wrapping
// outbound.ErrPollTimeout.
func (a *Adapter) pollOperation(ctx context.Context, apiKey, name string) (*operation, int, error) {
	const op = "poll video"

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(a.config.PollInitialInterval),
				backoff.WithMultiplier(a.config.PollMultiplier),
				backoff.WithMaxInterval(a.config.PollMaxInterval),
				backoff.WithMaxElapsedTime(a.config.PollTimeout),
				backoff.WithRandomizationFactor(0),
			),
			uint64(a.config.PollMaxAttempts-1),
		),
		ctx,
	)

	url := fmt.Sprintf("%s/v1beta/%s", a.config.BaseURL, name)
	attempts := 0
	result, err := backoff.RetryWithData(func() (*operation, error) {
		attempts++
		var o operation
		if err := a.getJSON(ctx, op, url, apiKey, &o); err != nil {
			if isTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if o.Error != nil {
			return nil, backoff.Permanent(&outbound.ProviderResponseError{
				Op:         op,
				StatusCode: o.Error.Code,
				Reason:     o.Error.Message,
			})
		}
		if !o.Done {
			a.logger.Debug("video operation pending",
				zap.String("operation", name),
				zap.Int("attempt", attempts),
			)
			return nil, errOperationPending
		}
		return &o, nil
	}, policy)

	switch {
	case err == nil:
		return result, attempts, nil
	case ctx.Err() != nil:
		return nil, attempts, fmt.Errorf("%s: %w", op, ctx.Err())
	case errors.Is(err, errOperationPending) || isTransient(err):
		a.logger.Warn("video operation polling exhausted",
			zap.String("operation", name),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, attempts, &outbound.ProviderResponseError{
			Op:     op,
			Reason: fmt.Sprintf("not finished after %d attempts", attempts),
			Err:    outbound.ErrPollTimeout,
		}
	default:
		return nil, attempts, err
	}
}
