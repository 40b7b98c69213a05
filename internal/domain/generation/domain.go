package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/infra/events"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	applog "github.com/elevare/server/internal/shared/logger"
	"github.com/elevare/server/internal/utils/requestctx"
)

// UsageRecorder charges credits and appends a ledger entry atomically.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, userID string, feature model.FeatureType, credits int64, requestID string) (*model.UsageLedgerEntry, int64, error)
}

// CredentialResolver returns the provider API key to use for a user.
type CredentialResolver interface {
	ResolveAPIKey(ctx context.Context, userID string) (string, error)
}

// MetricsRecorder records generation metrics.
type MetricsRecorder interface {
	RecordGeneration(feature, status string, duration time.Duration)
	RecordCreditsCharged(feature string, credits int64)
}

// Config holds generation settings.
type Config struct {
	// Costs per feature; missing or non-positive entries cost 1 credit.
	Costs          map[model.FeatureType]int64
	TextModel      string
	ImageModel     string
	VideoModel     string
	AssetPrefix    string
	AssetURLExpiry time.Duration
}

// Domain runs the credit-gated generation workflow.
type Domain struct {
	state       *billing.StateProvider
	guard       *billing.Guard
	ledger      UsageRecorder
	provider    outbound.GenAIPort
	credentials CredentialResolver
	storage     outbound.AssetStoragePort
	registry    *Registry
	publisher   EventPublisher
	metrics     MetricsRecorder
	validator   *requestValidator
	config      Config
	logger      *zap.Logger
}

// NewGenerationDomain creates a new generation domain. storage, publisher and
// metrics may be nil.
func NewGenerationDomain(
	state *billing.StateProvider,
	guard *billing.Guard,
	ledger UsageRecorder,
	provider outbound.GenAIPort,
	credentials CredentialResolver,
	storage outbound.AssetStoragePort,
	registry *Registry,
	publisher EventPublisher,
	metrics MetricsRecorder,
	cfg Config,
	logger *zap.Logger,
) *Domain {
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg.AssetPrefix == "" {
		cfg.AssetPrefix = "generated/"
	}
	if cfg.AssetURLExpiry <= 0 {
		cfg.AssetURLExpiry = 24 * time.Hour
	}
	return &Domain{
		state:       state,
		guard:       guard,
		ledger:      ledger,
		provider:    provider,
		credentials: credentials,
		storage:     storage,
		registry:    registry,
		publisher:   publisher,
		metrics:     metrics,
		validator:   newRequestValidator(),
		config:      cfg,
		logger:      logger,
	}
}

// Registry returns the per-feature machine registry.
func (d *Domain) Registry() *Registry {
	return d.registry
}

// CostOf returns the credit cost of a feature.
func (d *Domain) CostOf(feature model.FeatureType) int64 {
	if c := d.config.Costs[feature]; c > 0 {
		return c
	}
	return 1
}

// Generate runs one credit-gated generation:
// guard check, provider call, then charge strictly after success.
func (d *Domain) Generate(ctx context.Context, userID string, req *Request) (*Result, error) {
	if err := d.validator.Validate(req); err != nil {
		return nil, err
	}

	feature := req.Feature()
	cost := d.CostOf(feature)
	log := applog.WithRequest(requestctx.WithUserID(ctx, userID), d.logger).
		With(zap.String("feature", feature.String()))

	decision := d.guard.Check(d.state.Snapshot(ctx, userID), billing.GuardOptions{Required: cost})
	if err := decision.Err(); err != nil {
		log.Info("generation blocked by credit guard",
			zap.Int64("required", cost),
			zap.Int64("remaining", decision.Remaining),
		)
		d.recordMetrics(feature, "blocked", 0)
		return nil, err
	}

	machine, release := d.registry.Acquire(userID, feature)
	defer release()
	started := time.Now()

	result, err := machine.Run(ctx, func(runCtx context.Context) (*Result, error) {
		res, err := d.produce(runCtx, userID, req)
		if err != nil {
			return nil, err
		}

		// The provider already succeeded: the charge must not be lost to a
		// cancellation arriving now.
		entry, remaining, err := d.ledger.RecordUsage(context.WithoutCancel(runCtx), userID, feature, cost, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("record usage: %w", err)
		}

		res.Feature = feature
		res.CreditsCharged = entry.CreditsUsed
		res.CreditsRemaining = remaining
		res.LedgerEntryID = entry.ID
		res.CompletedAt = time.Now()
		return res, nil
	})
	if err != nil {
		if err == ErrGenerationInProgress {
			log.Info("generation rejected, another is in flight")
			return nil, err
		}
		code, _ := Classify(err)
		log.Warn("generation failed", zap.String("code", code), zap.Error(err))
		d.recordMetrics(feature, "failure", time.Since(started))
		return nil, err
	}

	log.Info("generation completed",
		zap.Int64("credits_charged", result.CreditsCharged),
		zap.Int64("credits_remaining", result.CreditsRemaining),
		zap.Duration("duration", time.Since(started)),
	)
	d.recordMetrics(feature, "success", time.Since(started))
	if d.metrics != nil {
		d.metrics.RecordCreditsCharged(feature.String(), result.CreditsCharged)
	}

	if _, err := d.state.Refetch(ctx, userID); err != nil {
		log.Warn("subscription refetch after generation failed", zap.Error(err))
	}
	d.publishCompletion(userID, feature, result)
	return result, nil
}

// State returns the machine snapshot of a user's feature.
func (d *Domain) State(userID string, feature model.FeatureType) Snapshot {
	if m, ok := d.registry.Lookup(userID, feature); ok {
		return m.Snapshot()
	}
	return Snapshot{UserID: userID, Feature: feature, State: StateIdle}
}

// Cancel aborts the in-flight generation of a user's feature.
func (d *Domain) Cancel(userID string, feature model.FeatureType) bool {
	if m, ok := d.registry.Lookup(userID, feature); ok {
		return m.Cancel()
	}
	return false
}

// produce calls the provider for the request's feature and decodes the reply.
func (d *Domain) produce(ctx context.Context, userID string, req *Request) (*Result, error) {
	apiKey, err := d.credentials.ResolveAPIKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch in := req.Input.(type) {
	case *EbookInput:
		raw, modelName, err := d.text(ctx, apiKey, ebookPrompt(in), "Crie ebooks que educam e geram confiança.", req.Business, ebookSchema)
		if err != nil {
			return nil, err
		}
		ebook, err := DecodeEbook(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Ebook: ebook, Raw: raw, Model: modelName}, nil

	case *AdInput:
		raw, modelName, err := d.text(ctx, apiKey, adPrompt(in), "Crie anúncios persuasivos e responsáveis.", req.Business, adSchema)
		if err != nil {
			return nil, err
		}
		ad, err := DecodeAdCampaign(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Ad: ad, Raw: raw, Model: modelName}, nil

	case *PostInput:
		raw, modelName, err := d.text(ctx, apiKey, postPrompt(in), "Crie posts que geram engajamento.", req.Business, postSchema)
		if err != nil {
			return nil, err
		}
		post, err := DecodePost(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Post: post, Raw: raw, Model: modelName}, nil

	case *PromptInput:
		raw, modelName, err := d.text(ctx, apiKey, promptPackPrompt(in), "Crie prompts claros e reutilizáveis.", req.Business, promptSchema)
		if err != nil {
			return nil, err
		}
		pack, err := DecodePromptPack(raw)
		if err != nil {
			return nil, err
		}
		return &Result{Prompts: pack, Raw: raw, Model: modelName}, nil

	case *ImageInput:
		resp, err := d.provider.GenerateImage(ctx, &outbound.ImageRequest{
			APIKey:      apiKey,
			Model:       d.config.ImageModel,
			Prompt:      imagePrompt(in, req.Business),
			AspectRatio: orDefault(in.AspectRatio, "1:1"),
		})
		if err != nil {
			return nil, err
		}
		return &Result{Image: &Image{Data: resp.Data, MimeType: resp.MimeType}, Model: resp.Model}, nil

	case *VideoInput:
		return d.video(ctx, apiKey, userID, in)
	}

	return nil, fmt.Errorf("%w: %T", ErrUnknownFeature, req.Input)
}

func (d *Domain) text(
	ctx context.Context,
	apiKey, prompt, task string,
	biz BusinessContext,
	schema *outbound.Schema,
) (string, string, error) {
	resp, err := d.provider.GenerateText(ctx, &outbound.TextRequest{
		APIKey:            apiKey,
		Model:             d.config.TextModel,
		Prompt:            prompt,
		SystemInstruction: systemInstruction(task, biz),
		Schema:            schema,
	})
	if err != nil {
		return "", "", err
	}
	return resp.Text, resp.Model, nil
}

func (d *Domain) video(ctx context.Context, apiKey, userID string, in *VideoInput) (*Result, error) {
	resp, err := d.provider.GenerateVideo(ctx, &outbound.VideoRequest{
		APIKey:      apiKey,
		Model:       d.config.VideoModel,
		Prompt:      in.Prompt,
		AspectRatio: orDefault(in.AspectRatio, "9:16"),
		Resolution:  orDefault(in.Resolution, "720p"),
	})
	if err != nil {
		return nil, err
	}

	video := &Video{MimeType: resp.MimeType, SizeBytes: int64(len(resp.Data))}
	if d.storage == nil {
		video.Data = base64.StdEncoding.EncodeToString(resp.Data)
		return &Result{Video: video, Model: resp.Model}, nil
	}

	key := fmt.Sprintf("%s%s/%s%s", d.config.AssetPrefix, userID, uuid.NewString(), extensionFor(resp.MimeType))
	if err := d.storage.Put(ctx, key, bytes.NewReader(resp.Data), int64(len(resp.Data)), resp.MimeType); err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	url, err := d.storage.PresignGet(ctx, key, d.config.AssetURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign video: %w", err)
	}

	video.URL = url
	video.ExpiresAt = time.Now().Add(d.config.AssetURLExpiry)
	video.StorageKey = key
	return &Result{Video: video, Model: resp.Model}, nil
}

func (d *Domain) publishCompletion(userID string, feature model.FeatureType, result *Result) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(&CompletedEvent{
		BaseEvent:        events.NewBaseEvent(EventGenerationCompleted, userID),
		Feature:          feature,
		CreditsCharged:   result.CreditsCharged,
		CreditsRemaining: result.CreditsRemaining,
	})
	if result.CreditsCharged > 0 && d.guard.IsLow(result.CreditsRemaining) {
		d.publisher.Publish(&CreditsLowEvent{
			BaseEvent:        events.NewBaseEvent(EventCreditsLow, userID),
			CreditsRemaining: result.CreditsRemaining,
		})
	}
}

func (d *Domain) recordMetrics(feature model.FeatureType, status string, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordGeneration(feature.String(), status, duration)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	}
	return ""
}
