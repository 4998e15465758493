// Package engine owns the check lifecycle: it advances a queued check through
// the type-specific verification pipeline to a settled outcome, records the
// outcome in the result cache, and persists both atomically.
//
// A pipeline run that cannot reach a conclusive answer leaves the record
// queued so the queue consumer can retry it; the engine never durably writes
// the error status itself.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"eligibility/internal/audit"
	"eligibility/internal/check/models"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/conflict"
	"eligibility/internal/domain"
	"eligibility/internal/engine/metrics"
	"eligibility/internal/platform/config"
	"eligibility/internal/resultcache"
	"eligibility/internal/sources/events"
	"eligibility/internal/sources/legacy"
	"eligibility/internal/sources/modern"
	"eligibility/internal/sources/snapshot"
	"eligibility/pkg/platform/sentinel"
	"eligibility/pkg/platform/tx"
	"eligibility/pkg/requestcontext"
)

// settleRetries bounds how often a settle is retried after losing a write
// race before the run is treated as transient failure.
const settleRetries = 3

// Engine runs the verification pipelines. All collaborators are injected;
// there is no lazy global state.
type Engine struct {
	checks    checkstore.Store
	cache     *resultcache.Cache
	snapshots snapshot.Store
	legacy    legacy.Client
	modern    modern.Client
	events    events.Store
	conflicts conflict.Store
	auditor   audit.Publisher
	runner    tx.Runner
	cfg       config.EngineConfig
	gateway   config.GatewayConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Deps struct {
	Checks    checkstore.Store
	Cache     *resultcache.Cache
	Snapshots snapshot.Store
	Legacy    legacy.Client
	Modern    modern.Client
	Events    events.Store
	Conflicts conflict.Store
	Auditor   audit.Publisher
	Runner    tx.Runner
	Engine    config.EngineConfig
	Gateway   config.GatewayConfig
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func New(deps Deps) *Engine {
	return &Engine{
		checks:    deps.Checks,
		cache:     deps.Cache,
		snapshots: deps.Snapshots,
		legacy:    deps.Legacy,
		modern:    deps.Modern,
		events:    deps.Events,
		conflicts: deps.Conflicts,
		auditor:   deps.Auditor,
		runner:    deps.Runner,
		cfg:       deps.Engine,
		gateway:   deps.Gateway,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Process runs the pipeline for one check and returns its persisted status
// afterwards. StatusQueued means the run hit a transient failure and the
// record was left untouched for retry. A non-nil error reports an
// infrastructure problem (store unavailable); business outcomes never arrive
// as errors.
func (e *Engine) Process(ctx context.Context, checkID string) (domain.CheckStatus, error) {
	ctx, span := otel.Tracer("eligibility/engine").Start(ctx, "engine.Process")
	defer span.End()
	span.SetAttributes(attribute.String("check_id", checkID))

	rec, err := e.checks.GetByID(ctx, checkID)
	if err != nil {
		return "", fmt.Errorf("load check %s: %w", checkID, err)
	}
	// A replayed message for an already settled check is a no-op.
	if rec.Status != domain.StatusQueued {
		return rec.Status, nil
	}

	payload, err := models.DecodePayload(rec.Type, rec.Payload)
	if err != nil {
		// Undecodable payloads can never settle; force the terminal error
		// status rather than retrying forever.
		e.logger.Error("check payload undecodable", zap.String("check_id", checkID), zap.Error(err))
		if settleErr := e.settle(ctx, rec, domain.StatusError, ""); settleErr != nil {
			return domain.StatusQueued, settleErr
		}
		return domain.StatusError, nil
	}

	start := time.Now()
	outcome, source, pipelineErr := e.runPipeline(ctx, rec, payload)
	e.metrics.ObservePipeline(string(rec.Type), time.Since(start))

	if pipelineErr != nil || outcome == domain.StatusError {
		// Transient: roll back to queued by writing nothing.
		e.logger.Warn("pipeline did not reach a conclusive outcome",
			zap.String("check_id", checkID),
			zap.String("benefit_type", string(rec.Type)),
			zap.Error(pipelineErr))
		return domain.StatusQueued, nil
	}

	if err := e.settle(ctx, rec, outcome, source); err != nil {
		return domain.StatusQueued, err
	}

	e.metrics.RecordOutcome(string(outcome), string(source))
	e.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionCheckSettled,
		CheckID: rec.ID,
		GroupID: rec.GroupID,
		Outcome: string(outcome),
		Source:  string(source),
	})
	return outcome, nil
}

func (e *Engine) runPipeline(ctx context.Context, rec *models.Record, payload models.Payload) (domain.CheckStatus, domain.Source, error) {
	switch p := payload.(type) {
	case models.StandardPayload:
		return e.runStandard(ctx, rec, p)
	case models.WorkingFamiliesPayload:
		return e.runWorkingFamilies(ctx, rec, p)
	default:
		return domain.StatusError, "", fmt.Errorf("no pipeline for payload %T", payload)
	}
}

// settle writes the outcome and, when cacheable, the cache entry inside one
// transaction. A lost write race is retried against a fresh read; if another
// writer settled the record first the newer status wins.
func (e *Engine) settle(ctx context.Context, rec *models.Record, outcome domain.CheckStatus, source domain.Source) error {
	fingerprint, err := fingerprintFor(rec.Type, rec.Payload)
	if err != nil {
		fingerprint = "" // undecodable payload settles without a cache entry
	}

	for attempt := 0; attempt < settleRetries; attempt++ {
		err := e.runner.RunInTx(ctx, func(ctx context.Context) error {
			var cacheID *int64
			if fingerprint != "" && outcome.IsCacheable() {
				id, err := e.cache.Record(ctx, fingerprint, outcome, source, rec.ID)
				if err != nil {
					return err
				}
				cacheID = &id
			}
			return e.checks.UpdateStatus(ctx, rec.ID, outcome, cacheID, rec.Version)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("settle check %s: %w", rec.ID, err)
		}

		fresh, readErr := e.checks.GetByID(ctx, rec.ID)
		if readErr != nil {
			return fmt.Errorf("reload check %s after write race: %w", rec.ID, readErr)
		}
		if fresh.Status != domain.StatusQueued {
			// Someone else settled it; keep their answer.
			return nil
		}
		rec = fresh
	}
	return fmt.Errorf("settle check %s: %w", rec.ID, sentinel.ErrConflict)
}

// fingerprintFor derives the dedup key from the original request fields.
func fingerprintFor(t domain.BenefitType, raw []byte) (string, error) {
	payload, err := models.DecodePayload(t, raw)
	if err != nil {
		return "", err
	}
	switch p := payload.(type) {
	case models.StandardPayload:
		return resultcache.Fingerprint(t, p.LastName, p.DateOfBirth, p.IdentifyingNumber()), nil
	case models.WorkingFamiliesPayload:
		return resultcache.Fingerprint(t, p.LastName, p.DateOfBirth, p.EligibilityCode+p.NationalInsuranceNumber), nil
	default:
		return "", fmt.Errorf("no fingerprint for payload %T", payload)
	}
}

// FingerprintForSubmission is the submission-side twin of the engine's settle
// fingerprint, exposed so the check service hits the same cache keys.
func FingerprintForSubmission(t domain.BenefitType, raw []byte) (string, error) {
	return fingerprintFor(t, raw)
}

func (e *Engine) correlationID(ctx context.Context) string {
	if id := requestcontext.RequestID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
