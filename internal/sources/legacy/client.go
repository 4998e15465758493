// Package legacy calls the synchronous legacy verification gateway. The
// gateway answers with a status/error/qualifier triad (plus validity dates
// for working families); interpreting the triad is the engine's job.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"eligibility/internal/domain"
	"eligibility/pkg/platform/sentinel"
	"eligibility/pkg/requestcontext"
)

// Request carries one check to the gateway.
type Request struct {
	LastName          string             `json:"lastName"`
	DateOfBirth       string             `json:"dateOfBirth"`
	IdentifyingNumber string             `json:"identifyingNumber"`
	BenefitType       domain.BenefitType `json:"benefitType"`
	LocalAuthority    int                `json:"localAuthority"`
	CorrelationID     string             `json:"correlationId"`
}

// Response is the gateway's triad plus the working families validity dates.
// All fields are the gateway's own textual formats.
type Response struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error"`
	Qualifier string `json:"qualifier"`

	ValidityStart  string `json:"validityStartDate,omitempty"`
	ValidityEnd    string `json:"validityEndDate,omitempty"`
	GracePeriodEnd string `json:"gracePeriodEndDate,omitempty"`
}

// Client is the gateway port the engine depends on. A nil response never
// accompanies a nil error.
type Client interface {
	Check(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is the production gateway client.
type HTTPClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPClient(url string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *HTTPClient) Check(ctx context.Context, req Request) (*Response, error) {
	ctx, span := otel.Tracer("eligibility/sources/legacy").Start(ctx, "legacy.Check")
	defer span.End()
	span.SetAttributes(attribute.String("benefit_type", string(req.BenefitType)))

	if req.CorrelationID == "" {
		req.CorrelationID = requestcontext.RequestID(ctx)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call legacy gateway: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	// Non-2xx is "no response": the engine maps it to a transient error.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("legacy gateway returned non-2xx",
			zap.Int("status_code", resp.StatusCode),
			zap.String("correlation_id", req.CorrelationID))
		return nil, fmt.Errorf("legacy gateway status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", sentinel.ErrUnavailable)
	}
	return &out, nil
}
