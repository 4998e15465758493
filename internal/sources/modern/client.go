// Package modern calls the two-step benefits claims API: match a citizen,
// then fetch their claims over a trailing window. Claim evaluation (which
// categories qualify) belongs to the engine.
package modern

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

	"eligibility/pkg/platform/sentinel"
)

// BenefitCategory names the claim categories the engine evaluates.
type BenefitCategory string

const (
	CategoryEmploymentSupport BenefitCategory = "employment_support_allowance_income_based"
	CategoryIncomeSupport     BenefitCategory = "income_support"
	CategoryJobseekers        BenefitCategory = "jobseekers_allowance_income_based"
	CategoryPensionCredit     BenefitCategory = "pension_credit"
	CategoryUniversalCredit   BenefitCategory = "universal_credit"
)

// Claim is one benefit claim returned by the claims endpoint.
type Claim struct {
	Category            BenefitCategory `json:"benefitType"`
	EntitlementDecision string          `json:"entitlementDecision"`
	AwardStatus         string          `json:"awardStatus"`
	InPayment           bool            `json:"inPayment"`
	TakeHomePay         float64         `json:"takeHomePay"`
}

// Entitlement decisions and award statuses the engine compares against.
const (
	DecisionEntitled = "entitled"
	AwardLive        = "live"
)

// MatchRequest identifies a citizen: surname, the last four characters of the
// NI number, and date of birth.
type MatchRequest struct {
	LastName     string `json:"lastName"`
	NinoFragment string `json:"ninoFragment"`
	DateOfBirth  string `json:"dateOfBirth"`
}

// Client is the two-step port the engine depends on.
type Client interface {
	// MatchCitizen returns an identity token, or sentinel.ErrNotFound when the
	// API answers with a definitive non-match.
	MatchCitizen(ctx context.Context, req MatchRequest, correlationID string) (string, error)

	// Claims returns the citizen's claims from `from` onward, or
	// sentinel.ErrNotFound when the API answers 404 (no claims).
	Claims(ctx context.Context, identityToken string, from time.Time, correlationID string) ([]Claim, error)
}

// HTTPClient is the production claims API client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type matchResponse struct {
	Matched       bool   `json:"matched"`
	IdentityToken string `json:"identityToken"`
}

func (c *HTTPClient) MatchCitizen(ctx context.Context, req MatchRequest, correlationID string) (string, error) {
	ctx, span := otel.Tracer("eligibility/sources/modern").Start(ctx, "modern.MatchCitizen")
	defer span.End()
	span.SetAttributes(attribute.String("correlation_id", correlationID))

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal match request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/citizens/match", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build match request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Correlation-Id", correlationID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call citizen match: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Definitive non-match, not a failure.
		return "", sentinel.ErrNotFound
	default:
		c.logger.Warn("citizen match returned unexpected status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("correlation_id", correlationID))
		return "", fmt.Errorf("citizen match status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var out matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode match response: %w", sentinel.ErrUnavailable)
	}
	if !out.Matched || out.IdentityToken == "" {
		return "", sentinel.ErrNotFound
	}
	return out.IdentityToken, nil
}

type claimsResponse struct {
	Claims []Claim `json:"claims"`
}

func (c *HTTPClient) Claims(ctx context.Context, identityToken string, from time.Time, correlationID string) ([]Claim, error) {
	ctx, span := otel.Tracer("eligibility/sources/modern").Start(ctx, "modern.Claims")
	defer span.End()
	span.SetAttributes(attribute.String("correlation_id", correlationID))

	url := fmt.Sprintf("%s/v2/citizens/%s/claims?fromDate=%s", c.baseURL, identityToken, from.Format("2006-01-02"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build claims request: %w", err)
	}
	httpReq.Header.Set("Correlation-Id", correlationID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call claims lookup: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	default:
		c.logger.Warn("claims lookup returned unexpected status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("correlation_id", correlationID))
		return nil, fmt.Errorf("claims lookup status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var out claimsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode claims response: %w", sentinel.ErrUnavailable)
	}
	return out.Claims, nil
}
