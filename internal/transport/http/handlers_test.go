package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"eligibility/internal/audit"
	"eligibility/internal/bulk"
	"eligibility/internal/check/models"
	checkservice "eligibility/internal/check/service"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/domain"
	"eligibility/internal/queue"
	"eligibility/internal/resultcache"
	"eligibility/pkg/platform/tx"
)

// =============================================================================
// HTTP Handler Test Suite
// =============================================================================
// Handler tests exercise the HTTP concerns only: request parsing, routing and
// status-code mapping. Real services over in-memory stores back the handlers;
// the business rules themselves are covered by the service suites.

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	q      *queue.InMemoryQueue
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	checks := checkstore.NewMemory()
	auditor := audit.NewMemoryPublisher()
	cache := resultcache.New(resultcache.NewMemoryStore(), auditor, 28, nil)
	s.q = queue.NewMemory()
	logger := zap.NewNop()

	checkSvc := checkservice.New(checks, cache, s.q, tx.NopRunner{}, auditor, logger)
	bulkSvc := bulk.New(bulk.NewMemory(), checks, cache, s.q, tx.NopRunner{}, auditor, 250, logger)

	r := chi.NewRouter()
	NewCheckHandler(checkSvc, logger).Register(r)
	NewBulkHandler(bulkSvc, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) submitBody() map[string]any {
	return map[string]any{
		"type":                    "FreeSchoolMeals",
		"clientIdentifier":        "pupil-42",
		"lastName":                "Simpson",
		"dateOfBirth":             "2015-04-01",
		"nationalInsuranceNumber": "AB123456C",
	}
}

func (s *HandlerSuite) TestSubmitCheck() {
	s.Run("valid submission returns 201 with a queued result", func() {
		rec := s.do(http.MethodPost, "/checks", s.submitBody())
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var res models.Result
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&res))
		s.NotEmpty(res.ID)
		s.Equal(domain.StatusQueued, res.Status)
		s.Equal(1, s.q.Len())
	})

	s.Run("invalid JSON returns 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/checks", bytes.NewReader([]byte("not valid json")))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown benefit type returns 400", func() {
		body := s.submitBody()
		body["type"] = "Unemployment"
		rec := s.do(http.MethodPost, "/checks", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing identifying number returns 400", func() {
		body := s.submitBody()
		delete(body, "nationalInsuranceNumber")
		rec := s.do(http.MethodPost, "/checks", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGetCheck() {
	rec := s.do(http.MethodPost, "/checks", s.submitBody())
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created models.Result
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&created))

	s.Run("existing check", func() {
		rec := s.do(http.MethodGet, "/checks/"+created.ID, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var res models.Result
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&res))
		s.Equal(created.ID, res.ID)
		s.Equal("Simpson", res.LastName)
	})

	s.Run("unknown check returns 404", func() {
		rec := s.do(http.MethodGet, "/checks/missing", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestUpdateCheckStatus() {
	rec := s.do(http.MethodPost, "/checks", s.submitBody())
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created models.Result
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&created))

	s.Run("valid override", func() {
		rec := s.do(http.MethodPut, "/checks/"+created.ID+"/status", map[string]string{"status": "eligible"})
		s.Require().Equal(http.StatusOK, rec.Code)

		var res models.Result
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&res))
		s.Equal(domain.StatusEligible, res.Status)
	})

	s.Run("unknown status value returns 400", func() {
		rec := s.do(http.MethodPut, "/checks/"+created.ID+"/status", map[string]string{"status": "processing"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid transition returns 400", func() {
		rec := s.do(http.MethodPut, "/checks/"+created.ID+"/status", map[string]string{"status": "queued"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) bulkBody(n int) map[string]any {
	checks := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		checks = append(checks, map[string]any{
			"type":                    "FreeSchoolMeals",
			"clientIdentifier":        fmt.Sprintf("pupil-%d", i+1),
			"lastName":                "Simpson",
			"dateOfBirth":             "2015-04-01",
			"nationalInsuranceNumber": fmt.Sprintf("AB12345%dC", i),
		})
	}
	return map[string]any{"name": "september intake", "checks": checks}
}

func (s *HandlerSuite) TestBulkLifecycle() {
	rec := s.do(http.MethodPost, "/bulk-checks", s.bulkBody(2))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		GroupID string `json:"groupId"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&created))
	s.Require().NotEmpty(created.GroupID)

	s.Run("status reports aggregate progress", func() {
		rec := s.do(http.MethodGet, "/bulk-checks/"+created.GroupID+"/status", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var progress bulk.Progress
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&progress))
		s.Equal(bulk.Progress{Total: 2, Completed: 0}, progress)
	})

	s.Run("results are ordered by sequence", func() {
		rec := s.do(http.MethodGet, "/bulk-checks/"+created.GroupID+"/results", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Results []models.Result `json:"results"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Require().Len(body.Results, 2)
		s.Equal(1, body.Results[0].Sequence)
		s.Equal("pupil-1", body.Results[0].ClientIdentifier)
	})

	s.Run("delete returns 204 and empties results", func() {
		rec := s.do(http.MethodDelete, "/bulk-checks/"+created.GroupID, nil)
		s.Require().Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodGet, "/bulk-checks/"+created.GroupID+"/results", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var body struct {
			Results []models.Result `json:"results"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Empty(body.Results)
	})

	s.Run("repeat delete returns 400", func() {
		rec := s.do(http.MethodDelete, "/bulk-checks/"+created.GroupID, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestBulkSubmitRejectsEmptyBatch() {
	rec := s.do(http.MethodPost, "/bulk-checks", map[string]any{"name": "empty", "checks": []any{}})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestBulkStatusUnknownGroup() {
	rec := s.do(http.MethodGet, "/bulk-checks/missing/status", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}
