package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"eligibility/internal/audit"
	"eligibility/internal/check/models"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/domain"
	"eligibility/internal/platform/config"
	"eligibility/internal/queue"
	"eligibility/pkg/platform/sentinel"
)

// =============================================================================
// Queue Consumer Test Suite
// =============================================================================
// The consumer's message-fate rules (delete on settle, release under the
// retry limit, force error past it) are the poison-message contract and are
// exercised here directly against an in-memory transport.

type stubProcessor struct {
	status domain.CheckStatus
	err    error
	calls  int
}

func (p *stubProcessor) Process(context.Context, string) (domain.CheckStatus, error) {
	p.calls++
	return p.status, p.err
}

type stubRecomputer struct {
	groups []string
}

func (r *stubRecomputer) Recompute(_ context.Context, groupID string) error {
	r.groups = append(r.groups, groupID)
	return nil
}

type ConsumerSuite struct {
	suite.Suite
	q         *queue.InMemoryQueue
	checks    *checkstore.InMemoryStore
	processor *stubProcessor
	groups    *stubRecomputer
	auditor   *audit.MemoryPublisher
	consumer  *Consumer
	ctx       context.Context
}

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerSuite))
}

func (s *ConsumerSuite) SetupTest() {
	s.q = queue.NewMemory()
	s.checks = checkstore.NewMemory()
	s.processor = &stubProcessor{}
	s.groups = &stubRecomputer{}
	s.auditor = audit.NewMemoryPublisher()
	s.consumer = New(Deps{
		Queue:     s.q,
		Processor: s.processor,
		Checks:    s.checks,
		Groups:    s.groups,
		Auditor:   s.auditor,
		Config: config.QueueConfig{
			BatchSize:  10,
			RetryLimit: 3,
			Workers:    1,
			PollEvery:  time.Millisecond,
		},
		Logger: zap.NewNop(),
	})
	s.ctx = context.Background()
}

func (s *ConsumerSuite) createCheck(id, groupID string, status domain.CheckStatus) {
	rec := &models.Record{
		ID:      id,
		GroupID: groupID,
		Type:    domain.FreeSchoolMeals,
		Status:  status,
		Payload: []byte(`{}`),
		Created: time.Now(),
	}
	s.Require().NoError(s.checks.Create(s.ctx, rec))
}

func (s *ConsumerSuite) dequeueOne() queue.Message {
	msgs, err := s.q.Dequeue(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	return msgs[0]
}

func (s *ConsumerSuite) TestSettledMessageIsDeleted() {
	s.createCheck("c1", "", domain.StatusEligible)
	s.processor.status = domain.StatusEligible
	s.Require().NoError(s.q.Enqueue(s.ctx, queue.Message{CheckID: "c1"}))

	s.Require().NoError(s.consumer.handle(s.ctx, s.dequeueOne()))

	s.Zero(s.q.Len(), "settled check's message must be deleted")
	s.Empty(s.groups.groups, "standalone check triggers no group recompute")
}

func (s *ConsumerSuite) TestSettledGroupMemberTriggersRecompute() {
	s.createCheck("c1", "g1", domain.StatusEligible)
	s.processor.status = domain.StatusEligible
	s.Require().NoError(s.q.Enqueue(s.ctx, queue.Message{CheckID: "c1"}))

	s.Require().NoError(s.consumer.handle(s.ctx, s.dequeueOne()))

	s.Equal([]string{"g1"}, s.groups.groups)
}

func (s *ConsumerSuite) TestRolledBackMessageIsReleased() {
	s.createCheck("c1", "", domain.StatusQueued)
	s.processor.status = domain.StatusQueued
	s.Require().NoError(s.q.Enqueue(s.ctx, queue.Message{CheckID: "c1"}))

	s.Require().NoError(s.consumer.handle(s.ctx, s.dequeueOne()))

	s.Equal(1, s.q.Len(), "message stays queued for retry")
	msgs, err := s.q.Dequeue(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(msgs, 1, "released message is immediately redeliverable")

	stored, err := s.checks.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(domain.StatusQueued, stored.Status)
}

func (s *ConsumerSuite) TestRetryExhaustionForcesError() {
	s.createCheck("c1", "g1", domain.StatusQueued)
	s.processor.status = domain.StatusQueued
	s.Require().NoError(s.q.Enqueue(s.ctx, queue.Message{CheckID: "c1"}))

	// Drive the message to the retry limit.
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.consumer.handle(s.ctx, s.dequeueOne()))
	}
	s.Require().NoError(s.consumer.handle(s.ctx, s.dequeueOne()))

	s.Zero(s.q.Len(), "exhausted message is dropped")
	stored, err := s.checks.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(domain.StatusError, stored.Status, "only the consumer durably writes error")
	s.Equal([]string{"g1"}, s.groups.groups)

	var actions []audit.Action
	for _, e := range s.auditor.Events() {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, audit.ActionRetryExhausted)
}

func (s *ConsumerSuite) TestExhaustionKeepsConcurrentSettle() {
	s.createCheck("c1", "", domain.StatusEligible)
	s.processor.status = domain.StatusQueued

	err := s.consumer.handle(s.ctx, queue.Message{ID: "m1", CheckID: "c1", Deliveries: 3})
	s.NoError(err)

	stored, err := s.checks.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(domain.StatusEligible, stored.Status, "a settled record is never overwritten with error")
}

func (s *ConsumerSuite) TestVanishedRecordDropsMessage() {
	s.processor.err = sentinel.ErrNotFound
	s.Require().NoError(s.q.Enqueue(s.ctx, queue.Message{CheckID: "gone"}))

	s.Require().NoError(s.consumer.handle(s.ctx, s.dequeueOne()))
	s.Zero(s.q.Len())
}

func (s *ConsumerSuite) TestProcessorFailureCountsAgainstRetryLimit() {
	s.createCheck("c1", "", domain.StatusQueued)
	s.processor.err = context.DeadlineExceeded

	err := s.consumer.handle(s.ctx, queue.Message{ID: "m1", CheckID: "c1", Deliveries: 3})
	s.NoError(err)

	stored, err := s.checks.GetByID(s.ctx, "c1")
	s.Require().NoError(err)
	s.Equal(domain.StatusError, stored.Status)
}
