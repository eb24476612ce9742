package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/essaypilot/essaypilot-api/internal/config"
	"github.com/essaypilot/essaypilot-api/internal/dto"
	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/repository"
	"github.com/essaypilot/essaypilot-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type essayRepoStub struct {
	created     []models.Essay
	attached    map[uint]string
	recentCount int64
	countErr    error
	createErr   error
	attachErr   error
	nextID      uint
}

func newEssayRepoStub() *essayRepoStub {
	return &essayRepoStub{attached: make(map[uint]string)}
}

func (s *essayRepoStub) Create(_ context.Context, essay *models.Essay) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	essay.ID = s.nextID
	essay.CreatedAt = time.Now()
	s.created = append(s.created, *essay)
	return nil
}

func (s *essayRepoStub) GetByID(_ context.Context, id uint) (models.Essay, error) {
	for _, essay := range s.created {
		if essay.ID == id {
			if feedback, ok := s.attached[id]; ok {
				essay.EssayFeedback = &feedback
			}
			return essay, nil
		}
	}
	return models.Essay{}, gorm.ErrRecordNotFound
}

func (s *essayRepoStub) GetByReference(_ context.Context, referenceID string) (models.Essay, error) {
	for _, essay := range s.created {
		if essay.ReferenceID == referenceID {
			return essay, nil
		}
	}
	return models.Essay{}, gorm.ErrRecordNotFound
}

func (s *essayRepoStub) AttachFeedback(_ context.Context, id uint, feedback string) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attached[id] = feedback
	return nil
}

func (s *essayRepoStub) ListByEmail(_ context.Context, email string, _, _ int) ([]models.Essay, error) {
	var result []models.Essay
	for _, essay := range s.created {
		if essay.StudentEmail == email {
			result = append(result, essay)
		}
	}
	return result, nil
}

func (s *essayRepoStub) CountPersonalStatementsSince(_ context.Context, _ string, _ time.Time) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.recentCount, nil
}

func (s *essayRepoStub) List(_ context.Context, _ repository.EssayFilter) ([]models.Essay, int64, error) {
	return s.created, int64(len(s.created)), nil
}

type ledgerStub struct {
	balance     int64
	checkErr    error
	consumeErr  error
	consumeOK   bool
	checkCalls  int
	consumeCall int
	addCall     int
}

func (l *ledgerStub) HasSufficientCredits(_ context.Context, _ string, required int64) (bool, error) {
	l.checkCalls++
	if l.checkErr != nil {
		return false, l.checkErr
	}
	return l.balance >= required, nil
}

func (l *ledgerStub) ConsumeCredits(_ context.Context, _ string, amount int64, _ string) (bool, error) {
	l.consumeCall++
	if l.consumeErr != nil {
		return false, l.consumeErr
	}
	if !l.consumeOK {
		return false, nil
	}
	l.balance -= amount
	return true, nil
}

func (l *ledgerStub) AddCredits(_ context.Context, _ string, amount int64, _ string) error {
	l.addCall++
	l.balance += amount
	return nil
}

func (l *ledgerStub) GetBalance(_ context.Context, _ string) (int64, error) {
	return l.balance, nil
}

type generatorStub struct {
	feedback string
	err      error
	calls    int
	last     ai.FeedbackInput
}

func (g *generatorStub) Generate(_ context.Context, input ai.FeedbackInput) (string, error) {
	g.calls++
	g.last = input
	if g.err != nil {
		return "", g.err
	}
	return g.feedback, nil
}

type notifierStub struct {
	err   error
	calls int
	last  string
}

func (n *notifierStub) NotifyFeedback(_ context.Context, _ models.Essay, feedback string) error {
	n.calls++
	n.last = feedback
	return n.err
}

type serviceFixture struct {
	repo      *essayRepoStub
	ledger    *ledgerStub
	generator *generatorStub
	notifier  *notifierStub
	service   EssayService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newEssayRepoStub()
	ledger := &ledgerStub{balance: 1, consumeOK: true}
	generator := &generatorStub{feedback: "## Overall Verdict\nSolid draft, consider a trim."}
	notifier := &notifierStub{}
	guard := NewDuplicateGuard(repo, nil, 30*24*time.Hour, 5, time.Minute, testLogger())

	svc := NewEssayService(repo, ledger, guard, generator, notifier, validator.New(validator.WithRequiredStructEnabled()), config.SubmissionModeSync, nil, testLogger())
	return &serviceFixture{repo: repo, ledger: ledger, generator: generator, notifier: notifier, service: svc}
}

func submitRequest(wordCount *int, userID string) dto.SubmitEssayRequest {
	req := dto.SubmitEssayRequest{
		Essay: dto.EssayPayload{
			StudentFirstName:  "Ada",
			StudentLastName:   "Lovelace",
			StudentEmail:      "Ada@Example.com",
			SelectedPrompt:    "Describe a challenge you overcame.",
			PersonalStatement: true,
			EssayContent:      strings.TrimSpace(strings.Repeat("word ", 700)),
		},
		WordCount: wordCount,
	}
	if userID != "" {
		req.UserInfo = &dto.UserInfo{UserID: userID}
	}
	return req
}

func intPtr(v int) *int { return &v }

func TestSubmitWithoutWordCountSkipsFeedback(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.service.Submit(context.Background(), submitRequest(nil, "u1"))
	require.NoError(t, err)

	require.Nil(t, resp.EssayFeedback)
	require.Zero(t, f.generator.calls, "no completion call without a word count")
	require.Zero(t, f.ledger.consumeCall, "no credit consumption without a word count")
	require.Zero(t, f.notifier.calls, "no notification without a word count")
	require.Len(t, f.repo.created, 1)
	require.Equal(t, "ada@example.com", f.repo.created[0].StudentEmail)
}

func TestSubmitValidationFailureHasNoSideEffects(t *testing.T) {
	f := newServiceFixture(t)

	req := submitRequest(intPtr(650), "u1")
	req.Essay.StudentEmail = ""

	_, err := f.service.Submit(context.Background(), req)
	require.Error(t, err)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	require.Empty(t, f.repo.created, "nothing persisted on validation failure")
	require.Zero(t, f.generator.calls)
}

func TestSubmitInsufficientCreditsBeforePersistence(t *testing.T) {
	f := newServiceFixture(t)
	f.ledger.balance = 0

	_, err := f.service.Submit(context.Background(), submitRequest(intPtr(700), "u1"))
	require.ErrorIs(t, err, ErrInsufficientCredits)

	require.Empty(t, f.repo.created, "essay must not be persisted on the 402 path")
	require.Zero(t, f.generator.calls, "no completion call on the 402 path")
}

func TestSubmitAnonymousSkipsCreditGate(t *testing.T) {
	f := newServiceFixture(t)
	f.ledger.balance = 0

	resp, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), ""))
	require.NoError(t, err)

	require.Zero(t, f.ledger.checkCalls, "no credit check without a user identity")
	require.Zero(t, f.ledger.consumeCall)
	require.NotNil(t, resp.EssayFeedback)
}

func TestSubmitHappyPathConsumesOneCredit(t *testing.T) {
	f := newServiceFixture(t)
	f.ledger.balance = 1

	resp, err := f.service.Submit(context.Background(), submitRequest(intPtr(700), "u1"))
	require.NoError(t, err)

	require.NotNil(t, resp.EssayFeedback)
	require.Contains(t, *resp.EssayFeedback, "Overall Verdict")
	require.Equal(t, int64(0), f.ledger.balance, "one credit consumed")
	require.Equal(t, 1, f.notifier.calls)

	// The generator is told the conventional personal-statement limit and the
	// computed count, not the client's claim.
	require.Equal(t, 700, f.generator.last.WordCount)
	require.Equal(t, 650, f.generator.last.WordLimit)
}

func TestSubmitSupplementalUsesDeclaredWordLimit(t *testing.T) {
	f := newServiceFixture(t)

	req := submitRequest(intPtr(250), "u1")
	req.Essay.PersonalStatement = false

	_, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 250, f.generator.last.WordLimit)
}

func TestSubmitGeneratorFailureLeavesEssayPersisted(t *testing.T) {
	f := newServiceFixture(t)
	f.generator.err = errors.New("completion api unavailable")

	_, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), "u1"))
	require.Error(t, err)

	require.Len(t, f.repo.created, 1, "the essay row survives a generation failure")
	require.Empty(t, f.repo.attached, "feedback stays null")
	require.Zero(t, f.ledger.consumeCall, "no charge without confirmed feedback")
	require.Zero(t, f.notifier.calls)
}

func TestSubmitAttachFailureIsFatal(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.attachErr = errors.New("update failed")

	_, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), "u1"))
	require.Error(t, err)
	require.Zero(t, f.ledger.consumeCall)
}

func TestSubmitConsumeRaceIsSwallowed(t *testing.T) {
	f := newServiceFixture(t)
	f.ledger.consumeOK = false

	resp, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), "u1"))
	require.NoError(t, err, "a late consume rejection never fails the request")
	require.NotNil(t, resp.EssayFeedback)
	require.Equal(t, 1, f.ledger.consumeCall)
	require.Equal(t, 1, f.notifier.calls, "notification still runs")
}

func TestSubmitNotificationFailureIsSwallowed(t *testing.T) {
	f := newServiceFixture(t)
	f.notifier.err = errors.New("email provider down")

	resp, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), "u1"))
	require.NoError(t, err, "email failure never fails the request")
	require.NotNil(t, resp.EssayFeedback)
}

func TestSubmitDuplicateReturnsCannedMessage(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.recentCount = 5

	resp, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), "u1"))
	require.NoError(t, err)

	require.Zero(t, f.generator.calls, "no completion call for a duplicate")
	require.Zero(t, f.ledger.consumeCall, "no charge for a duplicate")
	require.NotNil(t, resp.EssayFeedback)
	require.Equal(t, DuplicateMessage, *resp.EssayFeedback)
	require.Len(t, f.repo.created, 1, "the duplicate essay is still persisted")
}

func TestSubmitSupplementalBypassesDuplicateGuard(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.recentCount = 10

	req := submitRequest(intPtr(250), "u1")
	req.Essay.PersonalStatement = false

	resp, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)
	require.NotEqual(t, DuplicateMessage, *resp.EssayFeedback)
}

func TestSubmitGuardFailsOpen(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.countErr = errors.New("database timeout")

	resp, err := f.service.Submit(context.Background(), submitRequest(intPtr(650), "u1"))
	require.NoError(t, err, "a guard backend error must never block a submission")
	require.Equal(t, 1, f.generator.calls)
	require.NotNil(t, resp.EssayFeedback)
}

func newDeferredFixture(t *testing.T) (*serviceFixture, *essayService) {
	t.Helper()
	f := newServiceFixture(t)
	worker := f.service.(*essayService)
	worker.mode = config.SubmissionModeDeferred
	return f, worker
}

func queuedEssay(t *testing.T, f *serviceFixture) models.Essay {
	t.Helper()
	essay := models.Essay{
		ReferenceID:       "ref-1",
		StudentEmail:      "ada@example.com",
		SelectedPrompt:    "Describe a challenge you overcame.",
		PersonalStatement: true,
		EssayContent:      strings.TrimSpace(strings.Repeat("word ", 700)),
	}
	require.NoError(t, f.repo.Create(context.Background(), &essay))
	return essay
}

func jobPayload(t *testing.T, job feedbackJob) []byte {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return payload
}

func TestDeferredWorkerRunsFeedbackPipeline(t *testing.T) {
	f, worker := newDeferredFixture(t)
	essay := queuedEssay(t, f)

	// Between enqueue and consumption the row sits with null feedback.
	require.Empty(t, f.repo.attached)

	worker.handleJob(context.Background(), jobPayload(t, feedbackJob{EssayID: essay.ID, UserID: "u1", WordLimit: 650}))

	require.Equal(t, 1, f.generator.calls)
	require.Equal(t, 650, f.generator.last.WordLimit)
	require.Equal(t, 700, f.generator.last.WordCount)
	require.Equal(t, f.generator.feedback, f.repo.attached[essay.ID])
	require.Equal(t, 1, f.ledger.consumeCall)
	require.Equal(t, int64(0), f.ledger.balance, "one credit consumed by the worker")
	require.Equal(t, 1, f.notifier.calls)
}

func TestDeferredWorkerRedeliveryIsNoOp(t *testing.T) {
	f, worker := newDeferredFixture(t)
	essay := queuedEssay(t, f)
	payload := jobPayload(t, feedbackJob{EssayID: essay.ID, UserID: "u1", WordLimit: 650})

	worker.handleJob(context.Background(), payload)
	worker.handleJob(context.Background(), payload)

	require.Equal(t, 1, f.generator.calls, "feedback already attached, redelivery does nothing")
	require.Equal(t, 1, f.ledger.consumeCall, "no double charge on redelivery")
	require.Equal(t, 1, f.notifier.calls)
}

func TestDeferredWorkerDropsInvalidJobs(t *testing.T) {
	f, worker := newDeferredFixture(t)

	worker.handleJob(context.Background(), []byte("not json"))
	worker.handleJob(context.Background(), jobPayload(t, feedbackJob{EssayID: 9000, UserID: "u1", WordLimit: 650}))

	require.Zero(t, f.generator.calls)
	require.Zero(t, f.ledger.consumeCall)
	require.Zero(t, f.notifier.calls)
}

func TestListByEmailRequiresEmail(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service.ListByEmail(context.Background(), "  ", 10, 0)
	require.Error(t, err)
}
