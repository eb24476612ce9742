package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/essaypilot/essaypilot-api/internal/config"
	"github.com/essaypilot/essaypilot-api/internal/dto"
	"github.com/essaypilot/essaypilot-api/internal/models"
	"github.com/essaypilot/essaypilot-api/internal/observability"
	"github.com/essaypilot/essaypilot-api/internal/repository"
	"github.com/essaypilot/essaypilot-api/pkg/ai"
)

// ErrInsufficientCredits signals the 402 path: the user requested feedback
// but their balance cannot cover it. Nothing has been persisted when this is
// returned.
var ErrInsufficientCredits = errors.New("insufficient credits for feedback generation")

const (
	feedbackCost = 1

	// Personal statements share one near-universal limit regardless of the
	// word count the client declares.
	personalStatementWordLimit = 650

	feedbackQueueGroup = "essaypilot-feedback"
)

// StepStatus classifies how a post-persistence pipeline step ended. Steps
// after the essay row exists never fail the request; their outcomes are
// recorded instead.
type StepStatus string

// Step statuses.
const (
	StepOK             StepStatus = "ok"
	StepSkipped        StepStatus = "skipped"
	StepFailedContinue StepStatus = "failed_continue"
)

// StepOutcome records how one best-effort pipeline step ended.
type StepOutcome struct {
	Step   string
	Status StepStatus
	Detail string
}

// EssayService runs the essay submission workflow: persist the essay, then
// optionally generate feedback, attach it, consume a credit, and notify the
// student. Failures are strict before the essay row exists and lenient after.
type EssayService interface {
	Submit(ctx context.Context, req dto.SubmitEssayRequest) (dto.EssayResponse, error)
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]dto.EssayResponse, error)
	// Start launches the deferred-mode queue worker. A no-op in sync mode.
	Start(ctx context.Context)
}

type feedbackJob struct {
	EssayID   uint   `json:"essay_id"`
	UserID    string `json:"user_id"`
	WordLimit int    `json:"word_limit"`
}

type essayService struct {
	essays      repository.EssayRepository
	ledger      CreditLedger
	guard       *DuplicateGuard
	generator   ai.Generator
	notifier    FeedbackNotifier
	validator   *validator.Validate
	mode        string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEssayService constructs the submission workflow service. The NATS
// connection may be nil in sync mode.
func NewEssayService(
	essays repository.EssayRepository,
	ledger CreditLedger,
	guard *DuplicateGuard,
	generator ai.Generator,
	notifier FeedbackNotifier,
	validate *validator.Validate,
	mode string,
	natsConn *nats.Conn,
	logger zerolog.Logger,
) EssayService {
	return &essayService{
		essays:      essays,
		ledger:      ledger,
		guard:       guard,
		generator:   generator,
		notifier:    notifier,
		validator:   validate,
		mode:        mode,
		nats:        natsConn,
		natsSubject: "essaypilot.feedback.jobs",
		logger:      logger.With().Str("component", "essay_service").Logger(),
		tracer:      otel.Tracer("github.com/essaypilot/essaypilot-api/internal/service/essay"),
	}
}

func (s *essayService) Submit(ctx context.Context, req dto.SubmitEssayRequest) (dto.EssayResponse, error) {
	ctx, span := s.tracer.Start(ctx, "essay.submit", trace.WithAttributes(
		attribute.Bool("essay.personal_statement", req.Essay.PersonalStatement),
		attribute.Bool("essay.feedback_requested", req.FeedbackRequested()),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.EssayResponse{}, err
	}

	feedbackRequested := req.FeedbackRequested()
	userID := ""
	if req.UserInfo != nil {
		userID = strings.TrimSpace(req.UserInfo.UserID)
	}

	// The only credit gate: checked before anything is persisted, never
	// re-checked after feedback has been generated.
	if feedbackRequested && userID != "" {
		sufficient, err := s.ledger.HasSufficientCredits(ctx, userID, feedbackCost)
		if err != nil {
			span.RecordError(err)
			return dto.EssayResponse{}, err
		}
		if !sufficient {
			observability.EssaySubmissions().WithLabelValues("payment_required").Inc()
			span.SetStatus(codes.Error, "insufficient credits")
			return dto.EssayResponse{}, ErrInsufficientCredits
		}
	}

	var duplicate DuplicateCheck
	if feedbackRequested {
		duplicate = s.guard.CheckForDuplicate(ctx, req.Essay.StudentEmail, req.Essay.PersonalStatement)
	}

	essay := models.Essay{
		ReferenceID:       uuid.NewString(),
		StudentFirstName:  strings.TrimSpace(req.Essay.StudentFirstName),
		StudentLastName:   strings.TrimSpace(req.Essay.StudentLastName),
		StudentEmail:      strings.ToLower(strings.TrimSpace(req.Essay.StudentEmail)),
		StudentCollege:    strings.TrimSpace(req.Essay.StudentCollege),
		SelectedPrompt:    req.Essay.SelectedPrompt,
		PersonalStatement: req.Essay.PersonalStatement,
		EssayContent:      req.Essay.EssayContent,
	}

	if err := s.essays.Create(ctx, &essay); err != nil {
		observability.EssaySubmissions().WithLabelValues("persist_failed").Inc()
		span.RecordError(err)
		return dto.EssayResponse{}, fmt.Errorf("persist essay: %w", err)
	}
	s.guard.Invalidate(ctx, essay.StudentEmail)

	if !feedbackRequested {
		observability.EssaySubmissions().WithLabelValues("stored").Inc()
		return dto.NewEssayResponse(essay), nil
	}

	if duplicate.IsDuplicate {
		s.logger.Info().
			Str("reference_id", essay.ReferenceID).
			Int64("recent_count", duplicate.SubmissionCount).
			Msg("duplicate personal statement, returning canned response")

		if err := s.essays.AttachFeedback(ctx, essay.ID, duplicate.Message); err != nil {
			span.RecordError(err)
			return dto.EssayResponse{}, fmt.Errorf("attach duplicate message: %w", err)
		}
		message := duplicate.Message
		essay.EssayFeedback = &message

		if err := s.notifier.NotifyFeedback(ctx, essay, message); err != nil {
			s.logger.Warn().Err(err).Str("reference_id", essay.ReferenceID).Msg("duplicate notification failed")
		}

		observability.EssaySubmissions().WithLabelValues("duplicate").Inc()
		return dto.NewEssayResponse(essay), nil
	}

	wordLimit := *req.WordCount
	if essay.PersonalStatement {
		wordLimit = personalStatementWordLimit
	}

	if s.mode == config.SubmissionModeDeferred && s.nats != nil {
		if err := s.enqueue(feedbackJob{EssayID: essay.ID, UserID: userID, WordLimit: wordLimit}); err != nil {
			span.RecordError(err)
			return dto.EssayResponse{}, fmt.Errorf("enqueue feedback job: %w", err)
		}
		observability.EssaySubmissions().WithLabelValues("queued").Inc()
		return dto.NewEssayResponse(essay), nil
	}

	processed, err := s.runFeedbackPipeline(ctx, essay, userID, wordLimit)
	if err != nil {
		observability.EssaySubmissions().WithLabelValues("feedback_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "feedback pipeline failed")
		return dto.EssayResponse{}, err
	}

	observability.EssaySubmissions().WithLabelValues("completed").Inc()
	return dto.NewEssayResponse(processed), nil
}

// runFeedbackPipeline generates feedback for a persisted essay and runs the
// lenient tail of the workflow. Generation and attachment failures are fatal
// to the request, but the essay row always survives; credit consumption and
// notification failures are recorded and swallowed because feedback already
// delivered is not clawed back.
func (s *essayService) runFeedbackPipeline(ctx context.Context, essay models.Essay, userID string, wordLimit int) (models.Essay, error) {
	input := ai.FeedbackInput{
		PromptText:        essay.SelectedPrompt,
		EssayContent:      essay.EssayContent,
		PersonalStatement: essay.PersonalStatement,
		WordCount:         ai.CountWords(essay.EssayContent),
		WordLimit:         wordLimit,
	}

	feedback, err := s.generator.Generate(ctx, input)
	if err != nil {
		return essay, fmt.Errorf("generate feedback: %w", err)
	}

	if err := s.essays.AttachFeedback(ctx, essay.ID, feedback); err != nil {
		return essay, fmt.Errorf("attach feedback: %w", err)
	}
	essay.EssayFeedback = &feedback

	outcomes := make([]StepOutcome, 0, 2)

	if userID == "" {
		outcomes = append(outcomes, StepOutcome{Step: "consume_credit", Status: StepSkipped, Detail: "no user identity"})
	} else {
		consumed, err := s.ledger.ConsumeCredits(ctx, userID, feedbackCost, fmt.Sprintf("AI feedback for essay %s", essay.ReferenceID))
		switch {
		case err != nil:
			outcomes = append(outcomes, StepOutcome{Step: "consume_credit", Status: StepFailedContinue, Detail: err.Error()})
		case !consumed:
			outcomes = append(outcomes, StepOutcome{Step: "consume_credit", Status: StepFailedContinue, Detail: "balance changed since check"})
		default:
			outcomes = append(outcomes, StepOutcome{Step: "consume_credit", Status: StepOK})
		}
	}

	if err := s.notifier.NotifyFeedback(ctx, essay, feedback); err != nil {
		outcomes = append(outcomes, StepOutcome{Step: "notify", Status: StepFailedContinue, Detail: err.Error()})
	} else {
		outcomes = append(outcomes, StepOutcome{Step: "notify", Status: StepOK})
	}

	s.logOutcomes(essay, outcomes)
	return essay, nil
}

func (s *essayService) logOutcomes(essay models.Essay, outcomes []StepOutcome) {
	for _, outcome := range outcomes {
		event := s.logger.Info()
		if outcome.Status == StepFailedContinue {
			event = s.logger.Warn()
		}
		event.
			Str("reference_id", essay.ReferenceID).
			Str("step", outcome.Step).
			Str("status", string(outcome.Status)).
			Str("detail", outcome.Detail).
			Msg("submission pipeline step")
	}
}

func (s *essayService) enqueue(job feedbackJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.nats.Publish(s.natsSubject, payload)
}

func (s *essayService) Start(ctx context.Context) {
	if s.mode != config.SubmissionModeDeferred || s.nats == nil {
		return
	}

	sub, err := s.nats.QueueSubscribe(s.natsSubject, feedbackQueueGroup, func(msg *nats.Msg) {
		s.handleJob(ctx, msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to feedback job subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain feedback job subscription")
		}
	}()
}

func (s *essayService) handleJob(ctx context.Context, payload []byte) {
	var job feedbackJob
	if err := json.Unmarshal(payload, &job); err != nil {
		s.logger.Warn().Err(err).Msg("invalid feedback job payload")
		return
	}

	essay, err := s.essays.GetByID(ctx, job.EssayID)
	if err != nil {
		s.logger.Error().Err(err).Uint("essay_id", job.EssayID).Msg("feedback job references unknown essay")
		return
	}

	if essay.EssayFeedback != nil {
		// Redelivered job; feedback already attached.
		return
	}

	if _, err := s.runFeedbackPipeline(ctx, essay, job.UserID, job.WordLimit); err != nil {
		observability.EssaySubmissions().WithLabelValues("feedback_failed").Inc()
		s.logger.Error().Err(err).Str("reference_id", essay.ReferenceID).Msg("deferred feedback pipeline failed")
		return
	}

	observability.EssaySubmissions().WithLabelValues("completed").Inc()
}

func (s *essayService) ListByEmail(ctx context.Context, email string, limit, offset int) ([]dto.EssayResponse, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}

	essays, err := s.essays.ListByEmail(ctx, email, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewEssayResponseSlice(essays), nil
}
