// Package conversation owns the dialogue with the assistant service: message
// history, the thread id, the input buffer and the single in-flight request.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"ApparelChat/internal/attachment"
	"ApparelChat/internal/backend"
	"ApparelChat/internal/journal"
	"ApparelChat/internal/session"
)

// Fixed replies shown in place of an assistant answer
const (
	ApologyReply         = "Sorry, I couldn't come up with an answer to that. Could you try rephrasing?"
	ConnectionErrorReply = "Sorry, I'm having trouble connecting to the store right now. Please try again in a moment."
)

var (
	// ErrNothingToSend is returned when the effective text is blank and no
	// attachment is pending. No state changes.
	ErrNothingToSend = errors.New("conversation: nothing to send")
	// ErrRequestPending is returned while another request is in flight.
	ErrRequestPending = errors.New("conversation: a request is already in flight")
)

// Client sends one exchange to the assistant service
type Client interface {
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatReply, error)
}

// Recorder persists completed exchanges
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Session is the conversation state machine. At most one request is in
// flight at a time.
type Session struct {
	client      Client
	attachments *attachment.Manager
	recorder    Recorder
	logger      *slog.Logger
	tracer      trace.Tracer
	exchanges   metric.Int64Counter

	mu       sync.Mutex
	input    string
	threadID string
	history  []session.Message
	pending  bool
}

// Opts holds parameters for creating a Session.
type Opts struct {
	Client      Client
	Attachments *attachment.Manager // defaults to a new standard-mode manager
	Recorder    Recorder            // optional
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Meter       metric.Meter
}

// New creates an empty Session
func New(opts Opts) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("conversation: client is required")
	}
	if opts.Attachments == nil {
		opts.Attachments = attachment.NewManager()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer("conversation")
	}
	if opts.Meter == nil {
		opts.Meter = noop.NewMeterProvider().Meter("conversation")
	}

	exchanges, err := opts.Meter.Int64Counter(
		"chat.exchanges",
		metric.WithDescription("Completed chat exchanges by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange counter: %w", err)
	}

	return &Session{
		client:      opts.Client,
		attachments: opts.Attachments,
		recorder:    opts.Recorder,
		logger:      opts.Logger,
		tracer:      opts.Tracer,
		exchanges:   exchanges,
	}, nil
}

// Attachments exposes the attachment slot for the surface's file picker
func (s *Session) Attachments() *attachment.Manager {
	return s.attachments
}

// SetInput replaces the input buffer
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// History returns a copy of the messages in display order
func (s *Session) History() []session.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Mode() session.Mode { return s.attachments.Mode() }

func (s *Session) SetMode(m session.Mode) { s.attachments.SetMode(m) }

func (s *Session) Placeholder() string { return s.attachments.Placeholder() }

// CanSubmit reports whether the submit affordance should be enabled for the
// current input buffer.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return false
	}
	_, attached := s.attachments.Current()
	return strings.TrimSpace(s.input) != "" || attached
}

// Reset starts a fresh conversation: history, thread id, input and
// attachment are cleared. Mode is kept.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return ErrRequestPending
	}
	s.history = nil
	s.threadID = ""
	s.input = ""
	s.attachments.Clear()
	s.logger.Info("conversation reset")
	return nil
}

// Submit sends override, or the input buffer when override is empty. The
// Human message is appended and the input and attachment are cleared before
// Submit returns; the request itself runs in the background and done is
// closed once its reply (or failure notice) is in the history.
func (s *Session) Submit(ctx context.Context, override string) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, ErrRequestPending
	}
	text := override
	if text == "" {
		text = s.input
	}
	// Take once so a concurrent Clear cannot slip between check and capture.
	file, attached := s.attachments.Take()
	if strings.TrimSpace(text) == "" && !attached {
		s.mu.Unlock()
		return nil, ErrNothingToSend
	}

	display := text
	if attached {
		display += " [Attached: " + file.Name + "]"
	}
	s.history = append(s.history, session.Message{
		Role:      session.RoleHuman,
		Content:   display,
		Timestamp: time.Now(),
	})
	s.input = ""
	s.pending = true

	req := backend.ChatRequest{
		Query:    text,
		Mode:     s.attachments.Mode(),
		ThreadID: s.threadID,
	}
	if attached {
		req.Attachment = &file
	}
	s.mu.Unlock()

	// A dispatched request runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.exchange(ctx, req)
	}()
	return done, nil
}

// exchange performs the request and resolves it into an Assistant message.
func (s *Session) exchange(ctx context.Context, req backend.ChatRequest) {
	id := uuid.NewString()
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "chat_exchange", trace.WithAttributes(
		attribute.String("exchange.id", id),
		attribute.String("chat.mode", string(req.Mode)),
		attribute.String("chat.thread_id", req.ThreadID),
	))
	defer span.End()

	log := s.logger.With("exchange_id", id, "mode", req.Mode, "thread_id", req.ThreadID)

	outcome := journal.OutcomeFailed
	defer func() {
		s.mu.Lock()
		s.pending = false
		threadID := s.threadID
		s.mu.Unlock()

		s.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		s.record(ctx, log, journal.Entry{
			ID:         id,
			ThreadID:   threadID,
			Mode:       string(req.Mode),
			Query:      req.Query,
			Attachment: attachmentName(req.Attachment),
			Outcome:    outcome,
			Latency:    time.Since(start),
			CreatedAt:  start,
		})
	}()

	reply, err := s.client.Chat(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		log.Error("failed to reach assistant service", "error", err)
		s.appendAssistant(session.Message{Content: ConnectionErrorReply}, "")
		return
	}

	msg, outcome := resolveReply(reply.Text)
	s.appendAssistant(msg, reply.ThreadID)
	span.SetAttributes(attribute.String("exchange.outcome", outcome))
	log.Info("exchange completed", "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
}

// resolveReply applies the receipt unwrap and the empty-reply fallback.
func resolveReply(text string) (session.Message, string) {
	unwrapped, receipt := backend.UnwrapReceipt(text)
	if unwrapped == "" {
		return session.Message{Content: ApologyReply}, journal.OutcomeEmpty
	}
	if receipt {
		return session.Message{Content: unwrapped, Receipt: true}, journal.OutcomeReceipt
	}
	return session.Message{Content: unwrapped}, journal.OutcomeReply
}

func (s *Session) appendAssistant(msg session.Message, threadID string) {
	msg.Role = session.RoleAssistant
	msg.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	if threadID != "" {
		s.threadID = threadID
	}
}

func (s *Session) record(ctx context.Context, log *slog.Logger, e journal.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, e); err != nil {
		log.Warn("failed to record exchange", "error", err)
	}
}

func attachmentName(a *session.Attachment) string {
	if a == nil {
		return ""
	}
	return a.Name
}
