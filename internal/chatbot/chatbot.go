package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ApparelChat/internal/attachment"
	"ApparelChat/internal/backend"
	"ApparelChat/internal/config"
	"ApparelChat/internal/conversation"
	"ApparelChat/internal/journal"
	"ApparelChat/internal/notify"
	"ApparelChat/internal/session"
	"ApparelChat/internal/telemetry"
)

// ChatBot wires the conversation, the toast scheduler and the exchange
// journal together for a presentation surface.
type ChatBot struct {
	config     *config.Config
	logger     *slog.Logger
	journal    *journal.Journal
	session    *conversation.Session
	toasts     *notify.Scheduler
	transcript *Transcript
	closers    []func()
}

// Deps are the collaborators NewChatBot builds from configuration; tests
// supply their own.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Meter   metric.Meter
	Journal *journal.Journal
	Client  conversation.Client
}

// NewChatBot creates a new ChatBot instance with logging, telemetry and the
// exchange journal initialised from cfg.
func NewChatBot(ctx context.Context, cfg *config.Config) (*ChatBot, error) {
	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	j, err := journal.Open(cfg.JournalDSN)
	if err != nil {
		shutdown()
		logFile.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	client, err := backend.NewClient(backend.ClientOpts{
		BaseURL: cfg.APIURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
		Tracer:  tracer,
		Meter:   meter,
	})
	if err != nil {
		j.Close()
		shutdown()
		logFile.Close()
		return nil, fmt.Errorf("failed to create service client: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	cb, err := New(cfg, Deps{
		Logger:  logger,
		Tracer:  tracer,
		Meter:   meter,
		Journal: j,
		Client:  client,
	})
	if err != nil {
		j.Close()
		shutdown()
		logFile.Close()
		return nil, err
	}
	cb.closers = append(cb.closers, func() { logFile.Close() }, shutdown)
	return cb, nil
}

// New assembles a ChatBot from ready-made dependencies
func New(cfg *config.Config, deps Deps) (*ChatBot, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	attachments := attachment.NewManager()
	attachments.SetMode(cfg.Mode)

	opts := conversation.Opts{
		Client:      deps.Client,
		Attachments: attachments,
		Logger:      deps.Logger,
		Tracer:      deps.Tracer,
		Meter:       deps.Meter,
	}
	if deps.Journal != nil {
		opts.Recorder = deps.Journal
	}
	sess, err := conversation.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	toasts, err := notify.New(notify.Opts{
		Trends:   cfg.Catalog.Trends,
		Period:   cfg.Toasts.Period,
		Lifetime: cfg.Toasts.Lifetime,
		Logger:   deps.Logger,
		Meter:    deps.Meter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create toast scheduler: %w", err)
	}

	deps.Logger.Info("chatbot ready", "api_url", cfg.APIURL, "mode", cfg.Mode)

	return &ChatBot{
		config:     cfg,
		logger:     deps.Logger,
		journal:    deps.Journal,
		session:    sess,
		toasts:     toasts,
		transcript: NewTranscript(),
	}, nil
}

func (cb *ChatBot) Config() *config.Config               { return cb.config }
func (cb *ChatBot) Session() *conversation.Session       { return cb.session }
func (cb *ChatBot) Toasts() *notify.Scheduler            { return cb.toasts }
func (cb *ChatBot) Logger() *slog.Logger                 { return cb.logger }
func (cb *ChatBot) Transcript() *Transcript              { return cb.transcript }
func (cb *ChatBot) Render(from int, style Style) string { return cb.transcript.Render(cb.session.History(), from, style) }

// Close stops the scheduler and releases the journal and telemetry
func (cb *ChatBot) Close() error {
	cb.toasts.Stop()
	var err error
	if cb.journal != nil {
		err = cb.journal.Close()
	}
	for i := len(cb.closers) - 1; i >= 0; i-- {
		cb.closers[i]()
	}
	return err
}

// Submit sends text (or the input buffer when text is empty) and waits for
// the exchange to resolve. Validation no-ops return without error.
func (cb *ChatBot) Submit(ctx context.Context, text string) error {
	done, err := cb.session.Submit(ctx, text)
	if errors.Is(err, conversation.ErrNothingToSend) {
		return nil
	}
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ask performs a single exchange and returns the rendered reply
func (cb *ChatBot) Ask(ctx context.Context, text, attachPath string) (string, error) {
	if attachPath != "" {
		a, err := attachment.Open(attachPath)
		if err != nil {
			return "", err
		}
		cb.session.Attachments().Set(a)
	}
	before := len(cb.session.History())
	if err := cb.Submit(ctx, text); err != nil {
		return "", err
	}
	history := cb.session.History()
	if len(history) == before {
		return "", conversation.ErrNothingToSend
	}
	// Skip the Human message we just sent.
	return strings.TrimRight(cb.transcript.Render(history, before+1, PlainStyle{}), "\n"), nil
}

// Run starts the line-mode chat loop
func (cb *ChatBot) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	cb.toasts.Start()
	defer cb.toasts.Stop()

	fmt.Fprintln(out, "=== ApparelChat ===")
	fmt.Fprintf(out, "Service: %s\n", cb.config.APIURL)
	fmt.Fprintf(out, "Mode: %s\n", cb.session.Mode())
	fmt.Fprintln(out, cb.FeaturedLine())
	fmt.Fprintln(out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	printed := 0
	var lastToast uint64

	for {
		for _, t := range cb.toasts.Active() {
			if t.ID > lastToast {
				fmt.Fprintf(out, "* %s: %s\n", t.Title, t.Body)
				lastToast = t.ID
			}
		}

		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			res, err := cb.HandleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
				continue
			}
			if res.Output != "" {
				fmt.Fprintln(out, res.Output)
			}
			if res.Reset {
				printed = 0
			}
			if res.Redraw {
				fmt.Fprint(out, cb.transcript.RenderLatest(cb.session.History(), PlainStyle{}))
			}
			if res.Done != nil {
				<-res.Done
				printed = cb.printFrom(out, printed)
			}
			if res.Quit {
				break
			}
			continue
		}

		if err := cb.Submit(ctx, input); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			cb.logger.Error("failed to send message", "error", err)
			continue
		}
		printed = cb.printFrom(out, printed)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(out, "Goodbye!")
	return nil
}

// printFrom writes the assistant side of every message not yet shown; the
// user already sees their own line at the prompt.
func (cb *ChatBot) printFrom(out io.Writer, printed int) int {
	history := cb.session.History()
	for i := printed; i < len(history); i++ {
		if history[i].Role == session.RoleAssistant {
			fmt.Fprint(out, cb.transcript.RenderMessage(history, i, PlainStyle{}))
		}
	}
	return len(history)
}
