package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ApparelChat/internal/attachment"
	"ApparelChat/internal/conversation"
	"ApparelChat/internal/session"
)

// CommandResult tells the surface what a slash command did
type CommandResult struct {
	Output string
	Quit   bool
	Reset  bool            // history was cleared
	Redraw bool            // the latest gallery moved and should be shown again
	Done   <-chan struct{} // non-nil when the command submitted a message
}

// FeaturedLine renders the product ticker
func (cb *ChatBot) FeaturedLine() string {
	items := make([]string, len(cb.config.Catalog.Featured))
	for i, p := range cb.config.Catalog.Featured {
		items[i] = fmt.Sprintf("[%d] %s %s", i+1, p.Name, p.Price)
	}
	return "Featured: " + strings.Join(items, " · ")
}

func (cb *ChatBot) featuredListing() string {
	lines := []string{"Featured products (/featured <n> to ask about one):"}
	for i, p := range cb.config.Catalog.Featured {
		line := fmt.Sprintf("  [%d] %s %s", i+1, p.Name, p.Price)
		if p.ImageURL != "" {
			line += "  " + p.ImageURL
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// SubmitFeatured asks about the n-th (1-based) featured product, the way a
// click on a ticker item does.
func (cb *ChatBot) SubmitFeatured(ctx context.Context, n int) (<-chan struct{}, error) {
	featured := cb.config.Catalog.Featured
	if n < 1 || n > len(featured) {
		return nil, fmt.Errorf("no featured product %d (1-%d)", n, len(featured))
	}
	return cb.session.Submit(ctx, "Show me the "+featured[n-1].Name)
}

// HandleCommand handles special commands
func (cb *ChatBot) HandleCommand(ctx context.Context, cmd string) (CommandResult, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return CommandResult{}, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return CommandResult{Quit: true}, nil

	case "/new-session":
		if err := cb.session.Reset(); err != nil {
			return CommandResult{}, fmt.Errorf("cannot start a new session: %w", err)
		}
		cb.transcript.Reset()
		return CommandResult{Output: "Started a new conversation.", Reset: true}, nil

	case "/mode":
		if len(parts) < 2 {
			return CommandResult{Output: fmt.Sprintf("Mode: %s", cb.session.Mode())}, nil
		}
		mode, ok := session.ParseMode(parts[1])
		if !ok {
			return CommandResult{}, fmt.Errorf("usage: /mode <standard|vto>")
		}
		cb.session.SetMode(mode)
		cb.logger.Info("mode changed", "mode", mode)
		return CommandResult{Output: fmt.Sprintf("Switched to %s mode. %s", mode, cb.session.Placeholder())}, nil

	case "/attach":
		if len(parts) < 2 {
			return CommandResult{}, fmt.Errorf("usage: /attach <path-to-image>")
		}
		path := strings.TrimSpace(strings.TrimPrefix(cmd, parts[0]))
		a, err := attachment.Open(path)
		if err != nil {
			return CommandResult{}, err
		}
		cb.session.Attachments().Set(a)
		cb.logger.Info("attachment selected", "name", a.Name, "content_type", a.ContentType, "size", len(a.Data))
		return CommandResult{Output: fmt.Sprintf("Attached %s (%s). It will be sent with your next message.", a.Name, a.ContentType)}, nil

	case "/detach":
		cb.session.Attachments().Clear()
		return CommandResult{Output: "Attachment removed."}, nil

	case "/featured":
		if len(parts) < 2 {
			return CommandResult{Output: cb.featuredListing()}, nil
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return CommandResult{}, fmt.Errorf("usage: /featured <number>")
		}
		done, err := cb.SubmitFeatured(ctx, n)
		if errors.Is(err, conversation.ErrRequestPending) {
			return CommandResult{Output: "Please wait for the current reply."}, nil
		}
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Done: done}, nil

	case "/next":
		if !cb.transcript.Next() {
			return CommandResult{Output: "No gallery to browse yet."}, nil
		}
		return CommandResult{Redraw: true}, nil

	case "/show":
		if len(parts) < 2 {
			return CommandResult{}, fmt.Errorf("usage: /show <image-number>")
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || !cb.transcript.Show(n) {
			return CommandResult{}, fmt.Errorf("no image %s in the latest gallery", parts[1])
		}
		return CommandResult{Redraw: true}, nil

	case "/stats":
		return cb.stats(ctx)

	case "/help":
		return CommandResult{Output: strings.Join([]string{
			"Available commands:",
			"  /quit, /exit          - Exit the chat",
			"  /new-session          - Start a new conversation",
			"  /mode <standard|vto>  - Switch between shopping and virtual try-on",
			"  /attach <path>        - Attach an image to your next message",
			"  /detach               - Remove the pending attachment",
			"  /featured [n]         - List featured products or ask about one",
			"  /next                 - Next image in the latest gallery",
			"  /show <n>             - Jump to image n in the latest gallery",
			"  /stats                - Exchange statistics for this session",
			"  /help                 - Show this help message",
		}, "\n")}, nil

	default:
		return CommandResult{}, fmt.Errorf("unknown command %s (try /help)", parts[0])
	}
}

func (cb *ChatBot) stats(ctx context.Context) (CommandResult, error) {
	if cb.journal == nil {
		return CommandResult{Output: "Exchange journal is disabled."}, nil
	}
	s, err := cb.journal.Summarize(ctx)
	if err != nil {
		return CommandResult{}, err
	}
	recent, err := cb.journal.Recent(ctx, recentExchanges)
	if err != nil {
		return CommandResult{}, err
	}

	lines := []string{fmt.Sprintf(
		"Exchanges: %d  Failures: %d  Receipts: %d  Threads: %d  Mean latency: %s  Current thread: %s",
		s.Exchanges, s.Failures, s.Receipts, s.Threads, s.MeanLatency.Round(time.Millisecond), orNone(cb.session.ThreadID()),
	)}
	for _, e := range recent {
		lines = append(lines, fmt.Sprintf("  %s  %-8s %-7s %6s  %s",
			e.CreatedAt.Format("15:04:05"), e.Mode, e.Outcome, e.Latency.Round(time.Millisecond), truncate(e.Query, 40)))
	}
	return CommandResult{Output: strings.Join(lines, "\n")}, nil
}

// recentExchanges is how many journal rows /stats lists
const recentExchanges = 5

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
