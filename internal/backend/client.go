package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ChatPath is the single endpoint exposed by the assistant service
const ChatPath = "/chat"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Client talks to the assistant service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL string
	Timeout time.Duration // defaults to 60s
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Meter   metric.Meter
}

// NewClient creates a new assistant service client
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer("backend")
	}
	if opts.Meter == nil {
		opts.Meter = noop.NewMeterProvider().Meter("backend")
	}

	histogram, err := opts.Meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		duration:   histogram,
	}, nil
}

// BaseURL returns the service root the client posts to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat sends one exchange and decodes the reply envelope. A non-2xx status
// is logged but the body is still decoded; the service reports its own
// errors as JSON.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	ctx, span := c.tracer.Start(ctx, "chat_http_request")
	defer span.End()

	start := time.Now()
	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("chat.mode", string(req.Mode)),
		attribute.Bool("chat.has_attachment", req.Attachment != nil),
	)

	body, contentType, err := encodeRequest(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ChatPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Int("http.status_code", resp.StatusCode)))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("assistant service returned non-success status",
			"request_id", requestID, "status", resp.Status)
	}

	reply, err := DecodeReply(respBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, err
	}

	c.logger.Debug("assistant reply received",
		"request_id", requestID,
		"status", resp.StatusCode,
		"thread_id", reply.ThreadID,
		"reply_len", len(reply.Text),
		"duration_ms", time.Since(start).Milliseconds())
	return reply, nil
}

func encodeRequest(req ChatRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	query := req.Query
	if query == "" {
		query = " "
	}
	if err := w.WriteField(FieldQuery, query); err != nil {
		return nil, "", fmt.Errorf("failed to write query field: %w", err)
	}
	if err := w.WriteField(FieldMode, string(req.Mode)); err != nil {
		return nil, "", fmt.Errorf("failed to write mode field: %w", err)
	}
	if req.ThreadID != "" {
		if err := w.WriteField(FieldThreadID, req.ThreadID); err != nil {
			return nil, "", fmt.Errorf("failed to write thread_id field: %w", err)
		}
	}
	if a := req.Attachment; a != nil {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldFile, quoteEscaper.Replace(a.Name)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
