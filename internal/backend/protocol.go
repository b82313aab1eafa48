package backend

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"ApparelChat/internal/session"
)

// Multipart form fields understood by the assistant service
const (
	FieldQuery    = "query"
	FieldMode     = "mode"
	FieldThreadID = "thread_id"
	FieldFile     = "file"
)

// ReceiptMarker is the payment_url value the service uses for a confirmed
// cash-on-delivery order.
const ReceiptMarker = "COD_SUCCESS"

// ChatRequest is one outbound exchange
type ChatRequest struct {
	Query      string
	Mode       session.Mode
	ThreadID   string              // empty until the service has issued one
	Attachment *session.Attachment // optional
}

// ChatReply is the decoded response envelope
type ChatReply struct {
	Text     string // "response", falling back to "content"; may be empty
	ThreadID string
}

// DecodeReply reads the response envelope. The reply text is taken from
// "response" and, when that is missing or empty, from "content". Only a body
// that is not a JSON object is an error.
func DecodeReply(body []byte) (*ChatReply, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to decode response: invalid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("failed to decode response: expected object, got %s", root.Type)
	}

	reply := &ChatReply{
		ThreadID: stringField(root, "thread_id"),
	}
	if text := stringField(root, "response"); text != "" {
		reply.Text = text
	} else {
		reply.Text = stringField(root, "content")
	}
	return reply, nil
}

// UnwrapReceipt replaces a structured cash-on-delivery confirmation with its
// human-readable message. Anything else, including malformed JSON that happens
// to mention the marker, is returned unchanged with ok == false.
func UnwrapReceipt(text string) (string, bool) {
	if !strings.Contains(text, ReceiptMarker) {
		return text, false
	}
	if !gjson.Valid(text) {
		return text, false
	}
	payload := gjson.Parse(text)
	if !payload.IsObject() {
		return text, false
	}
	if stringField(payload, "payment_url") != ReceiptMarker {
		return text, false
	}
	return payload.Get("message").String(), true
}

func stringField(obj gjson.Result, name string) string {
	v := obj.Get(name)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}
