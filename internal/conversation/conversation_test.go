package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ApparelChat/internal/backend"
	"ApparelChat/internal/journal"
	"ApparelChat/internal/session"
)

// fakeClient records requests and answers from a queue of canned results.
// When gate is non-nil every call blocks until the gate is closed.
type fakeClient struct {
	mu       sync.Mutex
	requests []backend.ChatRequest
	replies  []fakeResult
	gate     chan struct{}
}

type fakeResult struct {
	reply *backend.ChatReply
	err   error
}

func (f *fakeClient) Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatReply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var res fakeResult
	if len(f.replies) > 0 {
		res = f.replies[0]
		f.replies = f.replies[1:]
	} else {
		res = fakeResult{reply: &backend.ChatReply{Text: "ok"}}
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.reply, res.err
}

func (f *fakeClient) queue(results ...fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, results...)
}

func (f *fakeClient) sent() []backend.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(ctx context.Context, e journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func newTestSession(t *testing.T, client *fakeClient) *Session {
	t.Helper()
	s, err := New(Opts{Client: client})
	require.NoError(t, err)
	return s
}

func submitAndWait(t *testing.T, s *Session, override string) {
	t.Helper()
	done, err := s.Submit(context.Background(), override)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not complete")
	}
}

func reply(text, thread string) fakeResult {
	return fakeResult{reply: &backend.ChatReply{Text: text, ThreadID: thread}}
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	client := &fakeClient{}
	s := newTestSession(t, client)

	for _, text := range []string{"", "   ", "\n\t"} {
		s.SetInput(text)
		done, err := s.Submit(context.Background(), "")
		assert.ErrorIs(t, err, ErrNothingToSend)
		assert.Nil(t, done)
	}

	assert.Empty(t, s.History())
	assert.False(t, s.Pending())
	assert.False(t, s.CanSubmit())
	assert.Empty(t, client.sent())
}

func TestSubmitAppendsHumanThenAssistant(t *testing.T) {
	client := &fakeClient{}
	client.queue(reply("We have it in blue.", "thread-1"))
	s := newTestSession(t, client)

	s.SetInput("Do you have the linen dress?")
	assert.True(t, s.CanSubmit())
	submitAndWait(t, s, "")

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleHuman, history[0].Role)
	assert.Equal(t, "Do you have the linen dress?", history[0].Content)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
	assert.Equal(t, "We have it in blue.", history[1].Content)
	assert.Equal(t, "", s.Input())
	assert.False(t, s.Pending())
	assert.Equal(t, "thread-1", s.ThreadID())

	req := client.sent()[0]
	assert.Equal(t, "Do you have the linen dress?", req.Query)
	assert.Equal(t, session.ModeStandard, req.Mode)
	assert.Empty(t, req.ThreadID)
	assert.Nil(t, req.Attachment)
}

func TestOverrideTakesPrecedenceOverInput(t *testing.T) {
	client := &fakeClient{}
	s := newTestSession(t, client)

	s.SetInput("draft text")
	submitAndWait(t, s, "Show me the Classic Denim Jacket")

	assert.Equal(t, "Show me the Classic Denim Jacket", client.sent()[0].Query)
	assert.Equal(t, "Show me the Classic Denim Jacket", s.History()[0].Content)
	assert.Equal(t, "", s.Input(), "input buffer is cleared on any accepted submit")
}

func TestAttachmentIsTransferredBeforeReply(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	s := newTestSession(t, client)

	s.SetMode(session.ModeVirtualTryOn)
	s.Attachments().Set(session.Attachment{Name: "me.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")})

	done, err := s.Submit(context.Background(), "")
	require.NoError(t, err)

	// The request has not resolved yet.
	_, attached := s.Attachments().Current()
	assert.False(t, attached)
	assert.True(t, s.Pending())
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, " [Attached: me.jpg]", history[0].Content)

	close(client.gate)
	<-done

	req := client.sent()[0]
	require.NotNil(t, req.Attachment)
	assert.Equal(t, "me.jpg", req.Attachment.Name)
	assert.Equal(t, []byte("jpeg"), req.Attachment.Data)
	assert.Equal(t, session.ModeVirtualTryOn, req.Mode)
	assert.Equal(t, "", req.Query)
}

func TestAttachmentSuffixFollowsText(t *testing.T) {
	client := &fakeClient{}
	s := newTestSession(t, client)
	s.Attachments().Set(session.Attachment{Name: "outfit.png"})

	submitAndWait(t, s, "Try this dress on me")
	assert.Equal(t, "Try this dress on me [Attached: outfit.png]", s.History()[0].Content)
}

func TestFailedRequestDoesNotRestoreAttachment(t *testing.T) {
	client := &fakeClient{}
	client.queue(fakeResult{err: errors.New("connection refused")})
	s := newTestSession(t, client)
	s.Attachments().Set(session.Attachment{Name: "me.jpg"})

	submitAndWait(t, s, "hi")

	_, attached := s.Attachments().Current()
	assert.False(t, attached)
}

func TestSecondSubmitWhilePendingIsRejected(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	s := newTestSession(t, client)

	done, err := s.Submit(context.Background(), "first")
	require.NoError(t, err)

	s.SetInput("second")
	assert.False(t, s.CanSubmit())
	_, err = s.Submit(context.Background(), "")
	assert.ErrorIs(t, err, ErrRequestPending)
	assert.ErrorIs(t, s.Reset(), ErrRequestPending)
	assert.Len(t, s.History(), 1)
	assert.Equal(t, "second", s.Input(), "rejected submit leaves the buffer alone")

	close(client.gate)
	<-done
	assert.Len(t, s.History(), 2)
	assert.Len(t, client.sent(), 1)
	assert.True(t, s.CanSubmit())
}

func TestThreadIDIsEchoedAndOverwritten(t *testing.T) {
	client := &fakeClient{}
	client.queue(
		reply("one", "t-1"),
		reply("two", ""),
		reply("three", "t-2"),
		reply("four", ""),
	)
	s := newTestSession(t, client)

	submitAndWait(t, s, "a")
	submitAndWait(t, s, "b")
	submitAndWait(t, s, "c")
	submitAndWait(t, s, "d")

	sent := client.sent()
	require.Len(t, sent, 4)
	assert.Equal(t, "", sent[0].ThreadID)
	assert.Equal(t, "t-1", sent[1].ThreadID)
	assert.Equal(t, "t-1", sent[2].ThreadID)
	assert.Equal(t, "t-2", sent[3].ThreadID)
	assert.Equal(t, "t-2", s.ThreadID())
}

func TestTransportFailureAppendsConnectionError(t *testing.T) {
	client := &fakeClient{}
	client.queue(reply("hello", "t-1"), fakeResult{err: errors.New("dial tcp: refused")})
	s := newTestSession(t, client)

	submitAndWait(t, s, "a")
	submitAndWait(t, s, "b")

	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, ConnectionErrorReply, history[3].Content)
	assert.Equal(t, session.RoleAssistant, history[3].Role)
	assert.Equal(t, "t-1", s.ThreadID())
	assert.False(t, s.Pending())
	assert.Len(t, client.sent(), 2, "no automatic retry")
}

func TestEmptyReplyBecomesApology(t *testing.T) {
	client := &fakeClient{}
	client.queue(reply("", "t-9"))
	s := newTestSession(t, client)

	submitAndWait(t, s, "anything?")
	history := s.History()
	assert.Equal(t, ApologyReply, history[1].Content)
	assert.Equal(t, "t-9", s.ThreadID())
}

func TestReceiptIsUnwrapped(t *testing.T) {
	client := &fakeClient{}
	client.queue(
		reply(`{"payment_url":"COD_SUCCESS","message":"Order #5 confirmed"}`, ""),
		reply("I like COD_SUCCESS as a word", ""),
	)
	s := newTestSession(t, client)

	submitAndWait(t, s, "confirm my order")
	submitAndWait(t, s, "say it")

	history := s.History()
	assert.Equal(t, "Order #5 confirmed", history[1].Content)
	assert.True(t, history[1].Receipt)
	assert.Equal(t, "I like COD_SUCCESS as a word", history[3].Content)
	assert.False(t, history[3].Receipt)
}

func TestReset(t *testing.T) {
	client := &fakeClient{}
	client.queue(reply("hi", "t-1"))
	s := newTestSession(t, client)
	s.SetMode(session.ModeVirtualTryOn)

	submitAndWait(t, s, "hello")
	s.SetInput("half typed")
	s.Attachments().Set(session.Attachment{Name: "x.png"})

	require.NoError(t, s.Reset())
	assert.Empty(t, s.History())
	assert.Empty(t, s.ThreadID())
	assert.Empty(t, s.Input())
	_, attached := s.Attachments().Current()
	assert.False(t, attached)
	assert.Equal(t, session.ModeVirtualTryOn, s.Mode())

	submitAndWait(t, s, "again")
	assert.Empty(t, client.sent()[1].ThreadID)
}

func TestExchangesAreRecorded(t *testing.T) {
	client := &fakeClient{}
	client.queue(reply("hi", "t-1"), fakeResult{err: errors.New("boom")})
	recorder := &fakeRecorder{}
	s, err := New(Opts{Client: client, Recorder: recorder})
	require.NoError(t, err)

	s.Attachments().Set(session.Attachment{Name: "me.png"})
	submitAndWait(t, s, "first")
	submitAndWait(t, s, "second")

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.entries, 2)
	assert.Equal(t, journal.OutcomeReply, recorder.entries[0].Outcome)
	assert.Equal(t, "me.png", recorder.entries[0].Attachment)
	assert.Equal(t, "t-1", recorder.entries[0].ThreadID)
	assert.Equal(t, journal.OutcomeFailed, recorder.entries[1].Outcome)
	assert.NotEqual(t, recorder.entries[0].ID, recorder.entries[1].ID)
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Opts{})
	assert.Error(t, err)
}

func TestCancelledCallerDoesNotAbortExchange(t *testing.T) {
	client := &fakeClient{gate: make(chan struct{})}
	client.queue(reply("still here", "t-2"))
	s := newTestSession(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := s.Submit(ctx, "hello")
	require.NoError(t, err)
	cancel()
	close(client.gate)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not resolve")
	}

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "still here", history[1].Content)
	assert.Equal(t, "t-2", s.ThreadID())
}

func TestConcurrentClearNeverSendsBlankSubmission(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := newTestSession(t, &fakeClient{})
		s.Attachments().Set(session.Attachment{Name: "me.png"})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Attachments().Clear()
		}()
		done, err := s.Submit(context.Background(), "")
		wg.Wait()

		if err != nil {
			require.ErrorIs(t, err, ErrNothingToSend)
			assert.Empty(t, s.History())
			assert.False(t, s.Pending())
			continue
		}
		<-done
		history := s.History()
		require.NotEmpty(t, history)
		assert.Equal(t, " [Attached: me.png]", history[0].Content)
	}
}
