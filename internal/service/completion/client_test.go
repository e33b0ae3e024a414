package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/jobmate/backend/internal/apperr"
)

type fakeModel struct {
	reply     string
	chunks    []string
	streamErr error // sent after chunks
	err       error
	block     bool

	gotMessages []*schema.Message
	gotOptions  *model.Options
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.gotMessages = input
	f.gotOptions = model.GetCommonOptions(&model.Options{}, opts...)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.gotMessages = input
	f.gotOptions = model.GetCommonOptions(&model.Options{}, opts...)
	if f.err != nil {
		return nil, f.err
	}
	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range f.chunks {
			if sw.Send(schema.AssistantMessage(c, nil), nil) {
				return
			}
		}
		if f.streamErr != nil {
			sw.Send(nil, f.streamErr)
		}
	}()
	return sr, nil
}

func newTestClient(t *testing.T, m model.BaseChatModel, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(m, Options{Timeout: timeout})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestCompleteFormatsMessagesAndOptions(t *testing.T) {
	fake := &fakeModel{reply: "Try backend roles."}
	client := newTestClient(t, fake, 0)

	got, err := client.Complete(context.Background(), Request{
		System:      "You are a job assistant.",
		Prompt:      "What should I apply for?",
		History:     []*schema.Message{schema.UserMessage("hi"), schema.AssistantMessage("hello", nil)},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Try backend roles." {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(fake.gotMessages) != 4 {
		t.Fatalf("expected system+2 history+user, got %d messages", len(fake.gotMessages))
	}
	if fake.gotMessages[0].Role != schema.System || fake.gotMessages[3].Content != "What should I apply for?" {
		t.Fatalf("unexpected message layout: %+v", fake.gotMessages)
	}
	if fake.gotOptions.Temperature == nil || *fake.gotOptions.Temperature != 0.3 {
		t.Fatalf("temperature option not forwarded: %+v", fake.gotOptions)
	}
	if fake.gotOptions.MaxTokens == nil || *fake.gotOptions.MaxTokens != 300 {
		t.Fatalf("max tokens option not forwarded: %+v", fake.gotOptions)
	}
}

func TestCompleteValidatesRequest(t *testing.T) {
	client := newTestClient(t, &fakeModel{}, 0)
	cases := []Request{
		{Prompt: "", Temperature: 0.5, MaxTokens: 10},
		{Prompt: "x", Temperature: 2.5, MaxTokens: 10},
		{Prompt: "x", Temperature: -0.1, MaxTokens: 10},
		{Prompt: "x", Temperature: 0.5, MaxTokens: 0},
	}
	for i, req := range cases {
		if _, err := client.Complete(context.Background(), req); !errors.Is(err, apperr.InvalidRequest) {
			t.Fatalf("case %d: expected InvalidRequest, got %v", i, err)
		}
	}
}

func TestCompleteWrapsModelFailure(t *testing.T) {
	client := newTestClient(t, &fakeModel{err: errors.New("connection refused")}, 0)

	_, err := client.Complete(context.Background(), Request{Prompt: "hi", Temperature: 0.7, MaxTokens: 10})
	if !errors.Is(err, apperr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestCompleteAppliesTimeout(t *testing.T) {
	client := newTestClient(t, &fakeModel{block: true}, time.Hour)

	start := time.Now()
	_, err := client.Complete(context.Background(), Request{Prompt: "hi", Temperature: 0.7, MaxTokens: 10, Timeout: 20 * time.Millisecond})
	if !errors.Is(err, apperr.ServiceUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout wrapped as ServiceUnavailable, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("request timeout was not applied")
	}
}

func TestStreamYieldsFragmentsInOrder(t *testing.T) {
	client := newTestClient(t, &fakeModel{chunks: []string{"Hel", "", "lo", " there"}}, 0)

	var got []string
	for text, err := range client.Stream(context.Background(), Request{Prompt: "hi", Temperature: 0.7, MaxTokens: 10}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, text)
	}
	if len(got) != 3 || got[0] != "Hel" || got[1] != "lo" || got[2] != " there" {
		t.Fatalf("unexpected fragments: %q", got)
	}
}

func TestStreamReportsMidStreamFailure(t *testing.T) {
	client := newTestClient(t, &fakeModel{chunks: []string{"Hel", "lo"}, streamErr: errors.New("reset by peer")}, 0)

	var (
		text    string
		lastErr error
	)
	for frag, err := range client.Stream(context.Background(), Request{Prompt: "hi", Temperature: 0.7, MaxTokens: 10}) {
		if err != nil {
			lastErr = err
			break
		}
		text += frag
	}
	if text != "Hello" {
		t.Fatalf("expected partial text Hello, got %q", text)
	}
	if !errors.Is(lastErr, apperr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", lastErr)
	}
}

func TestStreamStopsWhenConsumerBreaks(t *testing.T) {
	client := newTestClient(t, &fakeModel{chunks: []string{"a", "b", "c"}}, 0)

	count := 0
	for range client.Stream(context.Background(), Request{Prompt: "hi", Temperature: 0.7, MaxTokens: 10}) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected exactly one fragment, got %d", count)
	}
}

func TestStreamRejectsInvalidRequest(t *testing.T) {
	client := newTestClient(t, &fakeModel{}, 0)

	for _, err := range client.Stream(context.Background(), Request{Prompt: "hi", Temperature: 3, MaxTokens: 10}) {
		if !errors.Is(err, apperr.InvalidRequest) {
			t.Fatalf("expected InvalidRequest, got %v", err)
		}
		return
	}
	t.Fatal("expected one error")
}
