// Package completion wraps an eino chat model behind a small text-in,
// text-out API with decoding parameters, a mandatory timeout and typed
// failures.
package completion

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/observability"
)

// DefaultTimeout bounds a call when neither the request nor the client sets one.
const DefaultTimeout = 60 * time.Second

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	History     []*schema.Message
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func (r Request) validate(op string) error {
	switch {
	case strings.TrimSpace(r.Prompt) == "":
		return apperr.Errorf(apperr.InvalidRequest, op, "prompt is empty")
	case r.Temperature < 0 || r.Temperature > 2:
		return apperr.Errorf(apperr.InvalidRequest, op, "temperature %.2f outside [0,2]", r.Temperature)
	case r.MaxTokens <= 0:
		return apperr.Errorf(apperr.InvalidRequest, op, "max tokens must be positive, got %d", r.MaxTokens)
	}
	return nil
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Client issues completions against a chat model. It never retries.
type Client struct {
	model    model.BaseChatModel
	template prompt.ChatTemplate
	timeout  time.Duration
	log      zerolog.Logger
	metrics  *observability.Metrics
}

func NewClient(chatModel model.BaseChatModel, opts Options) (*Client, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		model: chatModel,
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		),
		timeout: timeout,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Complete blocks until the model returns the full response.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	const op = "completion.Complete"
	if err := req.validate(op); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(req))
	defer cancel()

	messages, err := c.format(ctx, req)
	if err != nil {
		return "", apperr.New(apperr.InvalidRequest, op, err)
	}

	start := time.Now()
	resp, err := c.generate(ctx, messages, req)
	c.metrics.ObserveCompletion("generate", time.Since(start), err)
	if err != nil {
		c.log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("completion failed")
		return "", apperr.New(apperr.ServiceUnavailable, op, err)
	}
	if resp == nil {
		return "", apperr.Errorf(apperr.ServiceUnavailable, op, "model returned no message")
	}
	return resp.Content, nil
}

// Stream yields response fragments in generation order. Iteration stops after
// the first error; breaking out of the loop releases the underlying stream.
func (c *Client) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	const op = "completion.Stream"
	return func(yield func(string, error) bool) {
		if err := req.validate(op); err != nil {
			yield("", err)
			return
		}

		ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(req))
		defer cancel()

		messages, err := c.format(ctx, req)
		if err != nil {
			yield("", apperr.New(apperr.InvalidRequest, op, err))
			return
		}

		start := time.Now()
		stream, err := c.stream(ctx, messages, req)
		if err != nil {
			c.metrics.ObserveCompletion("stream", time.Since(start), err)
			yield("", apperr.New(apperr.ServiceUnavailable, op, err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				c.metrics.ObserveCompletion("stream", time.Since(start), nil)
				return
			}
			if err != nil {
				c.metrics.ObserveCompletion("stream", time.Since(start), err)
				c.log.Warn().Err(err).Msg("completion stream interrupted")
				yield("", apperr.New(apperr.ServiceUnavailable, op, err))
				return
			}
			if chunk == nil || chunk.Content == "" {
				continue
			}
			if !yield(chunk.Content, nil) {
				return
			}
		}
	}
}

func (c *Client) timeoutFor(req Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.timeout
}

func (c *Client) format(ctx context.Context, req Request) ([]*schema.Message, error) {
	return c.template.Format(ctx, map[string]any{
		"system":  req.System,
		"history": req.History,
		"query":   req.Prompt,
	})
}

func options(req Request) []model.Option {
	return []model.Option{
		model.WithTemperature(req.Temperature),
		model.WithMaxTokens(req.MaxTokens),
	}
}

// generate and stream convert panics from the model into errors.
func (c *Client) generate(ctx context.Context, messages []*schema.Message, req Request) (resp *schema.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return c.model.Generate(ctx, messages, options(req)...)
}

func (c *Client) stream(ctx context.Context, messages []*schema.Message, req Request) (sr *schema.StreamReader[*schema.Message], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return c.model.Stream(ctx, messages, options(req)...)
}

type panicValue struct{ v any }

func (p panicValue) Error() string {
	if err, ok := p.v.(error); ok {
		return "model panic: " + err.Error()
	}
	if s, ok := p.v.(string); ok {
		return "model panic: " + s
	}
	return "model panic"
}

func panicError(v any) error {
	return panicValue{v: v}
}
