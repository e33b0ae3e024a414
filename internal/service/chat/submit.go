package chat

import (
	"context"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/model/chat"
	"github.com/jobmate/backend/internal/service/completion"
	"github.com/jobmate/backend/internal/service/retrieval"
)

// ErrorNotice is shown to the user, and stored with the partial reply, when
// the model fails mid-answer.
const ErrorNotice = "Sorry, I could not finish that answer. Please try again in a moment."

const summaryTemperature = 0.3

// Fragment is one piece of a streamed reply. Every submission ends with a
// fragment that has Final set; Err is non-nil when the reply is incomplete.
type Fragment struct {
	Text     string
	Err      error
	Final    bool
	RecordID int64
}

type compactionOutcome string

const (
	compactionSkipped    compactionOutcome = "skipped"
	compactionSummarized compactionOutcome = "summarized"
	compactionTruncated  compactionOutcome = "truncated"
	compactionCancelled  compactionOutcome = "cancelled"
)

// Submit sends message to the session and returns the reply as a
// single-use sequence of fragments. The exchange is persisted before the
// final fragment is yielded, including when the model fails or the consumer
// stops early. A second Submit while one is running yields ErrSessionBusy.
func (s *Service) Submit(ctx context.Context, sessionID, message string) iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		sess, err := s.lookup(sessionID)
		if err != nil {
			yield(Fragment{Err: err, Final: true})
			return
		}
		if strings.TrimSpace(message) == "" {
			yield(Fragment{Err: ErrEmptyMessage, Final: true})
			return
		}
		if !sess.busy.TryLock() {
			s.metrics.ObserveSubmission("rejected")
			yield(Fragment{Err: ErrSessionBusy, Final: true})
			return
		}
		defer sess.busy.Unlock()
		defer sess.setState(StateIdle)

		log := s.log.With().Str("session", sessionID).Logger()

		sess.window.Append(chat.RoleUser, message)

		if len(sess.window.Overflow()) > 0 {
			sess.setState(StateSummarizing)
			s.compact(ctx, sess, log)
		}

		var (
			response     strings.Builder
			streamErr    error
			consumerGone bool
		)
		// a cancelled submission goes straight to persistence
		if ctx.Err() == nil {
			sess.setState(StateRetrieving)
			passages := s.retrieve(ctx, message, log)

			turns := sess.window.Turns()
			req := completion.Request{
				System:      buildSystemPrompt(sess.info.Profile, passages),
				Prompt:      message,
				History:     historyMessages(turns[:len(turns)-1]),
				Temperature: *s.cfg.Temperature,
				MaxTokens:   s.cfg.MaxTokens,
				Timeout:     s.cfg.CompletionTimeout,
			}

			sess.setState(StateStreaming)
			for text, err := range s.completer.Stream(ctx, req) {
				if err != nil {
					streamErr = err
					break
				}
				response.WriteString(text)
				if !yield(Fragment{Text: text}) {
					consumerGone = true
					break
				}
			}
		}

		reply := response.String()
		if reply != "" {
			sess.window.Append(chat.RoleAssistant, reply)
		}

		sess.setState(StatePersisting)
		cancelled := consumerGone || ctx.Err() != nil
		stored := reply
		outcome := "completed"
		switch {
		case cancelled:
			outcome = "cancelled"
		case streamErr != nil:
			outcome = "failed"
			stored = withNotice(reply)
			log.Warn().Err(streamErr).Int("partial_len", len(reply)).Msg("completion stream failed")
		}
		id := s.persist(ctx, message, stored, log)
		s.metrics.ObserveSubmission(outcome)

		switch {
		case consumerGone:
			log.Info().Int("partial_len", len(reply)).Msg("consumer stopped, partial reply kept")
		case cancelled:
			yield(Fragment{Err: ctx.Err(), Final: true, RecordID: id})
		case streamErr != nil:
			yield(Fragment{Text: ErrorNotice, Err: streamErr, Final: true, RecordID: id})
		default:
			yield(Fragment{Final: true, RecordID: id})
		}
	}
}

func withNotice(partial string) string {
	if partial == "" {
		return "[" + ErrorNotice + "]"
	}
	return partial + "\n\n[" + ErrorNotice + "]"
}

// compact folds the overflow into the summary, or truncates it when the
// summarizer fails. A cancelled ctx leaves the window as it was.
func (s *Service) compact(ctx context.Context, sess *session, log zerolog.Logger) compactionOutcome {
	overflow := sess.window.Overflow()
	if len(overflow) == 0 {
		return compactionSkipped
	}

	var prior *chat.Turn
	if summary, ok := sess.window.Summary(); ok {
		prior = &summary
	}

	summary, err := s.completer.Complete(ctx, completion.Request{
		System:      summarizeInstruction,
		Prompt:      transcript(prior, overflow),
		Temperature: summaryTemperature,
		MaxTokens:   s.cfg.SummaryMaxTokens,
		Timeout:     s.cfg.SummaryTimeout,
	})
	if ctx.Err() != nil {
		log.Info().Int("overflow", len(overflow)).Msg("submission cancelled during summarization, window kept")
		s.metrics.ObserveCompaction(string(compactionCancelled))
		return compactionCancelled
	}
	summary = strings.TrimSpace(summary)
	if err == nil && summary == "" {
		err = apperr.Errorf(apperr.MalformedOutput, "chat.compact", "summarizer returned no text")
	}
	if err != nil {
		dropped := sess.window.Truncate()
		log.Warn().Err(err).Int("dropped", dropped).Msg("summarization failed, oldest turns truncated")
		s.metrics.ObserveCompaction(string(compactionTruncated))
		return compactionTruncated
	}

	sess.window.Fold(summary)
	log.Debug().Int("folded", len(overflow)).Bool("merged_prior", prior != nil).Msg("history summarized")
	s.metrics.ObserveCompaction(string(compactionSummarized))
	return compactionSummarized
}

func (s *Service) retrieve(ctx context.Context, query string, log zerolog.Logger) []retrieval.Passage {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
	defer cancel()

	passages, err := retrieval.Collect(s.retriever.Retrieve(ctx, query), s.cfg.RetrievalLimit)
	if err != nil {
		log.Warn().Err(err).Msg("retrieval failed, continuing without context")
		s.metrics.ObserveRetrievalFailure("chat")
		return nil
	}
	if len(passages) == 0 {
		log.Debug().Msg("no passages retrieved")
	}
	return passages
}

// persist stores the exchange even when ctx is already cancelled.
func (s *Service) persist(ctx context.Context, message, reply string, log zerolog.Logger) int64 {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()

	id, err := s.recorder.Append(ctx, message, reply)
	if err != nil {
		log.Error().Err(err).Msg("failed to persist exchange")
		return 0
	}
	return id
}
