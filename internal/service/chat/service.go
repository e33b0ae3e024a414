package chat

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobmate/backend/internal/model/chat"
	"github.com/jobmate/backend/internal/model/profile"
	"github.com/jobmate/backend/internal/observability"
	"github.com/jobmate/backend/internal/service/completion"
	"github.com/jobmate/backend/internal/service/retrieval"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session already has a submission in flight")
	ErrEmptyMessage    = errors.New("message is empty")
)

// Completer is the part of the completion client the chat service uses.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
	Stream(ctx context.Context, req completion.Request) iter.Seq2[string, error]
}

// Recorder persists one exchange.
type Recorder interface {
	Append(ctx context.Context, userMessage, botResponse string) (int64, error)
}

// Config tunes the chat service. Zero values fall back to defaults.
type Config struct {
	HistoryLimit      int
	Temperature       *float32 // DefaultTemperature when nil; zero is a valid setting
	MaxTokens         int
	SummaryMaxTokens  int
	CompletionTimeout time.Duration
	SummaryTimeout    time.Duration
	RetrievalTimeout  time.Duration
	PersistTimeout    time.Duration
	RetrievalLimit    int
}

// DefaultTemperature is the reply temperature used when none is configured.
const DefaultTemperature float32 = 0.7

func (c Config) withDefaults() Config {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 300
	}
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = 300
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = 60 * time.Second
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = 30 * time.Second
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = 5 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = 4
	}
	return c
}

// State is the phase of a session's current submission.
type State int32

const (
	StateIdle State = iota
	StateSummarizing
	StateRetrieving
	StateStreaming
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSummarizing:
		return "summarizing"
	case StateRetrieving:
		return "retrieving"
	case StateStreaming:
		return "streaming"
	case StatePersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

type session struct {
	info   chat.Session
	window *Window
	busy   sync.Mutex
	state  atomic.Int32
}

func (s *session) setState(st State) {
	s.state.Store(int32(st))
}

// Service owns the active sessions and drives submissions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	completer Completer
	retriever retrieval.Retriever
	recorder  Recorder
	cfg       Config
	log       zerolog.Logger
	metrics   *observability.Metrics
}

// Options wires the collaborators of a Service. Retriever may be nil.
type Options struct {
	Completer Completer
	Retriever retrieval.Retriever
	Recorder  Recorder
	Config    Config
	Logger    zerolog.Logger
	Metrics   *observability.Metrics
}

func NewService(opts Options) (*Service, error) {
	if opts.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if opts.Recorder == nil {
		return nil, errors.New("recorder is required")
	}
	r := opts.Retriever
	if r == nil {
		r = retrieval.Empty{}
	}
	return &Service{
		sessions:  make(map[string]*session),
		completer: opts.Completer,
		retriever: r,
		recorder:  opts.Recorder,
		cfg:       opts.Config.withDefaults(),
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// CreateSession opens a session. The profile is optional.
func (s *Service) CreateSession(_ context.Context, p *profile.Profile) (chat.Session, error) {
	var owned *profile.Profile
	if p != nil {
		normalized, err := p.Normalize()
		if err != nil {
			return chat.Session{}, err
		}
		owned = &normalized
	}

	info := chat.Session{
		ID:        uuid.NewString(),
		Profile:   owned,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &session{info: info, window: NewWindow(s.cfg.HistoryLimit)}
	s.mu.Unlock()

	s.metrics.SessionOpened()
	s.log.Info().Str("session", info.ID).Bool("profile", owned != nil).Msg("session created")
	return info, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return sess.info, nil
}

// EndSession drops the session and its window.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.SessionClosed()
	s.log.Info().Str("session", sessionID).Msg("session ended")
	return nil
}

// Window returns a snapshot of the session's conversation window.
func (s *Service) Window(_ context.Context, sessionID string) ([]chat.Turn, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.window.Turns(), nil
}

// State reports what the session is currently doing.
func (s *Service) State(sessionID string) (State, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return StateIdle, err
	}
	return State(sess.state.Load()), nil
}

func (s *Service) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
