package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pos_console/internal/config"
	"pos_console/internal/posapi"
	"pos_console/internal/session"

	"github.com/go-stomp/stomp/v3"
	"go.uber.org/zap"
)

const (
	TopicNotifications = "/topic/notificaciones"
	TopicDashboard     = "/topic/dashboard"
)

// ErrSessionEnded ends a subscription whose session was invalidated or whose token
// expired, under the disconnect expiry policy.
var ErrSessionEnded = errors.New("push channel closed: session ended")

var errSubscriptionClosed = errors.New("stomp subscription closed")

// Event is one decoded push message. Exactly one of Notification and Stats is set.
type Event struct {
	Topic        string                 `json:"topic"`
	Notification *posapi.Notification   `json:"notification,omitempty"`
	Stats        *posapi.DashboardStats `json:"stats,omitempty"`
}

type Options struct {
	URL            string
	ReconnectDelay time.Duration
	HeartBeat      time.Duration
	ExpiryPolicy   config.ExpiryPolicy
	Dial           DialFunc
}

type Listener struct {
	opts    Options
	session *session.Session
	logger  *zap.Logger
	now     func() time.Time
}

func New(opts Options, sess *session.Session, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Dial == nil {
		opts.Dial = DialWebSocket
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.ExpiryPolicy == "" {
		opts.ExpiryPolicy = config.ExpiryDisconnect
	}
	return &Listener{
		opts:    opts,
		session: sess,
		logger:  logger.Named("notify"),
		now:     time.Now,
	}
}

func NewFromConfig(cfg config.Config, sess *session.Session, logger *zap.Logger) (*Listener, error) {
	url, err := cfg.WebSocketURL()
	if err != nil {
		return nil, err
	}
	return New(Options{
		URL:            url,
		ReconnectDelay: cfg.ReconnectDelay,
		HeartBeat:      cfg.HeartBeat,
		ExpiryPolicy:   cfg.ExpiryPolicy(),
	}, sess, logger), nil
}

// Connect starts the push channel in the background and returns its subscription.
// The channel reconnects after every transport loss until the subscription is closed,
// ctx is cancelled or, under the disconnect policy, the session ends.
func (l *Listener) Connect(ctx context.Context) (*Subscription, error) {
	if !l.session.IsAuthenticated() {
		return nil, session.ErrNotAuthenticated
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan Event, 32),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	removeHook := func() {}
	if l.opts.ExpiryPolicy == config.ExpiryDisconnect {
		removeHook = l.session.OnInvalidate(func(reason session.Reason) {
			l.logger.Info("closing push channel", zap.String("reason", string(reason)))
			sub.fail(ErrSessionEnded)
		})
	}

	go func() {
		defer close(sub.done)
		defer close(sub.events)
		defer removeHook()
		l.run(ctx, sub)
	}()
	return sub, nil
}

func (l *Listener) run(ctx context.Context, sub *Subscription) {
	for attempt := 1; ; attempt++ {
		token, err := l.token()
		switch {
		case err != nil:
			sub.fail(err)
			return
		case token != "":
			err = l.serve(ctx, sub, token)
		default:
			err = session.ErrNotAuthenticated
		}
		if ctx.Err() != nil {
			l.logger.Info("push channel closed")
			return
		}

		l.logger.Warn("push channel lost",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", l.opts.ReconnectDelay),
			zap.Error(err),
		)
		timer := time.NewTimer(l.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// token is read at every (re)connect. Under the disconnect policy a missing or expired
// token ends the subscription.
func (l *Listener) token() (string, error) {
	token := l.session.Token()
	if l.opts.ExpiryPolicy != config.ExpiryDisconnect {
		return token, nil
	}
	if token == "" {
		return "", ErrSessionEnded
	}
	if claims, err := session.ParseClaims(token); err == nil && claims.Expired(l.now()) {
		return "", fmt.Errorf("%w: token expired at %s", ErrSessionEnded, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return token, nil
}

// serve runs one connection until it is lost or ctx ends.
func (l *Listener) serve(ctx context.Context, sub *Subscription, token string) error {
	conn, err := l.opts.Dial(ctx, l.opts.URL)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	stompConn, err := stomp.Connect(conn,
		stomp.ConnOpt.Header("Authorization", "Bearer "+token),
		stomp.ConnOpt.HeartBeat(l.opts.HeartBeat, l.opts.HeartBeat),
	)
	if err != nil {
		return fmt.Errorf("stomp connect: %w", err)
	}

	notifications, err := stompConn.Subscribe(TopicNotifications, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicNotifications, err)
	}
	stats, err := stompConn.Subscribe(TopicDashboard, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicDashboard, err)
	}
	l.logger.Info("push channel connected", zap.String("url", l.opts.URL))

	for {
		var msg *stomp.Message
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok = <-notifications.C:
		case msg, ok = <-stats.C:
		}
		if !ok {
			return errSubscriptionClosed
		}
		if msg.Err != nil {
			return msg.Err
		}
		ev, err := decode(msg.Destination, msg.Body)
		if err != nil {
			l.logger.Warn("push message dropped", zap.String("topic", msg.Destination), zap.Error(err))
			continue
		}
		select {
		case sub.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decode(topic string, body []byte) (Event, error) {
	switch topic {
	case TopicNotifications:
		var n posapi.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return Event{}, fmt.Errorf("decode notification: %w", err)
		}
		return Event{Topic: topic, Notification: &n}, nil
	case TopicDashboard:
		var s posapi.DashboardStats
		if err := json.Unmarshal(body, &s); err != nil {
			return Event{}, fmt.Errorf("decode dashboard stats: %w", err)
		}
		return Event{Topic: topic, Stats: &s}, nil
	default:
		return Event{}, fmt.Errorf("unexpected topic %q", topic)
	}
}

// Subscription is a running push channel.
type Subscription struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Events is closed once the channel has stopped.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err is why the channel stopped on its own, or nil after Close or cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the channel and waits for it. It may be called more than once.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cancel()
}
