// Package realtime listens to the backend's push channel and feeds new
// enquiries into the lead cache.
package realtime

import (
	"clarity/internal/api"
	"clarity/internal/models"
	"clarity/internal/providers"
	"clarity/internal/structures"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

const (
	readTimeout      = 90 * time.Second
	minReconnect     = time.Second
	maxReconnect     = 30 * time.Second
	handshakeTimeout = 10 * time.Second
)

// LeadSink receives leads announced by the backend.
type LeadSink interface {
	ApplyNewLead(ctx context.Context, lead models.LeadRecord) error
}

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var leadEvents = map[string]struct{}{
	"enquiry.created": {},
	"enquiry:new":     {},
	"lead.created":    {},
}

type Listener struct {
	url     string
	cookie  string
	sink    LeadSink
	logger  providers.Logger
	dialer  websocket.Dialer
	running atomic.Bool
	applied atomic.Int64

	connMu sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewListener(conf *structures.Config, sink LeadSink, logger providers.Logger) *Listener {
	return &Listener{
		url:    conf.Api.RealtimeURL,
		cookie: conf.Api.SessionCookie,
		sink:   sink,
		logger: logger,
		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout, EnableCompression: true},
	}
}

func (l *Listener) Enabled() bool {
	return l.url != ""
}

func (l *Listener) Running() bool {
	return l.running.Load()
}

// Applied returns how many lead events were handed to the sink.
func (l *Listener) Applied() int64 {
	return l.applied.Load()
}

// Start runs the listener in the background until Stop. It is a no-op when
// no realtime URL is configured or the listener already runs.
func (l *Listener) Start(ctx context.Context) {
	if !l.Enabled() {
		l.logger.Infof(providers.TypeApp, "Realtime channel disabled")
		return
	}
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.running.Store(false)
		l.run(ctx)
	}()
}

func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.closeConn()
	l.wg.Wait()
}

// backoff doubles the reconnect wait up to maxReconnect and starts over after
// a session that got connected.
type backoff struct {
	next time.Duration
}

func (b *backoff) wait(connected bool) time.Duration {
	if connected || b.next == 0 {
		b.next = minReconnect
	}
	d := b.next
	b.next = min(b.next*2, maxReconnect)
	return d
}

func (l *Listener) run(ctx context.Context) {
	var b backoff
	for ctx.Err() == nil {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		delay := b.wait(connected)
		if err != nil {
			l.logger.Warnf(providers.TypeApi, "Realtime channel: %s, reconnecting in %s", err, delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session holds one connection until it fails. connected reports whether the
// dial succeeded.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if l.cookie != "" {
		header.Set("Cookie", l.cookie)
	}
	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
	defer l.closeConn()
	l.logger.Infof(providers.TypeApi, "Realtime channel connected")

	stop := context.AfterFunc(ctx, l.closeConn)
	defer stop()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, nil
			}
			return true, fmt.Errorf("read: %w", err)
		}
		l.handle(ctx, message)
	}
}

func (l *Listener) handle(ctx context.Context, message []byte) {
	lead, ok, err := DecodeLeadEvent(message)
	if err != nil {
		l.logger.Debugf(providers.TypeApi, "Ignoring realtime message: %s", err)
		return
	}
	if !ok {
		return
	}
	if err := l.sink.ApplyNewLead(ctx, lead); err != nil {
		l.logger.Warnf(providers.TypeCache, "Apply realtime lead %s: %s", lead.LeadID, err)
		return
	}
	l.applied.Inc()
}

// DecodeLeadEvent returns the lead carried by a lead-created event. ok is
// false for other event types.
func DecodeLeadEvent(message []byte) (models.LeadRecord, bool, error) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		return models.LeadRecord{}, false, err
	}
	if _, isLead := leadEvents[ev.Type]; !isLead {
		return models.LeadRecord{}, false, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(ev.Data, &obj); err != nil || obj == nil {
		return models.LeadRecord{}, false, fmt.Errorf("event %s has no lead object", ev.Type)
	}
	return api.AdaptLead(obj, ""), true, nil
}

func (l *Listener) closeConn() {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}
