package realtime

import (
	"clarity/internal/models"
	"clarity/internal/structures"
	"clarity/internal/testutil"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	leads []models.LeadRecord
}

func (s *recordingSink) ApplyNewLead(_ context.Context, lead models.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDecodeLeadEvent(t *testing.T) {
	lead, ok, err := DecodeLeadEvent([]byte(`{"type":"enquiry.created","data":{"_id":"L1","studentName":"Asha","createdAt":"2024-03-05T10:00:00Z","institutionId":"inst-1"}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L1", lead.LeadID)
	assert.Equal(t, "Asha", lead.Name)
	assert.Equal(t, "New", lead.Status)
	assert.Equal(t, "05 Mar 2024", lead.Date)
	assert.Equal(t, "inst-1", lead.InstitutionID)
}

func TestDecodeLeadEvent_OtherTypesIgnored(t *testing.T) {
	_, ok, err := DecodeLeadEvent([]byte(`{"type":"notification.created","data":{"id":"n1"}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeLeadEvent_Malformed(t *testing.T) {
	_, _, err := DecodeLeadEvent([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = DecodeLeadEvent([]byte(`{"type":"enquiry.created","data":null}`))
	assert.Error(t, err)
}

func TestListener_DisabledWithoutURL(t *testing.T) {
	logger := &testutil.MockLogger{}
	l := NewListener(&structures.Config{}, &recordingSink{}, logger)
	l.Start(context.Background())
	assert.False(t, l.Running())
	l.Stop()
}

func TestListener_AppliesPushedLeads(t *testing.T) {
	var gotCookie string
	var cookieMu sync.Mutex
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieMu.Lock()
		gotCookie = r.Header.Get("Cookie")
		cookieMu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"enquiry.created","data":{"_id":"L1","studentName":"Asha"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"lead.created","data":{"id":"L2","name":"Ravi"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &recordingSink{}
	conf := &structures.Config{Api: structures.ApiConfig{RealtimeURL: wsURL(srv), SessionCookie: "sid=abc"}}
	l := NewListener(conf, sink, &testutil.MockLogger{})
	l.Start(context.Background())

	require.Eventually(t, func() bool { return sink.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, l.Running())
	assert.EqualValues(t, 2, l.Applied())

	cookieMu.Lock()
	assert.Equal(t, "sid=abc", gotCookie)
	cookieMu.Unlock()

	l.Stop()
	assert.False(t, l.Running())
}

func TestListener_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	connects := 0
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connects++
		n := connects
		mu.Unlock()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"enquiry.created","data":{"_id":"L`+string(rune('0'+n))+`"}}`))
		if n == 1 {
			_ = conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &recordingSink{}
	conf := &structures.Config{Api: structures.ApiConfig{RealtimeURL: wsURL(srv)}}
	l := NewListener(conf, sink, &testutil.MockLogger{})
	l.Start(context.Background())
	defer l.Stop()

	require.Eventually(t, func() bool { return sink.Len() == 2 }, 5*time.Second, 20*time.Millisecond)
	mu.Lock()
	assert.GreaterOrEqual(t, connects, 2)
	mu.Unlock()
}

func TestBackoff_DoublesAndResetsAfterConnect(t *testing.T) {
	var b backoff
	var waits []time.Duration
	for i := 0; i < 7; i++ {
		waits = append(waits, b.wait(false))
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, maxReconnect, maxReconnect,
	}, waits)

	// A healthy session that later drops reconnects quickly again.
	assert.Equal(t, minReconnect, b.wait(true))
	assert.Equal(t, 2*time.Second, b.wait(false))
}
