package gin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/utils/middleware"
)

type fakeStream struct {
	mu        sync.Mutex
	observers []generation.Observer
	snapshots []generation.Snapshot
}

func (s *fakeStream) Subscribe(obs generation.Observer) func() {
	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()
	return func() {}
}

func (s *fakeStream) Snapshots(string) []generation.Snapshot {
	return s.snapshots
}

func (s *fakeStream) emit(snap generation.Snapshot) {
	s.mu.Lock()
	obs := append([]generation.Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range obs {
		o(snap)
	}
}

func (s *fakeStream) subscribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

type countingGauge struct {
	n atomic.Int64
}

func (g *countingGauge) Inc() { g.n.Add(1) }
func (g *countingGauge) Dec() { g.n.Add(-1) }

func TestStream(t *testing.T) {
	stream := &fakeStream{snapshots: []generation.Snapshot{
		{UserID: "u1", Feature: model.FeatureEbook, State: generation.StateSuccess},
	}}
	gauge := &countingGauge{}
	handler := NewStreamHandler(stream, gauge, []string{"https://app.elevare.com.br"}, zap.NewNop())

	r := gin.New()
	api := r.Group("")
	api.Use(middleware.RequireAuth(fakeValidator{}))
	handler.RegisterRoutes(api)

	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/generations/ws?access_token=user-token"

	t.Run("rejects foreign origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("streams own transitions", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://app.elevare.com.br"}}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		defer conn.Close()

		var first StreamMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, "sync", first.Type)
		require.Len(t, first.States, 1)
		assert.Equal(t, generation.StateSuccess, first.States[0].State)

		require.Eventually(t, func() bool { return stream.subscribed() > 0 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, int64(1), gauge.n.Load())

		stream.emit(generation.Snapshot{UserID: "someone-else", Feature: model.FeatureAd, State: generation.StateGenerating})
		stream.emit(generation.Snapshot{UserID: "u1", Feature: model.FeatureVideo, State: generation.StateGenerating})

		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "state", msg.Type)
		require.NotNil(t, msg.Snapshot)
		assert.Equal(t, model.FeatureVideo, msg.Snapshot.Feature)
	})
}
