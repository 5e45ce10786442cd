package tickfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSeries/internal/domain/models"
)

func feedServer(t *testing.T, subs chan<- string, frames ...string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub["symbol"]

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientStreamsTicks(t *testing.T) {
	subs := make(chan string, 1)
	srv := feedServer(t, subs,
		`{"type":"ping"}`,
		`not json`,
		`{"type":"tick","data":[{"s":"AAPL","p":101.5,"t":1769508000000},{"s":"AAPL","p":102,"v":4,"t":1769508001000}]}`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(wsURL(srv), []string{"AAPL"}, WithTiming(0, time.Hour))
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "AAPL", <-subs)

	ticks, _ := c.Read(ctx)
	var got []*models.TickMessage
	for len(got) < 2 {
		select {
		case m := <-ticks:
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for ticks")
		}
	}

	assert.Equal(t, 101.5, got[0].Price)
	assert.Nil(t, got[0].Volume)
	require.NotNil(t, got[1].Volume)
	assert.Equal(t, 4.0, *got[1].Volume)
	require.NotNil(t, got[1].Timestamp)
	assert.Equal(t, int64(1769508001000), *got[1].Timestamp)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestClientReportsErrorsAndReconnects(t *testing.T) {
	subs := make(chan string, 2)
	srv := feedServer(t, subs, `{"type":"trade","data":[{"s":"BTC","p":1,"t":1}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(wsURL(srv), []string{"BTC"}, WithTiming(0, time.Hour))
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	<-subs

	ticks, errs := c.Read(ctx)
	<-ticks

	// break the connection underneath the reader
	c.mu.Lock()
	_ = c.conn.Close()
	c.mu.Unlock()

	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "tickfeed read")
	case <-time.After(2 * time.Second):
		t.Fatal("expected read error")
	}

	require.NoError(t, c.Reconnect(ctx))
	assert.Equal(t, "BTC", <-subs)

	select {
	case m := <-ticks:
		assert.Equal(t, "BTC", m.SeriesID)
	case <-time.After(2 * time.Second):
		t.Fatal("no ticks after reconnect")
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New("ws://127.0.0.1:1", []string{"AAPL"})
	assert.ErrorIs(t, c.Subscribe(context.Background()), errNotConnected)
	assert.Error(t, c.Connect(context.Background()))
}
