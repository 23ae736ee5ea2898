package webui

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"imagestream/imagegen"
	"imagestream/logging"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewFromZap(zaptest.NewLogger(t))
}

// transportFunc adapts a function to imagegen.Transport.
type transportFunc func(ctx context.Context, p imagegen.Payload) (json.RawMessage, error)

func (f transportFunc) Post(ctx context.Context, p imagegen.Payload) (json.RawMessage, error) {
	return f(ctx, p)
}

// urlResponse returns a transport answering every request with n URL images.
func urlResponse(n int) transportFunc {
	return func(ctx context.Context, p imagegen.Payload) (json.RawMessage, error) {
		data := make([]map[string]string, n)
		for i := range data {
			data[i] = map[string]string{"url": "https://img.example/" + string(rune('a'+i)) + ".png"}
		}
		return json.Marshal(map[string]interface{}{"data": data})
	}
}

func newTestGenerator(t *testing.T, transport imagegen.Transport, opts ...imagegen.Option) *imagegen.Generator {
	t.Helper()
	gen, err := imagegen.NewGenerator(transport, newTestLogger(t), imagegen.GeneratorConfig{
		BackfillMaxConcurrent: 2,
	}, opts...)
	require.NoError(t, err)
	return gen
}

// wsEnvelope is a decoded WSMessage with its payload left raw.
type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + PathWebSocket
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env wsEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

// readUntil collects messages up to and including the first of type stop.
func readUntil(t *testing.T, conn *websocket.Conn, stop string) []wsEnvelope {
	t.Helper()
	var out []wsEnvelope
	for {
		env := readMessage(t, conn)
		out = append(out, env)
		if env.Type == stop {
			return out
		}
	}
}

func decodeData[T any](t *testing.T, env wsEnvelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func typesOf(envs []wsEnvelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}
