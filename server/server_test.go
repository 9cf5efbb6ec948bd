package server

import (
	"bytes"
	"chat-presence/auth"
	"chat-presence/domain"
	"chat-presence/observability"
	"chat-presence/repositories"
	"chat-presence/runtime"
	"chat-presence/services"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t        *testing.T
	server   *httptest.Server
	registry *runtime.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetrics()
	issuer := auth.NewIssuer(log, []byte("test_secret_with_enough_entropy_2026"), clk)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)

	registry := runtime.NewRegistry(0)
	hub := runtime.NewHub(log, registry, runtime.NewPresenceBroadcaster(log, metrics), metrics)
	relay := runtime.NewRelay(log, registry, metrics)

	router := NewRouter(Dependencies{
		Log:         log,
		Gate:        auth.NewGate(log, issuer, users, auth.CookieOptions{}, metrics),
		AuthService: services.NewAuthService(log, users, issuer),
		ChatService: services.NewChatService(log, users, messages, relay, clk),
		Hub:         hub,
		Metrics:     metrics,
		Clock:       clk,
		Socket:      SocketConfig{BufferSize: 16, PingInterval: 5 * time.Second, WriteTimeout: time.Second},
	})
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})
	return &testServer{t: t, server: server, registry: registry}
}

func (s *testServer) do(method, path string, body any, cookie *http.Cookie) (*http.Response, []byte) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	request, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	request.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		request.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(request)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, payload
}

func credentialCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func (s *testServer) signup(fullName, email string) (domain.Identity, *http.Cookie) {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/api/auth/signup", auth.SignupRequest{
		FullName: fullName, Email: email, Password: "ComplexPass123!",
	}, nil)
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(body))
	var identity domain.Identity
	require.NoError(s.t, json.Unmarshal(body, &identity))
	cookie := credentialCookie(resp)
	require.NotNil(s.t, cookie)
	return identity, cookie
}

func (s *testServer) dial(userID string, cookie *http.Cookie) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/socket?userId=" + userID
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.Name+"="+cookie.Value)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readOnlineUsers(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, domain.EventOnlineUsers, f.Event)
	var online []string
	require.NoError(t, json.Unmarshal(f.Data, &online))
	return online
}
