package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/n0ot/huddled/pkg/huddle"
)

var log = logrus.New()

func init() {
	log.Out = os.Stderr
	log.Level = logrus.DebugLevel
	wrongPasswordDelay = 0
}

// wireMessage holds any message the server sends.
type wireMessage struct {
	Type    string              `json:"type"`
	ID      huddle.ConnectionID `json:"id"`
	PeerID  huddle.ConnectionID `json:"peerId"`
	Data    json.RawMessage     `json:"data"`
	Gesture string              `json:"gesture"`
	Error   string              `json:"error"`
}

// newTestServer starts a server; opts may change it before it starts.
func newTestServer(t *testing.T, opts ...func(*Server)) (*Server, *httptest.Server) {
	t.Helper()
	srv := &Server{
		TimeBetweenPings:  time.Second,
		PingsUntilTimeout: 3,
		Log:               log,
		Huddle:            huddle.New(log, huddle.Options{MOTD: "Welcome"}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// dial connects a client, and reads its connected message.
func dial(t *testing.T, ts *httptest.Server) (*websocket.Conn, huddle.ConnectionID) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("Dial: %s", err)
	}
	t.Cleanup(func() { conn.Close() })

	msg := read(t, conn)
	if msg.Type != huddle.TypeConnected || msg.ID == "" {
		t.Fatalf("Wanted a connected message, got %+v", msg)
	}
	return conn, msg.ID
}

func read(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Read: %s", err)
	}
	return msg
}

func write(t *testing.T, conn *websocket.Conn, format string, args ...interface{}) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(format, args...))); err != nil {
		t.Fatalf("Write: %s", err)
	}
}

// waitForMembers waits until room has exactly the given members.
func waitForMembers(t *testing.T, h *huddle.Huddle, room string, want []huddle.ConnectionID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := h.Members(room)
		if len(got) == 0 {
			got = nil
		}
		if reflect.DeepEqual(got, want) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Wanted %s members %v, got %v", room, want, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRoomConversation(t *testing.T) {
	srv, ts := newTestServer(t)
	a, aID := dial(t, ts)
	b, bID := dial(t, ts)

	write(t, a, `{"type":"join-room","room":"r1"}`)
	waitForMembers(t, srv.Huddle, "r1", []huddle.ConnectionID{aID})
	write(t, b, `{"type":"join-room","room":"r1"}`)

	if msg := read(t, a); msg.Type != huddle.TypeJoinedRoom || msg.PeerID != bID {
		t.Errorf("Wanted joined-room for %s, got %+v", bID, msg)
	}

	offer := `{"type":"offer","sdp":"offer1"}`
	write(t, a, `{"type":"signal","peerId":%q,"data":%s}`, bID, offer)
	msg := read(t, b)
	if msg.Type != huddle.TypeSignal || msg.PeerID != aID || string(msg.Data) != offer {
		t.Errorf("Wanted signal %s from %s, got %+v", offer, aID, msg)
	}

	write(t, a, `{"type":"gesture","gesture":"Thumb_Up"}`)
	if msg := read(t, b); msg.Type != huddle.TypeGesture || msg.PeerID != aID || msg.Gesture != "Thumb_Up" {
		t.Errorf("Wanted Thumb_Up from %s, got %+v", aID, msg)
	}

	write(t, b, `{"type":"thumbsUp"}`)
	if msg := read(t, a); msg.Type != huddle.TypeGesture || msg.PeerID != bID || msg.Gesture != "Thumb_Up" {
		t.Errorf("Wanted Thumb_Up from %s, got %+v", bID, msg)
	}

	write(t, a, `{"type":"clearGesture"}`)
	if msg := read(t, b); msg.Type != huddle.TypeClearGesture || msg.PeerID != aID {
		t.Errorf("Wanted clear_gesture from %s, got %+v", aID, msg)
	}
	write(t, b, `{"type":"clear_gesture"}`)
	if msg := read(t, a); msg.Type != huddle.TypeClearGesture || msg.PeerID != bID {
		t.Errorf("Wanted clear_gesture from %s, got %+v", bID, msg)
	}

	a.Close()
	if msg := read(t, b); msg.Type != huddle.TypePeerDisconnected || msg.PeerID != aID {
		t.Errorf("Wanted peer-disconnected for %s, got %+v", aID, msg)
	}
	waitForMembers(t, srv.Huddle, "r1", []huddle.ConnectionID{bID})
}

func TestBadMessages(t *testing.T) {
	_, ts := newTestServer(t)
	a, _ := dial(t, ts)
	b, bID := dial(t, ts)

	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"not json", `hello`, "invalid message"},
		{"no type", `{"room":"r1"}`, "no type specified"},
		{"unknown type", `{"type":"bogus"}`, "unknown message type: bogus"},
		{"wrong field type", `{"type":"join-room","room":7}`, "invalid join-room message"},
		{"empty room", `{"type":"join-room","room":""}`, huddle.ErrEmptyRoomName.Error()},
		{"empty gesture", `{"type":"gesture","gesture":""}`, huddle.ErrEmptyGesture.Error()},
		{"no peer", `{"type":"signal","data":{}}`, "no peerId specified"},
		{"no data", fmt.Sprintf(`{"type":"signal","peerId":%q}`, bID), "no data specified"},
	}
	for _, tt := range tests {
		write(t, a, "%s", tt.msg)
		msg := read(t, a)
		if msg.Type != "error" || msg.Error != tt.want {
			t.Errorf("%s: wanted error %q, got %+v", tt.name, tt.want, msg)
		}
	}

	// The connection survives bad messages.
	write(t, a, `{"type":"signal","peerId":%q,"data":"still here"}`, bID)
	if msg := read(t, b); msg.Type != huddle.TypeSignal || string(msg.Data) != `"still here"` {
		t.Errorf("Wanted signal after errors, got %+v", msg)
	}
}

func TestSignalUnknownPeerIsSilent(t *testing.T) {
	srv, ts := newTestServer(t)
	a, _ := dial(t, ts)

	write(t, a, `{"type":"signal","peerId":"nobody","data":{}}`)
	write(t, a, `{"type":"bogus"}`)

	// The first reply is for the bogus message; nothing came back for the signal.
	if msg := read(t, a); msg.Type != "error" || msg.Error != "unknown message type: bogus" {
		t.Errorf("Wanted only the error for bogus, got %+v", msg)
	}
	if got := srv.Huddle.Stats().SignalsDropped; got != 1 {
		t.Errorf("Wanted 1 dropped signal, got %d", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	_, ts := newTestServer(t, func(srv *Server) {
		srv.AllowedOrigins = []string{"https://good.example"}
	})

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err == nil {
		t.Fatal("Connection from disallowed origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Wanted 403, got %v", resp)
	}

	header.Set("Origin", "https://GOOD.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err != nil {
		t.Fatalf("Connection from allowed origin failed: %s", err)
	}
	conn.Close()
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get: %s", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Wanted 200, got %d", resp.StatusCode)
	}
}

func getStats(t *testing.T, ts *httptest.Server, password string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/stats", nil)
	if err != nil {
		t.Fatal(err)
	}
	if password != "" {
		req.SetBasicAuth("", password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Get stats: %s", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatsDisabled(t *testing.T) {
	_, ts := newTestServer(t)
	if resp := getStats(t, ts, "secret-password"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Wanted 404, got %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, func(srv *Server) {
		srv.StatsPassword = string(hash)
	})
	dial(t, ts)

	if resp := getStats(t, ts, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("No password: wanted 401, got %d", resp.StatusCode)
	}
	if resp := getStats(t, ts, "wrong-password"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Wrong password: wanted 401, got %d", resp.StatusCode)
	}

	resp := getStats(t, ts, "secret-password")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Right password: wanted 200, got %d", resp.StatusCode)
	}
	var stats huddle.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Decode stats: %s", err)
	}
	if stats.NumClients != 1 || stats.BroadcastScope != "room" {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestServeShutsDown(t *testing.T) {
	srv := &Server{
		Log:    log,
		Huddle: huddle.New(log, huddle.Options{}),
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, listener)
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+listener.Addr().String()+"/ws", nil)
	if err != nil {
		cancel()
		t.Fatalf("Dial: %s", err)
	}
	defer conn.Close()
	read(t, conn) // connected

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve didn't return after shutdown")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Wanted a normal close, got %v", err)
	}
	if got := srv.Huddle.Stats().NumClients; got != 0 {
		t.Errorf("Wanted no clients after shutdown, got %d", got)
	}
}

func TestPongWait(t *testing.T) {
	tests := []struct {
		between time.Duration
		pings   int
		want    time.Duration
	}{
		{0, 3, 0},
		{time.Second, 0, 0},
		{time.Second, 2, 3 * time.Second},
	}
	for _, tt := range tests {
		srv := &Server{TimeBetweenPings: tt.between, PingsUntilTimeout: tt.pings}
		if got := srv.pongWait(); got != tt.want {
			t.Errorf("pongWait() with %s, %d: wanted %s, got %s", tt.between, tt.pings, tt.want, got)
		}
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("Short password was accepted")
	}
	if _, err := HashPassword(strings.Repeat("x", MaxPasswordLength+1)); err == nil {
		t.Error("Long password was accepted")
	}
	hash, err := HashPassword("long enough")
	if err != nil {
		t.Fatalf("HashPassword: %s", err)
	}
	if !VerifyPassword(hash, "long enough") {
		t.Error("Password didn't verify against its hash")
	}
	if VerifyPassword(hash, "something else") {
		t.Error("Wrong password verified")
	}
}
