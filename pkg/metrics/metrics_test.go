package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/n0ot/huddled/pkg/huddle"
)

type fixedStats huddle.Stats

func (s fixedStats) Stats() huddle.Stats { return huddle.Stats(s) }

func TestHandler(t *testing.T) {
	src := fixedStats{
		InstanceID:      "one",
		BroadcastScope:  "room",
		Uptime:          90 * time.Second,
		NumRooms:        1,
		MaxRooms:        3,
		NumClients:      2,
		MaxClients:      5,
		ActiveGestures:  1,
		SignalsRelayed:  7,
		SignalsDropped:  2,
		GesturesRelayed: 4,
	}

	ts := httptest.NewServer(Handler(src))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get metrics: %s", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Read metrics: %s", err)
	}

	for _, want := range []string{
		"huddled_clients 2",
		"huddled_clients_max 5",
		"huddled_rooms 1",
		"huddled_rooms_max 3",
		"huddled_active_gestures 1",
		"huddled_signals_relayed_total 7",
		"huddled_signals_dropped_total 2",
		"huddled_gestures_relayed_total 4",
		`huddled_uptime_seconds{broadcast_scope="room",instance_id="one"} 90`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Metrics missing %q", want)
		}
	}
}
