package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecg-monitor/backend/internal/config"
	"github.com/ecg-monitor/backend/internal/ecg"
)

func testConfig() *config.Config {
	cfg, err := config.Load("testdata/absent.yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

type wireMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading ws message: %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshalling ws message: %v", err)
	}
	return msg
}

func TestClientGetsInitialDataFrame(t *testing.T) {
	session := ecg.NewSession(ecg.DefaultConfig())
	session.AddSample(100, 10.0)
	session.AddSample(200, 10.004)
	b := NewBroadcaster(session, time.Hour, 20*time.Millisecond)
	srv := NewServer(testConfig(), session, b, "simulator")

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	conn := dialWS(t, ts)
	msg := readMessage(t, conn)
	if msg.Type != MsgData {
		t.Fatalf("first frame type = %q, want %q", msg.Type, MsgData)
	}
	var payload DataPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.ECG) != 2 {
		t.Errorf("initial frame has %d samples, want 2", len(payload.ECG))
	}
}

func TestAlertsAreCoalesced(t *testing.T) {
	session := ecg.NewSession(ecg.DefaultConfig())
	b := NewBroadcaster(session, time.Hour, 20*time.Millisecond)
	srv := NewServer(testConfig(), session, b, "simulator")

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	conn := dialWS(t, ts)
	if msg := readMessage(t, conn); msg.Type != MsgData {
		t.Fatalf("expected initial data frame, got %q", msg.Type)
	}

	// Two activations inside the throttle window ride one alert frame.
	b.EventsActivated([]ecg.EventKind{ecg.Bradycardia}, 10.0)
	b.EventsActivated([]ecg.EventKind{ecg.LongQT}, 10.005)

	msg := readMessage(t, conn)
	if msg.Type != MsgAlert {
		t.Fatalf("frame type = %q, want %q", msg.Type, MsgAlert)
	}
	var alert AlertPayload
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		t.Fatal(err)
	}
	want := []string{ecg.Bradycardia.String(), ecg.LongQT.String()}
	if !reflect.DeepEqual(alert.Events, want) {
		t.Errorf("alert events = %v, want %v", alert.Events, want)
	}
	if alert.Ts == 0 {
		t.Error("alert ts not set")
	}
}

func TestNotifyReset(t *testing.T) {
	session := ecg.NewSession(ecg.DefaultConfig())
	b := NewBroadcaster(session, time.Hour, time.Hour)
	srv := NewServer(testConfig(), session, b, "simulator")

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	conn := dialWS(t, ts)
	readMessage(t, conn) // initial data frame

	b.NotifyReset()
	if msg := readMessage(t, conn); msg.Type != MsgReset {
		t.Errorf("frame type = %q, want %q", msg.Type, MsgReset)
	}
}

func TestBuildDataPayloadBoundsWindow(t *testing.T) {
	session := ecg.NewSession(ecg.DefaultConfig())
	for i := 0; i < recentSamples+100; i++ {
		session.AddSample(100, 10.0+float64(i)*0.004)
	}
	payload := BuildDataPayload(session.Snapshot())
	if len(payload.ECG) != recentSamples {
		t.Errorf("payload has %d samples, want %d", len(payload.ECG), recentSamples)
	}
	if payload.BPMHistory == nil {
		t.Error("BPMHistory is nil, want []")
	}
}
