package api

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/recording"
)

type fakeSource struct {
	mu sync.Mutex
	st recording.Status
}

func (f *fakeSource) Status() recording.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeSource) set(st recording.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.State = st
}

type statusPayload struct {
	State     string `json:"state"`
	Mode      string `json:"mode"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	HumanSize string `json:"human_size"`
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeSource{st: recording.Status{
		State:     recording.StateRecording,
		Mode:      "area",
		Path:      "/tmp/rec.mkv",
		Area:      image.Rect(0, 0, 640, 480),
		Size:      2048,
		HumanSize: "2.0 kB",
	}}
	srv := httptest.NewServer(NewStatusServer(src).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var got statusPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, statusPayload{
		State:     "recording",
		Mode:      "area",
		Path:      "/tmp/rec.mkv",
		Size:      2048,
		HumanSize: "2.0 kB",
	}, got)
}

func TestStatusPostNotAllowed(t *testing.T) {
	srv := httptest.NewServer(NewStatusServer(&fakeSource{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusStreamClosesWhenStopped(t *testing.T) {
	src := &fakeSource{st: recording.Status{State: recording.StateRecording}}
	s := NewStatusServer(src)
	s.interval = 10 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first statusPayload
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "recording", first.State)

	src.set(recording.StateStopped)

	var last statusPayload
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var p statusPayload
		if err := conn.ReadJSON(&p); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		last = p
	}
	require.Equal(t, "stopped", last.State)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewStatusServer(&fakeSource{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
