package robot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/teslashibe/reachy-mini-pomodoro/pkg/pose"
)

type daemonRecorder struct {
	mu      sync.Mutex
	targets []moveTarget
	volumes []int
}

func newTestDaemon(t *testing.T, rec *daemonRecorder) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/move/set_target", func(w http.ResponseWriter, r *http.Request) {
		var mt moveTarget
		if err := json.NewDecoder(r.Body).Decode(&mt); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec.mu.Lock()
		rec.targets = append(rec.targets, mt)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/daemon/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"state": "running"})
	})
	mux.HandleFunc("/api/volume/set", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Volume int `json:"volume"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		rec.mu.Lock()
		rec.volumes = append(rec.volumes, body.Volume)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Client{baseURL: srv.URL}
}

func TestSetTargetPostsBatchedPayload(t *testing.T) {
	rec := &daemonRecorder{}
	c := newTestDaemon(t, rec)

	head := pose.New(10, 0, 30, 0, 0, 5)
	if err := c.SetTarget(head, [2]float64{0.2, -0.2}, 0.4); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.targets) != 1 {
		t.Fatalf("targets: got %d, want 1", len(rec.targets))
	}
	got := rec.targets[0]
	if got.TargetHeadPose != [4][4]float64(head) {
		t.Error("head pose altered in transit")
	}
	if got.TargetAntennas != [2]float64{0.2, -0.2} {
		t.Errorf("antennas: %v", got.TargetAntennas)
	}
	if got.TargetBodyYaw != 0.4 {
		t.Errorf("body yaw: %v", got.TargetBodyYaw)
	}
	if got.Duration <= 0 {
		t.Errorf("duration: %v", got.Duration)
	}
}

func TestSetTargetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "daemon busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := &Client{baseURL: srv.URL}

	if err := c.SetTarget(pose.Identity(), [2]float64{}, 0); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestSetTargetUnreachableDaemon(t *testing.T) {
	c := &Client{baseURL: "http://127.0.0.1:1"}
	if err := c.SetTarget(pose.Identity(), [2]float64{}, 0); err == nil {
		t.Error("expected error for unreachable daemon")
	}
}

func TestDaemonStatus(t *testing.T) {
	rec := &daemonRecorder{}
	c := newTestDaemon(t, rec)

	state, err := c.DaemonStatus()
	if err != nil {
		t.Fatalf("DaemonStatus: %v", err)
	}
	if state != "running" {
		t.Errorf("state: got %q", state)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	rec := &daemonRecorder{}
	c := newTestDaemon(t, rec)

	for _, level := range []int{-10, 50, 150} {
		if err := c.SetVolume(level); err != nil {
			t.Fatalf("SetVolume(%d): %v", level, err)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []int{0, 50, 100}
	for i, v := range rec.volumes {
		if v != want[i] {
			t.Errorf("volume[%d]: got %d, want %d", i, v, want[i])
		}
	}
}
