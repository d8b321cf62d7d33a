// Package robot talks to the Reachy Mini daemon's HTTP API. The control loop
// sends one batched move target per tick; errors are returned to the caller,
// which logs and keeps ticking.
package robot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/reachy-mini-pomodoro/internal/httpc"
	"github.com/teslashibe/reachy-mini-pomodoro/pkg/pose"
)

// Shared client with a hard timeout so a wedged daemon can never stall the
// control loop for more than one request cycle.
var httpClient = httpc.NewClient(2 * time.Second)

// PoseSink receives the composed pose each control tick.
type PoseSink interface {
	SetTarget(head pose.Matrix, antennas [2]float64, bodyYaw float64) error
}

// Client drives the robot daemon over HTTP.
type Client struct {
	baseURL string
}

// NewClient creates a Client for the daemon on the robot at ip. The daemon
// always listens on port 8000.
func NewClient(ip string) *Client {
	return &Client{baseURL: fmt.Sprintf("http://%s:8000", ip)}
}

// moveTarget is the daemon's set_target payload. The head pose goes as a
// full 4x4 matrix, row-major.
type moveTarget struct {
	TargetHeadPose [4][4]float64 `json:"target_head_pose"`
	TargetAntennas [2]float64    `json:"target_antennas"`
	TargetBodyYaw  float64       `json:"target_body_yaw"`
	Duration       float64       `json:"duration"`
}

// SetTarget sends one batched move target: head pose, both antennas and body
// yaw in a single request.
func (c *Client) SetTarget(head pose.Matrix, antennas [2]float64, bodyYaw float64) error {
	payload := moveTarget{
		TargetHeadPose: head,
		TargetAntennas: antennas,
		TargetBodyYaw:  bodyYaw,
		Duration:       0.02,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("robot: marshal move target: %w", err)
	}

	resp, err := httpClient.Post(c.baseURL+"/api/move/set_target", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("robot: move request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("robot: move request: status %d", resp.StatusCode)
	}
	return nil
}

// DaemonStatus returns the daemon's reported state.
func (c *Client) DaemonStatus() (string, error) {
	resp, err := httpClient.Get(c.baseURL + "/api/daemon/status")
	if err != nil {
		return "", fmt.Errorf("robot: daemon status: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("robot: decode daemon status: %w", err)
	}
	return status.State, nil
}

// SetVolume sets the speaker volume, clamped to 0-100.
func (c *Client) SetVolume(level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}

	payload := fmt.Sprintf(`{"volume": %d}`, level)
	resp, err := httpClient.Post(c.baseURL+"/api/volume/set", "application/json", strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("robot: volume set: %w", err)
	}
	resp.Body.Close()
	return nil
}

var _ PoseSink = (*Client)(nil)
