package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rufuslabs/rufus"
	"github.com/rufuslabs/rufus/controller"
)

type fakeRobot struct {
	gestures []string
	moves    [][2]int
	err      error
	status   map[int]int
}

func (f *fakeRobot) ExecuteGesture(_ context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	f.gestures = append(f.gestures, name)
	return nil
}

func (f *fakeRobot) MoveServo(_ context.Context, address, angle int) error {
	if f.err != nil {
		return f.err
	}
	f.moves = append(f.moves, [2]int{address, angle})
	return nil
}

func (f *fakeRobot) Status() map[int]int {
	return f.status
}

func testServer(t *testing.T, robot *fakeRobot) http.Handler {
	t.Helper()
	reg, err := rufus.NewRegistry(rufus.DefaultServos())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lib, err := rufus.DefaultLibrary(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	return New(robot, reg, lib, log, false).Router()
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_PostGesture(t *testing.T) {
	robot := &fakeRobot{}
	handler := testServer(t, robot)

	rec := postJSON(t, handler, "/api/gesture", `{"gesture": "wave"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(robot.gestures) != 1 || robot.gestures[0] != "wave" {
		t.Errorf("gestures = %v", robot.gestures)
	}
}

func TestServer_PostGestureErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		robotErr error
		expected int
	}{
		{"MissingName", `{}`, nil, http.StatusBadRequest},
		{"Unknown", `{"gesture": "x"}`, rufus.ErrUnknownGesture, http.StatusNotFound},
		{"Busy", `{"gesture": "wave"}`, controller.ErrBusy, http.StatusConflict},
		{"LinkDown", `{"gesture": "wave"}`, controller.ErrLinkClosed, http.StatusServiceUnavailable},
		{"StepFailed", `{"gesture": "wave"}`, &controller.StepError{Gesture: "wave", Index: 2, Err: controller.ErrAckTimeout}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := testServer(t, &fakeRobot{err: tt.robotErr})
			rec := postJSON(t, handler, "/api/gesture", tt.body)
			if rec.Code != tt.expected {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.expected, rec.Body.String())
			}
		})
	}
}

func TestServer_PostServo(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected [2]int
	}{
		{"ByName", `{"servo": "pan", "angle": 120}`, [2]int{2, 120}},
		{"ByNumericName", `{"servo": "4", "angle": 70}`, [2]int{4, 70}},
		{"ByAddress", `{"address": 5, "angle": 0}`, [2]int{5, 0}},
		{"ZeroAngle", `{"servo": "pan", "angle": 0}`, [2]int{2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			robot := &fakeRobot{}
			handler := testServer(t, robot)

			rec := postJSON(t, handler, "/api/servo", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if len(robot.moves) != 1 || robot.moves[0] != tt.expected {
				t.Errorf("moves = %v, want %v", robot.moves, tt.expected)
			}
		})
	}
}

func TestServer_PostServoInvalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"MissingServo", `{"angle": 90}`, http.StatusBadRequest},
		{"MissingAngle", `{"servo": "pan"}`, http.StatusBadRequest},
		{"UnknownName", `{"servo": "tail", "angle": 90}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := testServer(t, &fakeRobot{})
			rec := postJSON(t, handler, "/api/servo", tt.body)
			if rec.Code != tt.expected {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.expected, rec.Body.String())
			}
		})
	}
}

func TestServer_GetStatus(t *testing.T) {
	robot := &fakeRobot{status: map[int]int{2: 90, 4: 90, 5: 90}}
	handler := testServer(t, robot)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Servos map[string]int `json:"servos"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Servos["2"] != 90 || len(body.Servos) != 3 {
		t.Errorf("servos = %v", body.Servos)
	}
}

func TestServer_GetGestures(t *testing.T) {
	handler := testServer(t, &fakeRobot{})

	req := httptest.NewRequest(http.MethodGet, "/api/gestures", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		Gestures []string `json:"gestures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body.Gestures) != 9 {
		t.Errorf("gestures = %v", body.Gestures)
	}
}

func TestServer_Health(t *testing.T) {
	handler := testServer(t, &fakeRobot{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
