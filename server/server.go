// Package server exposes the robot over HTTP: the same surface the
// original web UI and voice layer call into.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rufuslabs/rufus"
	"github.com/rufuslabs/rufus/controller"
)

// Robot is the motion surface the API needs. *controller.Controller
// satisfies it; tests script it.
type Robot interface {
	ExecuteGesture(ctx context.Context, name string) error
	MoveServo(ctx context.Context, address, angle int) error
	Status() map[int]int
}

type Server struct {
	robot    Robot
	registry *rufus.Registry
	library  *rufus.Library
	log      *logrus.Logger
	metrics  bool
}

func New(robot Robot, registry *rufus.Registry, library *rufus.Library, log *logrus.Logger, metricsEnabled bool) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		robot:    robot,
		registry: registry,
		library:  library,
		log:      log,
		metrics:  metricsEnabled,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/gesture", s.postGesture)
		r.Post("/servo", s.postServo)
		r.Get("/status", s.getStatus)
		r.Get("/gestures", s.getGestures)
	})
	if s.metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

type gestureRequest struct {
	Gesture string `json:"gesture"`
}

func (g *gestureRequest) Bind(*http.Request) error {
	if g.Gesture == "" {
		return errors.New("missing gesture name")
	}
	return nil
}

type servoRequest struct {
	// Servo selects by name ("pan") or decimal address ("2"); Address
	// selects numerically. One of the two is required.
	Servo   string `json:"servo"`
	Address int    `json:"address"`
	Angle   *int   `json:"angle"`
}

func (m *servoRequest) Bind(*http.Request) error {
	if m.Servo == "" && m.Address == 0 {
		return errors.New("missing servo")
	}
	if m.Angle == nil {
		return errors.New("missing angle")
	}
	return nil
}

type resultResponse struct {
	Success bool `json:"success"`
}

func (resultResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"status": "healthy"})
}

func (s *Server) postGesture(w http.ResponseWriter, r *http.Request) {
	req := &gestureRequest{}
	if err := render.Bind(r, req); err != nil {
		_ = render.Render(w, r, errInvalid(err))
		return
	}

	if err := s.robot.ExecuteGesture(r.Context(), req.Gesture); err != nil {
		_ = render.Render(w, r, errToResponse(err))
		return
	}
	_ = render.Render(w, r, resultResponse{Success: true})
}

func (s *Server) postServo(w http.ResponseWriter, r *http.Request) {
	req := &servoRequest{}
	if err := render.Bind(r, req); err != nil {
		_ = render.Render(w, r, errInvalid(err))
		return
	}

	address := req.Address
	if req.Servo != "" {
		servo, ok := s.registry.LookupName(req.Servo)
		if !ok {
			// the UI also sends bare addresses in the servo field
			addr, err := strconv.Atoi(req.Servo)
			if err != nil {
				_ = render.Render(w, r, errNotFound(rufus.ErrUnknownServo))
				return
			}
			address = addr
		} else {
			address = servo.Address
		}
	}

	if err := s.robot.MoveServo(r.Context(), address, *req.Angle); err != nil {
		_ = render.Render(w, r, errToResponse(err))
		return
	}
	_ = render.Render(w, r, resultResponse{Success: true})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status := s.robot.Status()
	servos := make(map[string]int, len(status))
	for addr, angle := range status {
		servos[strconv.Itoa(addr)] = angle
	}
	render.JSON(w, r, map[string]any{"servos": servos})
}

func (s *Server) getGestures(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"gestures": s.library.Names()})
}

type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorText      string `json:"error"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errInvalid(err error) render.Renderer {
	return &errResponse{HTTPStatusCode: http.StatusBadRequest, StatusText: "invalid request", ErrorText: err.Error()}
}

func errNotFound(err error) render.Renderer {
	return &errResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "not found", ErrorText: err.Error()}
}

// errToResponse maps the motion error taxonomy onto HTTP statuses: caller
// errors are 4xx, a held busy gate is 409, a dead link is 503, and a
// mid-sequence failure is 502 with the partial-completion detail.
func errToResponse(err error) render.Renderer {
	switch {
	case errors.Is(err, rufus.ErrUnknownGesture), errors.Is(err, rufus.ErrUnknownServo):
		return errNotFound(err)
	case errors.Is(err, controller.ErrBusy):
		return &errResponse{HTTPStatusCode: http.StatusConflict, StatusText: "busy", ErrorText: err.Error()}
	case errors.Is(err, controller.ErrLinkClosed):
		return &errResponse{HTTPStatusCode: http.StatusServiceUnavailable, StatusText: "link unavailable", ErrorText: err.Error()}
	default:
		return &errResponse{HTTPStatusCode: http.StatusBadGateway, StatusText: "sequence failed", ErrorText: err.Error()}
	}
}
