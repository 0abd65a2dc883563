// FilePath: api/ws/ws.go
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/api/middleware"
	"github.com/prajukk/backed-traffic/internal/bus"
	"github.com/prajukk/backed-traffic/internal/coordinator"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

const eventTimeout = 10 * time.Second

var (
	errNotAuthenticated = errors.New("authenticate before sending control events")
	errInsufficientRole = errors.New("insufficient permissions for control events")
	errNotConnected     = errors.New("deviceConnect before sending telemetry")
	errDeviceMismatch   = errors.New("telemetry does not match the connected device")
)

// Handler upgrades dashboard and device connections and routes their
// events. Each connection starts unauthenticated; it must send either an
// authenticate event (dashboard session) or a deviceConnect event (device
// session) before anything else is accepted.
type Handler struct {
	bus      *bus.Bus
	coord    *coordinator.Coordinator
	service  *trafficservice.TrafficService
	auth     *middleware.AuthMiddleware
	upgrader websocket.Upgrader
}

func NewHandler(b *bus.Bus, coord *coordinator.Coordinator, service *trafficservice.TrafficService, auth *middleware.AuthMiddleware, allowedOrigin string) *Handler {
	return &Handler{
		bus:     b,
		coord:   coord,
		service: service,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		nuts.L.Warnf("[WS] Upgrade failed: %v", err)
		return
	}

	client := bus.NewClient(h.bus, conn)
	s := &session{handler: h, client: client}
	client.SetHandler(s.handle)
	client.Start()
	nuts.L.Debugf("[WS] Client %d connected from %s", client.ID(), r.RemoteAddr)
}

// session tracks per-connection identity. Fields are only written from the
// connection's read pump, so no locking is needed.
type session struct {
	handler    *Handler
	client     *bus.Client
	user       *middleware.UserContext
	deviceKind models.DeviceKind
	deviceID   string
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type deviceConnectPayload struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	APIKey string `json:"apiKey"`
}

type deviceDataPayload struct {
	Type    string                  `json:"type"`
	ID      string                  `json:"id"`
	Metrics models.TelemetryPayload `json:"metrics"`
}

type cameraControlPayload struct {
	ID       string                `json:"id"`
	Settings models.CameraSettings `json:"settings"`
}

type signalControlPayload struct {
	ID       string        `json:"id"`
	Settings models.Signal `json:"settings"`
}

func (s *session) handle(env bus.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	switch env.Event {
	case "authenticate":
		err = s.authenticate(ctx, env.Data)
	case "deviceConnect":
		err = s.deviceConnect(ctx, env.Data)
	case "deviceData":
		err = s.deviceData(ctx, env.Data)
	case "cameraControl":
		err = s.cameraControl(ctx, env.Data)
	case "signalControl":
		err = s.signalControl(ctx, env.Data)
	default:
		s.client.SendError("unknown event " + env.Event)
		return
	}
	if err != nil {
		s.client.SendError(err.Error())
	}
}

func (s *session) authenticate(ctx context.Context, data json.RawMessage) error {
	var payload authenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	user, err := s.handler.auth.VerifyToken(payload.Token)
	if err != nil {
		return err
	}
	s.user = user
	s.handler.bus.Join(bus.AdminRoom, s.client)

	snapshot, err := s.handler.service.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	s.client.Send(bus.Message{Event: bus.EventInitialData, Data: snapshot})
	nuts.L.Infof("[WS] Client %d authenticated as %s (%s)", s.client.ID(), user.Username, user.Role)
	return nil
}

func (s *session) deviceConnect(ctx context.Context, data json.RawMessage) error {
	var payload deviceConnectPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	kind, err := models.ParseDeviceKind(payload.Type)
	if err != nil {
		return err
	}
	if err := s.handler.coord.HandleConnect(ctx, kind, payload.ID, payload.APIKey, s.client); err != nil {
		return err
	}
	s.deviceKind = kind
	s.deviceID = payload.ID
	return nil
}

// deviceData accepts telemetry only from a connection that completed
// deviceConnect, and only for that connection's own device.
func (s *session) deviceData(ctx context.Context, data json.RawMessage) error {
	if s.deviceID == "" {
		return errNotConnected
	}

	var payload deviceDataPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	kind, err := models.ParseDeviceKind(payload.Type)
	if err != nil {
		return err
	}
	if kind != s.deviceKind || payload.ID != s.deviceID {
		return errDeviceMismatch
	}
	return s.handler.coord.HandleTelemetry(ctx, kind, payload.ID, payload.Metrics)
}

func (s *session) cameraControl(ctx context.Context, data json.RawMessage) error {
	roles, err := s.controlRoles()
	if err != nil {
		return err
	}

	var payload cameraControlPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	_, err = s.handler.coord.ControlCamera(ctx, payload.ID, payload.Settings, roles)
	return err
}

func (s *session) signalControl(ctx context.Context, data json.RawMessage) error {
	roles, err := s.controlRoles()
	if err != nil {
		return err
	}

	var payload signalControlPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	_, err = s.handler.coord.ControlSignal(ctx, payload.ID, &payload.Settings, roles)
	return err
}

// controlRoles gates control events to operators and admins.
func (s *session) controlRoles() ([]string, error) {
	if s.user == nil {
		return nil, errNotAuthenticated
	}
	if !middleware.HasAnyRole(s.user.Role, []string{models.RoleAdmin, models.RoleOperator}) {
		return nil, errInsufficientRole
	}
	return []string{s.user.Role}, nil
}
