package handlers

import (
	"context"
	"net/http"
	"time"

	"pitfan"
	"pitfan/internal/service"
	"pitfan/internal/state"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockEventLog struct {
	resp     []pitfan.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	calls    int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]pitfan.Event, error) {
	m.calls++
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

// newTestServices backs the thermostat routes with a real state record so
// round-trip assertions exercise the actual wire values; auth and the event
// log are mocked.
func newTestServices(auth *mockAuth, events *mockEventLog) (*service.Service, *state.Thermostat) {
	st := state.New(47.0)
	return &service.Service{
		Thermostat:    service.NewThermostatService(st, nil, nil),
		EventLog:      events,
		Authorization: auth,
	}, st
}

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
