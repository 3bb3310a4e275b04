package service

import (
	"context"

	"pitfan"
	"pitfan/internal/logger"
	"pitfan/internal/repository"
	"pitfan/internal/state"
)

// Thermostat exposes the status-API operations against the shared state
// record. Writes return the post-write snapshot, which every route renders.
type Thermostat interface {
	Snapshot() pitfan.Snapshot
	Telemetry() pitfan.Telemetry
	SetTargetTemperature(ctx context.Context, v float64) pitfan.Snapshot
	SetTargetMode(ctx context.Context, m pitfan.CoolingMode) pitfan.Snapshot
	OverrideCurrentTemperature(ctx context.Context, v float64) pitfan.Snapshot
}

// EventLog exposes the append-only journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]pitfan.Event, error)
}

// Authorization backs the operator surface's accounts and tokens.
type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Service aggregates all sub-services.
type Service struct {
	Thermostat
	EventLog
	Authorization
}

// NewService wires the state record and repositories into concrete services.
func NewService(st *state.Thermostat, repos *repository.Repository, signingKey string, log *logger.Logger) *Service {
	return &Service{
		Thermostat:    NewThermostatService(st, repos.Events, log),
		EventLog:      NewEventLogService(repos.Events),
		Authorization: NewAuthService(repos.Auth, signingKey),
	}
}
