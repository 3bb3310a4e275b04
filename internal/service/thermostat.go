package service

import (
	"context"
	"fmt"

	"pitfan"
	"pitfan/internal/logger"
	"pitfan/internal/repository"
	"pitfan/internal/state"
)

// ThermostatService translates status-API requests into reads/writes of the
// shared state record and journals every write. The journal is best-effort:
// a storage hiccup must never fail an integration request.
type ThermostatService struct {
	st     *state.Thermostat
	events repository.EventRepo
	log    *logger.Logger
}

func NewThermostatService(st *state.Thermostat, events repository.EventRepo, log *logger.Logger) *ThermostatService {
	return &ThermostatService{st: st, events: events, log: log}
}

var _ Thermostat = (*ThermostatService)(nil)

func (s *ThermostatService) Snapshot() pitfan.Snapshot {
	return s.st.Snapshot()
}

func (s *ThermostatService) Telemetry() pitfan.Telemetry {
	return s.st.Telemetry()
}

func (s *ThermostatService) SetTargetTemperature(ctx context.Context, v float64) pitfan.Snapshot {
	snap := s.st.SetTargetTemperature(v)
	s.journal(ctx, pitfan.Event{
		Type:        pitfan.EventTargetChange,
		Description: fmt.Sprintf("Target temperature set to %.2f", v),
		Metadata:    map[string]any{"target_temp_c": v},
	})
	return snap
}

func (s *ThermostatService) SetTargetMode(ctx context.Context, m pitfan.CoolingMode) pitfan.Snapshot {
	snap := s.st.SetTargetMode(m)
	s.journal(ctx, pitfan.Event{
		Type:        pitfan.EventTargetChange,
		Description: "Target mode set to " + m.String(),
		Metadata:    map[string]any{"target_mode": int(m)},
	})
	return snap
}

func (s *ThermostatService) OverrideCurrentTemperature(ctx context.Context, v float64) pitfan.Snapshot {
	snap := s.st.OverrideCurrentTemperature(v)
	s.journal(ctx, pitfan.Event{
		Type:        pitfan.EventOverride,
		Description: fmt.Sprintf("Current temperature overridden to %.2f", v),
		Metadata:    map[string]any{"current_temp_c": v},
	})
	return snap
}

func (s *ThermostatService) journal(ctx context.Context, e pitfan.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, e); err != nil && s.log != nil {
		s.log.Errorw("journal append failed", "err", err, "type", e.Type)
	}
}
