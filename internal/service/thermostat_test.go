package service

import (
	"context"
	"errors"
	"testing"

	"pitfan"
	"pitfan/internal/logger"
	"pitfan/internal/state"
)

func newThermostatFixture(appendErr error) (*ThermostatService, *fakeEventRepo) {
	repo := &fakeEventRepo{appendErr: appendErr}
	svc := NewThermostatService(state.New(47.0), repo, logger.Get(logger.ErrorLevel))
	return svc, repo
}

func TestThermostatService_SetTargetTemperature(t *testing.T) {
	svc, repo := newThermostatFixture(nil)

	snap := svc.SetTargetTemperature(context.Background(), 93.5)
	if snap.TargetTemperature != 93.5 {
		t.Fatalf("snapshot target = %v, want 93.5", snap.TargetTemperature)
	}

	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(repo.appended))
	}
	if repo.appended[0].Type != pitfan.EventTargetChange {
		t.Fatalf("journal type = %q, want %q", repo.appended[0].Type, pitfan.EventTargetChange)
	}
}

func TestThermostatService_SetTargetMode(t *testing.T) {
	svc, repo := newThermostatFixture(nil)

	snap := svc.SetTargetMode(context.Background(), pitfan.ModeOff)
	if snap.TargetMode != pitfan.ModeOff {
		t.Fatalf("snapshot mode = %v, want Off", snap.TargetMode)
	}
	if len(repo.appended) != 1 || repo.appended[0].Type != pitfan.EventTargetChange {
		t.Fatalf("journal = %+v, want one TARGET_CHANGE", repo.appended)
	}
}

func TestThermostatService_OverrideCurrentTemperature(t *testing.T) {
	svc, repo := newThermostatFixture(nil)

	snap := svc.OverrideCurrentTemperature(context.Background(), 61.25)
	if snap.CurrentTemperature != 61.25 {
		t.Fatalf("snapshot current = %v, want 61.25", snap.CurrentTemperature)
	}
	if len(repo.appended) != 1 || repo.appended[0].Type != pitfan.EventOverride {
		t.Fatalf("journal = %+v, want one OVERRIDE", repo.appended)
	}
}

// A journal failure is logged, never surfaced: the write still lands and the
// snapshot still returns.
func TestThermostatService_JournalFailureDoesNotFailWrite(t *testing.T) {
	svc, _ := newThermostatFixture(errors.New("disk full"))

	snap := svc.SetTargetTemperature(context.Background(), 80)
	if snap.TargetTemperature != 80 {
		t.Fatalf("snapshot target = %v, want 80 despite journal failure", snap.TargetTemperature)
	}
}

func TestThermostatService_NilJournal(t *testing.T) {
	svc := NewThermostatService(state.New(47.0), nil, logger.Get(logger.ErrorLevel))

	snap := svc.SetTargetMode(context.Background(), pitfan.ModeAuto)
	if snap.TargetMode != pitfan.ModeAuto {
		t.Fatalf("snapshot mode = %v, want Auto", snap.TargetMode)
	}
}
