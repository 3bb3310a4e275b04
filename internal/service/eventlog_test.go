package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pitfan"
)

// fakeEventRepo is a minimal stub satisfying repository.EventRepo.
type fakeEventRepo struct {
	gotFrom time.Time
	gotTo   time.Time
	gotType string

	events []pitfan.Event
	err    error

	listCalls int
	appended  []pitfan.Event
	appendErr error
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]pitfan.Event, error) {
	f.listCalls++
	f.gotFrom = from
	f.gotTo = to
	f.gotType = typ
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e pitfan.Event) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func mustTimeIn(loc *time.Location, y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want func(time.Time) bool
	}{
		{
			name: "zero time remains zero",
			in:   time.Time{},
			want: func(out time.Time) bool { return out.IsZero() },
		},
		{
			name: "non-UTC converted to UTC preserving instant",
			in:   mustTimeIn(time.FixedZone("UTC+3", 3*3600), 2026, time.August, 1, 12, 34, 56),
			want: func(out time.Time) bool {
				exp := time.Date(2026, time.August, 1, 9, 34, 56, 0, time.UTC)
				return out.Location() == time.UTC && out.Equal(exp)
			},
		},
		{
			name: "already UTC stays UTC and same instant",
			in:   time.Date(2026, time.August, 2, 0, 0, 0, 0, time.UTC),
			want: func(out time.Time) bool {
				exp := time.Date(2026, time.August, 2, 0, 0, 0, 0, time.UTC)
				return out.Location() == time.UTC && out.Equal(exp)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeToUTC(tc.in)
			if !tc.want(got) {
				t.Fatalf("unexpected normalizeToUTC result: %v (loc=%v)", got, got.Location())
			}
		})
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	fromLocal := mustTimeIn(time.FixedZone("UTC+2", 2*3600), 2026, time.July, 10, 10, 0, 0)
	toUTC := time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		in       LogFilter
		wantFrom time.Time
		wantTo   time.Time
		wantType string
		wantErr  error
	}{
		{
			name:    "all zero/empty ok",
			in:      LogFilter{},
			wantErr: nil,
		},
		{
			name: "from after to -> error",
			in: LogFilter{
				From: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC),
				Type: "startup",
			},
			wantErr: errInvalidTimeRange,
		},
		{
			name: "normalize tz and type",
			in: LogFilter{
				From: fromLocal,
				To:   toUTC,
				Type: " mode_change ",
			},
			wantFrom: time.Date(2026, time.July, 10, 8, 0, 0, 0, time.UTC),
			wantTo:   toUTC,
			wantType: "MODE_CHANGE",
			wantErr:  nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotFrom, gotTo, gotType, err := normalizeAndValidateFilter(tc.in)

			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v; got %v", tc.wantErr, err)
			}
			if !tc.wantFrom.IsZero() && !gotFrom.Equal(tc.wantFrom) {
				t.Fatalf("from: got %v; want %v", gotFrom, tc.wantFrom)
			}
			if !tc.wantTo.IsZero() && !gotTo.Equal(tc.wantTo) {
				t.Fatalf("to: got %v; want %v", gotTo, tc.wantTo)
			}
			if tc.wantType != "" && gotType != tc.wantType {
				t.Fatalf("type: got %q; want %q", gotType, tc.wantType)
			}
		})
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{
		events: []pitfan.Event{{EventID: "1"}},
	}
	svc := NewEventLogService(frepo)

	fromLocal := mustTimeIn(time.FixedZone("UTC+5", 5*3600), 2026, time.August, 1, 10, 0, 0)
	toLocal := mustTimeIn(time.FixedZone("UTC-2", -2*3600), 2026, time.August, 1, 12, 30, 0)

	out, err := svc.List(context.Background(), LogFilter{
		From: fromLocal,
		To:   toLocal,
		Type: "  override ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", out)
	}
	if frepo.listCalls != 1 {
		t.Fatalf("repo List should be called once, got %d", frepo.listCalls)
	}

	wantFrom := time.Date(2026, time.August, 1, 5, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, time.August, 1, 14, 30, 0, 0, time.UTC)

	if !frepo.gotFrom.Equal(wantFrom) {
		t.Fatalf("repo gotFrom=%v; want %v", frepo.gotFrom, wantFrom)
	}
	if !frepo.gotTo.Equal(wantTo) {
		t.Fatalf("repo gotTo=%v; want %v", frepo.gotTo, wantTo)
	}
	if frepo.gotType != "OVERRIDE" {
		t.Fatalf("repo gotType=%q; want %q", frepo.gotType, "OVERRIDE")
	}
}

func TestEventLogService_List_ValidationError(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange; got %v", err)
	}
	if frepo.listCalls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.listCalls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeEventRepo{err: errors.New("db down")}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{})
	if !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
	if frepo.listCalls != 1 {
		t.Fatalf("repo should be called once, calls=%d", frepo.listCalls)
	}
}
