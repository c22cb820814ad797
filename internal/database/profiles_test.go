package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/benvon/smart-coach/internal/orchestrator"
)

var _ orchestrator.ProfileStore = (*ProfileRepository)(nil)

// fakeRow replays fixed column values into Scan destinations
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch target := d.(type) {
		case sql.Scanner:
			if err := target.Scan(r.values[i]); err != nil {
				return err
			}
		default:
			reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
		}
	}
	return nil
}

func TestProfileArgs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	created := now.Add(-24 * time.Hour)

	tests := []struct {
		name        string
		profile     *models.Profile
		wantExpert  string
		wantCreated time.Time
		wantPrefs   string
	}{
		{
			name:        "defaults",
			profile:     &models.Profile{UserID: "u1"},
			wantExpert:  "beginner",
			wantCreated: now,
			wantPrefs:   `{}`,
		},
		{
			name: "full profile",
			profile: &models.Profile{
				UserID:      "u2",
				DisplayName: "Sam",
				Expertise:   models.ExpertiseAdvanced,
				Goals:       []string{"strength"},
				Equipment:   []string{"barbell"},
				Preferences: map[string]any{"units": "metric"},
				CreatedAt:   created,
			},
			wantExpert:  "advanced",
			wantCreated: created,
			wantPrefs:   `{"units":"metric"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args, err := profileArgs(tt.profile, now)
			if err != nil {
				t.Fatalf("profileArgs() error = %v", err)
			}
			if len(args) != 8 {
				t.Fatalf("got %d args, want 8", len(args))
			}
			if args[2] != tt.wantExpert {
				t.Errorf("expertise = %v, want %s", args[2], tt.wantExpert)
			}
			if string(args[5].([]byte)) != tt.wantPrefs {
				t.Errorf("preferences = %s, want %s", args[5], tt.wantPrefs)
			}
			if !args[6].(time.Time).Equal(tt.wantCreated) || !args[7].(time.Time).Equal(now) {
				t.Errorf("timestamps = %v, %v", args[6], args[7])
			}
			goals, err := args[3].(driver.Valuer).Value()
			if err != nil {
				t.Fatal(err)
			}
			if tt.profile.Goals == nil && goals != "{}" {
				t.Errorf("nil goals encoded as %v, want empty array", goals)
			}
		})
	}
}

func TestProfileArgs_UnmarshalablePreferences(t *testing.T) {
	t.Parallel()

	_, err := profileArgs(&models.Profile{UserID: "u", Preferences: map[string]any{"bad": make(chan int)}}, time.Now())
	if err == nil {
		t.Error("expected marshal error")
	}
}

func TestScanProfile(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prefs, _ := json.Marshal(map[string]any{"units": "imperial"})
	row := fakeRow{values: []any{
		"u1", "Alex", "intermediate",
		[]byte(`{strength,"fat loss"}`), []byte(`{kettlebell}`),
		prefs, ts, ts,
	}}

	p, err := scanProfile(row)
	if err != nil {
		t.Fatalf("scanProfile() error = %v", err)
	}
	if p.UserID != "u1" || p.DisplayName != "Alex" || p.Expertise != models.ExpertiseIntermediate {
		t.Errorf("profile = %+v", p)
	}
	if !reflect.DeepEqual(p.Goals, []string{"strength", "fat loss"}) {
		t.Errorf("Goals = %v", p.Goals)
	}
	if !reflect.DeepEqual(p.Equipment, []string{"kettlebell"}) {
		t.Errorf("Equipment = %v", p.Equipment)
	}
	if p.Preferences["units"] != "imperial" || !p.CreatedAt.Equal(ts) {
		t.Errorf("profile = %+v", p)
	}
}

func TestScanProfile_Errors(t *testing.T) {
	t.Parallel()

	if _, err := scanProfile(fakeRow{err: sql.ErrNoRows}); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error = %v, want sql.ErrNoRows", err)
	}

	ts := time.Now()
	bad := fakeRow{values: []any{"u1", "", "beginner", []byte(`{}`), []byte(`{}`), []byte(`{not json`), ts, ts}}
	if _, err := scanProfile(bad); err == nil {
		t.Error("expected error for malformed preferences")
	}
}

func TestNonNil(t *testing.T) {
	t.Parallel()

	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("nonNil(nil) = %#v", got)
	}
	in := []string{"a"}
	if got := nonNil(in); &got[0] != &in[0] {
		t.Error("nonNil should return non-nil input unchanged")
	}
}
