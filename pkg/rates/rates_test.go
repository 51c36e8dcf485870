package rates

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kooklab/kord/pkg/kord"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "rates.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func session(user string) *kord.Session {
	return &kord.Session{UserID: user}
}

func TestCooldownFirstRunPasses(t *testing.T) {
	st := openTestStore(t)
	check := st.Cooldown("roll", time.Minute)

	result, err := check(nil, session("u1"))
	if err != nil {
		t.Fatalf("checker error = %v", err)
	}
	if passed, ok := result.(bool); !ok || !passed {
		t.Errorf("first run = %v, want pass", result)
	}
}

func TestCooldownVetoesWithinWindow(t *testing.T) {
	st := openTestStore(t)
	check := st.Cooldown("roll", time.Minute)

	if _, err := check(nil, session("u1")); err != nil {
		t.Fatal(err)
	}
	result, err := check(nil, session("u1"))
	if err != nil {
		t.Fatalf("checker error = %v", err)
	}
	if passed, ok := result.(bool); !ok || passed {
		t.Errorf("second run = %v, want veto", result)
	}
}

func TestCooldownIsPerUserAndCommand(t *testing.T) {
	st := openTestStore(t)
	roll := st.Cooldown("roll", time.Minute)
	flip := st.Cooldown("flip", time.Minute)

	if _, err := roll(nil, session("u1")); err != nil {
		t.Fatal(err)
	}

	if result, _ := roll(nil, session("u2")); result != true {
		t.Errorf("another user's run = %v, want pass", result)
	}
	if result, _ := flip(nil, session("u1")); result != true {
		t.Errorf("another command's run = %v, want pass", result)
	}
}

func TestCooldownExpires(t *testing.T) {
	st := openTestStore(t)

	now := time.Now()
	st.now = func() time.Time { return now }
	check := st.Cooldown("roll", time.Minute)

	if _, err := check(nil, session("u1")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)

	result, err := check(nil, session("u1"))
	if err != nil {
		t.Fatalf("checker error = %v", err)
	}
	if passed, ok := result.(bool); !ok || !passed {
		t.Errorf("run after expiry = %v, want pass", result)
	}
}

func TestReset(t *testing.T) {
	st := openTestStore(t)
	check := st.Cooldown("roll", time.Hour)

	if _, err := check(nil, session("u1")); err != nil {
		t.Fatal(err)
	}
	if err := st.Reset("roll", "u1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if result, _ := check(nil, session("u1")); result != true {
		t.Errorf("run after reset = %v, want pass", result)
	}
}
