package session_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/session"
)

func testRecord() session.Record {
	return session.Record{
		User:            user.Identity{ID: 7, Email: "mia@example.com", Name: "Mia", Role: user.RoleMentor},
		AccessToken:     "at-7",
		RefreshToken:    "rt-7",
		AccessExpiresAt: time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second),
	}
}

func TestFileSlot_SaveLoadRoundTrip(t *testing.T) {
	slot := session.NewFileSlot(filepath.Join(t.TempDir(), "nested", "session.json"), quietLogger())

	want := testRecord()

	if err := slot.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := slot.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a record")
	}

	if got.User != want.User {
		t.Fatalf("user diverged: got %+v, want %+v", got.User, want.User)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
		t.Fatalf("tokens diverged: got %+v", got)
	}
	if !got.AccessExpiresAt.Equal(want.AccessExpiresAt) {
		t.Fatalf("expiry diverged: got %v, want %v", got.AccessExpiresAt, want.AccessExpiresAt)
	}
}

func TestFileSlot_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	slot := session.NewFileSlot(path, quietLogger())

	if err := slot.Save(testRecord()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("got mode %o, want 0600", perm)
	}
}

func TestFileSlot_LoadAbsentIsNil(t *testing.T) {
	slot := session.NewFileSlot(filepath.Join(t.TempDir(), "session.json"), quietLogger())

	rec, err := slot.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for an absent slot, got %+v", rec)
	}
}

func TestFileSlot_CorruptSlotIsTreatedAsAbsent(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"not json", "{{{{"},
		{"empty object", "{}"},
		{"missing token", `{"user":{"id":1,"role":"ADMIN"}}`},
		{"missing role", `{"user":{"id":1},"accessToken":"at"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")

			if err := os.WriteFile(path, []byte(tc.data), 0o600); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			slot := session.NewFileSlot(path, quietLogger())

			rec, err := slot.Load()
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if rec != nil {
				t.Fatalf("expected corrupt slot treated as absent, got %+v", rec)
			}
		})
	}
}

func TestFileSlot_ClearIsIdempotent(t *testing.T) {
	slot := session.NewFileSlot(filepath.Join(t.TempDir(), "session.json"), quietLogger())

	if err := slot.Save(testRecord()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := slot.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	// clearing an already-absent slot must not error
	if err := slot.Clear(); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}

	rec, err := slot.Load()
	if err != nil || rec != nil {
		t.Fatalf("expected absent slot after clear, got rec=%v err=%v", rec, err)
	}
}

func waitDirty(t *testing.T, slot *session.FileSlot) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !slot.TakeDirty() {
		if time.Now().After(deadline) {
			t.Fatalf("slot never went dirty")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFileSlot_WatchFlagsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	watching := session.NewFileSlot(path, quietLogger())
	if err := watching.Watch(); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer watching.Close()

	// another process writes through its own slot handle
	other := session.NewFileSlot(path, quietLogger())
	if err := other.Save(testRecord()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	waitDirty(t, watching)

	// and later logs out
	if err := other.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	waitDirty(t, watching)
}

func TestFileSlot_WatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()

	slot := session.NewFileSlot(filepath.Join(dir, "session.json"), quietLogger())
	if err := slot.Watch(); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer slot.Close()

	if err := os.WriteFile(filepath.Join(dir, "unrelated.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// give the watcher a chance to (wrongly) react
	time.Sleep(100 * time.Millisecond)

	if slot.TakeDirty() {
		t.Fatalf("sibling file must not dirty the slot")
	}
}
