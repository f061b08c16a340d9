package store

import (
	"errors"
	"os"
	"testing"
	"time"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := OpenLibrary(t.TempDir(), "myGames")
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lib.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return lib
}

func TestLibrary_EmptyWhenMissing(t *testing.T) {
	lib := newTestLibrary(t)
	games, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("got %d games, want 0", len(games))
	}
	if _, err := lib.Get("nope"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Get = %v, want ErrGameNotFound", err)
	}
}

func TestLibrary_SaveListGet(t *testing.T) {
	lib := newTestLibrary(t)

	a, err := lib.Save(GameRecord{White: "A", Black: "B", Result: "1-0", PGN: "1. e4 *"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.Key == "" {
		t.Fatal("expected generated key")
	}
	b, err := lib.Save(GameRecord{White: "C", Black: "D", Result: "*", PGN: "1. d4 *"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.Key == b.Key {
		t.Fatal("keys should differ")
	}

	games, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(games) != 2 || games[0].Key != a.Key || games[1].Key != b.Key {
		t.Fatalf("unexpected order %+v", games)
	}

	got, err := lib.Get(b.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PGN != "1. d4 *" || got.White != "C" {
		t.Errorf("Get = %+v", got)
	}

	if _, err := os.Stat(lib.Path()); err != nil {
		t.Errorf("library file missing: %v", err)
	}
	if _, err := os.Stat(lib.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestLibrary_UpdateKeepsDateAdded(t *testing.T) {
	lib := newTestLibrary(t)
	first, err := lib.Save(GameRecord{White: "A", PGN: "1. e4 *"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Save(GameRecord{White: "Z", PGN: "1. c4 *"}); err != nil {
		t.Fatal(err)
	}

	first.PGN = "1. e4 e5 *"
	first.DateAdded = time.Time{}
	updated, err := lib.Save(first)
	if err != nil {
		t.Fatal(err)
	}

	games, _ := lib.List()
	if len(games) != 2 {
		t.Fatalf("got %d games", len(games))
	}
	if games[0].Key != first.Key || games[0].PGN != "1. e4 e5 *" {
		t.Errorf("update did not replace in place: %+v", games[0])
	}
	if !games[0].DateAdded.Equal(updated.DateAdded) || updated.DateAdded.IsZero() {
		t.Errorf("DateAdded changed: %v", games[0].DateAdded)
	}
}

func TestLibrary_Delete(t *testing.T) {
	lib := newTestLibrary(t)
	a, _ := lib.Save(GameRecord{PGN: "1. e4 *"})
	b, _ := lib.Save(GameRecord{PGN: "1. d4 *"})

	if err := lib.Delete(a.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	games, _ := lib.List()
	if len(games) != 1 || games[0].Key != b.Key {
		t.Errorf("unexpected games %+v", games)
	}
	if err := lib.Delete(a.Key); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestLibrary_SaveAll(t *testing.T) {
	lib := newTestLibrary(t)
	if err := lib.SaveAll([]GameRecord{{PGN: "1. e4 *"}, {PGN: "1. d4 *"}, {PGN: "1. c4 *"}}); err != nil {
		t.Fatal(err)
	}
	games, _ := lib.List()
	if len(games) != 3 {
		t.Fatalf("got %d games", len(games))
	}
	seen := map[string]bool{}
	for _, g := range games {
		if g.Key == "" || seen[g.Key] {
			t.Errorf("bad key %q", g.Key)
		}
		seen[g.Key] = true
	}
}

func TestOpenLibrary_InvalidName(t *testing.T) {
	for _, name := range []string{"", "../x", `a\b`} {
		if _, err := OpenLibrary(t.TempDir(), name); err == nil {
			t.Errorf("OpenLibrary(%q) should fail", name)
		}
	}
}
