package match

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// storeHarness lets the same scripted sequence run against either backend.
type storeHarness struct {
	store    Store
	seedUser func(t *testing.T, u User)
}

func memoryHarness(t *testing.T) *storeHarness {
	t.Helper()
	s := NewMemoryStore()
	return &storeHarness{
		store:    s,
		seedUser: func(t *testing.T, u User) { s.PutUser(u) },
	}
}

// postgresHarness requires a disposable database; set TEST_DATABASE_URL to
// enable it, e.g. postgres://localhost:5432/masaplay_test?sslmode=disable.
func postgresHarness(t *testing.T) *storeHarness {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`TRUNCATE matches, users`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return &storeHarness{
		store: NewDBStore(db),
		seedUser: func(t *testing.T, u User) {
			t.Helper()
			_, err := db.Exec(`
				INSERT INTO users (username, points, cafe_id, table_code, is_admin)
				VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, ''), $5)
			`, u.Username, u.Points, u.CafeID, u.TableCode, u.Admin)
			if err != nil {
				t.Fatalf("seed user %s: %v", u.Username, err)
			}
		},
	}
}

// TestStoreContract replays one scripted lifecycle against each backend and
// asserts the same observable sequence of outcomes, error codes and balances.
func TestStoreContract(t *testing.T) {
	backends := map[string]func(*testing.T) *storeHarness{
		"memory":   memoryHarness,
		"postgres": postgresHarness,
	}
	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			runStoreContract(t, build(t))
		})
	}
}

func runStoreContract(t *testing.T, h *storeHarness) {
	ctx := context.Background()
	h.seedUser(t, User{Username: "ayse", Points: 500, CafeID: 7, TableCode: "T1"})
	h.seedUser(t, User{Username: "mehmet", Points: 500, CafeID: 7, TableCode: "T1"})
	h.seedUser(t, User{Username: "zeynep", Points: 500, CafeID: 9, TableCode: "Z9"})

	idA := uuid.NewString()
	idB := uuid.NewString()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := h.store.CreateWaiting(ctx, &Match{
		ID: idA, HostName: "ayse", GameType: "Refleks Avı", Stake: 100,
		Table: "T1", Status: StatusWaiting, CreatedAt: t0,
	})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	_, err = h.store.CreateWaiting(ctx, &Match{
		ID: idB, HostName: "zeynep", GameType: "Refleks Avı", Stake: 50,
		Table: "Z9", Status: StatusWaiting, CreatedAt: t0.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("create B: %v", err)
	}

	// A host with an open match must not open a second one, even under a
	// different spelling of the name.
	_, err = h.store.CreateWaiting(ctx, &Match{
		ID: uuid.NewString(), HostName: "AYSE", GameType: "Refleks Avı",
		Status: StatusWaiting, CreatedAt: t0,
	})
	if err == nil || err.Kind != KindConflict || err.Code != "participant_busy" {
		t.Fatalf("duplicate create: got %v, want participant_busy conflict", err)
	}

	// Join plus activation in one exclusive section.
	joined, err := h.store.Mutate(ctx, idA, func(tx Tx) *Error {
		pts, ok, uerr := tx.UserPoints("MEHMET")
		if uerr != nil || !ok || pts != 500 {
			t.Fatalf("guest balance inside tx: %d %v %v", pts, ok, uerr)
		}
		m := tx.Match()
		m.GuestName = "mehmet"
		m.Status = StatusActive
		return nil
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.Status != StatusActive || joined.GuestName != "mehmet" {
		t.Fatalf("join result: %+v", joined)
	}

	busy, err := h.store.Mutate(ctx, idB, func(tx Tx) *Error {
		other, berr := tx.HasOtherActiveMatch("mehmet")
		if berr != nil {
			t.Fatalf("busy check: %v", berr)
		}
		if !other {
			t.Error("mehmet's active match not visible from another match's tx")
		}
		return errConflict("participant_busy", "Önce mevcut oyunu tamamla veya lobiye dön.")
	})
	if busy != nil || err == nil || err.Code != "participant_busy" {
		t.Fatalf("busy mutate: %v %v", busy, err)
	}

	// A failing callback must roll back the match and any staged balances.
	_, err = h.store.Mutate(ctx, idA, func(tx Tx) *Error {
		tx.Match().Status = StatusFinished
		if aerr := tx.AdjustPoints("ayse", -100); aerr != nil {
			t.Fatalf("adjust: %v", aerr)
		}
		return errConflict("boom", "nope")
	})
	if err == nil {
		t.Fatal("expected rollback error")
	}
	m, gerr := h.store.Get(ctx, idA)
	if gerr != nil {
		t.Fatalf("rollback read: %v", gerr)
	}
	if m.Status != StatusActive {
		t.Fatalf("rollback: status %v", m.Status)
	}
	if u, lerr := h.store.LookupUser(ctx, "ayse"); lerr != nil || u.Points != 500 {
		t.Fatalf("rollback: balance %+v err %v", u, lerr)
	}

	// Lobby scoping: B is the only waiting match left.
	all, err := h.store.ListWaiting(ctx, WaitingFilter{})
	if err != nil || len(all) != 1 || all[0].ID != idB {
		t.Fatalf("list all: %v %v", all, err)
	}
	byTable, err := h.store.ListWaiting(ctx, WaitingFilter{TableCode: "z9"})
	if err != nil || len(byTable) != 1 || byTable[0].ID != idB {
		t.Fatalf("list by table: %v %v", byTable, err)
	}
	byCafe, err := h.store.ListWaiting(ctx, WaitingFilter{CafeID: 7})
	if err != nil || len(byCafe) != 0 {
		t.Fatalf("list cafe 7 should be empty: %v %v", byCafe, err)
	}

	active, err := h.store.FindActiveByParticipant(ctx, "mehmet")
	if err != nil || active == nil || active.ID != idA {
		t.Fatalf("active lookup: %v %v", active, err)
	}

	// Finish with settlement in the same exclusive section.
	_, err = h.store.Mutate(ctx, idA, func(tx Tx) *Error {
		m := tx.Match()
		m.Status = StatusFinished
		m.Winner = "mehmet"
		if aerr := tx.AdjustPoints("ayse", -100); aerr != nil {
			return errInfra("adjust", aerr)
		}
		if aerr := tx.AdjustPoints("mehmet", 100); aerr != nil {
			return errInfra("adjust", aerr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	for name, want := range map[string]int{"ayse": 400, "mehmet": 600, "zeynep": 500} {
		u, lerr := h.store.LookupUser(ctx, name)
		if lerr != nil || u.Points != want {
			t.Errorf("%s balance: got %+v err %v, want %d", name, u, lerr, want)
		}
	}

	rows, err := h.store.History(ctx, "ayse", 10)
	if err != nil || len(rows) != 1 || rows[0].ID != idA || rows[0].Winner != "mehmet" {
		t.Fatalf("history: %v %v", rows, err)
	}

	// Outsiders see not-found on delete, participants succeed.
	if _, derr := h.store.Delete(ctx, idB, "mehmet", false); derr == nil || derr.Kind != KindNotFound {
		t.Fatalf("outsider delete: %v", derr)
	}
	if _, derr := h.store.Delete(ctx, idB, "ZEYNEP", false); derr != nil {
		t.Fatalf("host delete: %v", derr)
	}
	if _, gerr := h.store.Get(ctx, idB); gerr == nil || gerr.Kind != KindNotFound {
		t.Fatalf("deleted match still readable: %v", gerr)
	}
}
