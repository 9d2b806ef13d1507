package match

import (
	"context"
	"testing"
	"time"
)

func seedWaiting(t *testing.T, s *MemoryStore, id, host string) *Match {
	t.Helper()
	m, err := s.CreateWaiting(context.Background(), &Match{
		ID:        id,
		HostName:  host,
		GameType:  "Refleks Avı",
		Stake:     50,
		Table:     "T1",
		Status:    StatusWaiting,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return m
}

func TestMemoryStoreReturnsIsolatedCopies(t *testing.T) {
	s := NewMemoryStore()
	seedWaiting(t, s, "m-1", "ayse")

	got, err := s.Get(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = StatusFinished
	got.State.Results = map[string]ScoreSubmission{"ayse": {Score: 1}}

	fresh, err := s.Get(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Status != StatusWaiting || fresh.State.Results != nil {
		t.Errorf("caller mutation leaked into the store: %+v", fresh)
	}
}

func TestMemoryStoreMutateRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	s.PutUser(User{Username: "ayse", Points: 500})
	seedWaiting(t, s, "m-1", "ayse")

	_, err := s.Mutate(context.Background(), "m-1", func(tx Tx) *Error {
		tx.Match().Status = StatusActive
		if err := tx.AdjustPoints("ayse", -100); err != nil {
			t.Fatalf("adjust: %v", err)
		}
		return errConflict("boom", "nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	m, gerr := s.Get(context.Background(), "m-1")
	if gerr != nil {
		t.Fatalf("get: %v", gerr)
	}
	if m.Status != StatusWaiting {
		t.Errorf("status mutated despite rollback: %s", m.Status)
	}
	u, uerr := s.LookupUser(context.Background(), "ayse")
	if uerr != nil {
		t.Fatalf("lookup: %v", uerr)
	}
	if u.Points != 500 {
		t.Errorf("balance mutated despite rollback: %d", u.Points)
	}
}

func TestMemoryStoreCreateConflictsOnOpenMatch(t *testing.T) {
	s := NewMemoryStore()
	seedWaiting(t, s, "m-1", "ayse")

	_, err := s.CreateWaiting(context.Background(), &Match{ID: "m-2", HostName: "AYSE", GameType: "Refleks Avı", Status: StatusWaiting})
	if err == nil || err.Code != "participant_busy" {
		t.Errorf("case-variant host not detected as busy: %v", err)
	}
}

func TestMemoryStoreDeleteAuthorization(t *testing.T) {
	s := NewMemoryStore()
	seedWaiting(t, s, "m-1", "ayse")

	if _, err := s.Delete(context.Background(), "m-1", "zeynep", false); err == nil || err.Kind != KindNotFound {
		t.Errorf("outsider delete = %v, want not found", err)
	}
	if _, err := s.Delete(context.Background(), "m-1", "zeynep", true); err != nil {
		t.Errorf("privileged delete rejected: %v", err)
	}
}

func TestMemoryStoreAutoProvision(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.LookupUser(context.Background(), "newcomer"); err == nil {
		t.Fatal("unknown user found without auto-provision")
	}

	s.AutoProvisionUsers(1000)
	u, err := s.LookupUser(context.Background(), "newcomer")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u.Points != 1000 {
		t.Errorf("starting balance = %d, want 1000", u.Points)
	}
}

func TestMemoryStoreHistoryFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"m-1", "m-2", "m-3"} {
		_, err := s.CreateWaiting(ctx, &Match{
			ID: id, HostName: "host" + id, GuestName: "ayse",
			GameType: "Refleks Avı", Status: StatusWaiting,
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := s.Mutate(ctx, id, func(tx Tx) *Error {
			tx.Match().Status = StatusFinished
			return nil
		}); err != nil {
			t.Fatalf("finish: %v", err)
		}
	}

	rows, err := s.History(ctx, "AYSE", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want limit 2", len(rows))
	}
	if !rows[0].CreatedAt.After(rows[1].CreatedAt) {
		t.Errorf("history not newest first")
	}
}
