package match

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is the volatile mirror used when the database is unreachable.
// One mutex serializes every mutation, so between the guard read and the
// status write nothing else can touch the same match.
type MemoryStore struct {
	mu      sync.Mutex
	matches map[string]*Match
	users   map[string]*User

	// autoPoints > 0 provisions unknown users on first lookup with that
	// starting balance, so a fresh memory-mode boot is immediately usable.
	autoPoints int
}

// NewMemoryStore builds an empty volatile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]*Match),
		users:   make(map[string]*User),
	}
}

// AutoProvisionUsers enables creating unknown users on lookup with the
// given starting balance. Memory mode only; the durable backend requires
// a seeded users table.
func (s *MemoryStore) AutoProvisionUsers(startingPoints int) {
	s.mu.Lock()
	s.autoPoints = startingPoints
	s.mu.Unlock()
}

// PutUser inserts or replaces a user record.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[strings.ToLower(strings.TrimSpace(u.Username))] = &cp
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) CreateWaiting(ctx context.Context, m *Match) (*Match, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.matches {
		if existing.Status != StatusWaiting && existing.Status != StatusActive {
			continue
		}
		if existing.CanonicalParticipant(m.HostName) != "" {
			return nil, errConflict("participant_busy", "Önce mevcut oyunu tamamla veya lobiye dön.")
		}
	}

	cp := cloneMatch(m)
	s.matches[cp.ID] = cp
	return cloneMatch(cp), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Match, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, errNotFound("Oyun bulunamadı.")
	}
	return cloneMatch(m), nil
}

// memTx operates on a working copy; the store swaps it in only when the
// callback commits.
type memTx struct {
	store   *MemoryStore
	working *Match
	debits  map[string]int
}

func (t *memTx) Match() *Match { return t.working }

func (t *memTx) UserPoints(username string) (int, bool, error) {
	u := t.store.lookupLocked(username)
	if u == nil {
		return 0, false, nil
	}
	return u.Points + t.debits[strings.ToLower(strings.TrimSpace(username))], true, nil
}

func (t *memTx) AdjustPoints(username string, delta int) error {
	// staged: applied to the users map only on commit
	t.debits[strings.ToLower(strings.TrimSpace(username))] += delta
	return nil
}

func (t *memTx) HasOtherActiveMatch(username string) (bool, error) {
	for _, m := range t.store.matches {
		if m.ID == t.working.ID || m.Status != StatusActive {
			continue
		}
		if m.CanonicalParticipant(username) != "" {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Mutate(ctx context.Context, id string, fn func(tx Tx) *Error) (*Match, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.matches[id]
	if !ok {
		return nil, errNotFound("Oyun bulunamadı.")
	}

	tx := &memTx{store: s, working: cloneMatch(current), debits: make(map[string]int)}
	if err := fn(tx); err != nil {
		return nil, err
	}

	for key, delta := range tx.debits {
		if delta == 0 {
			continue
		}
		if u := s.users[key]; u != nil {
			u.Points += delta
		} else if s.autoPoints > 0 {
			name := key
			for _, p := range tx.working.Participants() {
				if strings.EqualFold(p, key) {
					name = p
				}
			}
			s.users[key] = &User{Username: name, Points: s.autoPoints + delta}
		}
	}
	s.matches[id] = cloneMatch(tx.working)
	return cloneMatch(tx.working), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id, actor string, privileged bool) (*Match, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, errNotFound("Oyun bulunamadı veya silme yetkin yok.")
	}
	if !privileged && m.CanonicalParticipant(actor) == "" {
		return nil, errNotFound("Oyun bulunamadı veya silme yetkin yok.")
	}
	delete(s.matches, id)
	return cloneMatch(m), nil
}

func (s *MemoryStore) ListWaiting(ctx context.Context, f WaitingFilter) ([]Summary, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0)
	for _, m := range s.matches {
		if m.Status != StatusWaiting || NormalizeGameType(m.GameType) == "" {
			continue
		}
		if f.TableCode != "" && !strings.EqualFold(m.Table, f.TableCode) {
			continue
		}
		if f.CafeID > 0 {
			host := s.lookupLocked(m.HostName)
			if host == nil || host.CafeID != f.CafeID {
				continue
			}
		}
		out = append(out, m.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindActiveByParticipant(ctx context.Context, username string) (*Match, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Match
	for _, m := range s.matches {
		if m.Status != StatusActive || NormalizeGameType(m.GameType) == "" {
			continue
		}
		if m.CanonicalParticipant(username) == "" {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneMatch(latest), nil
}

func (s *MemoryStore) History(ctx context.Context, username string, limit int) ([]Match, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Match, 0)
	for _, m := range s.matches {
		if m.Status != StatusFinished || NormalizeGameType(m.GameType) == "" {
			continue
		}
		if m.CanonicalParticipant(username) == "" {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]Match, 0, len(out))
	for _, m := range out {
		result = append(result, *cloneMatch(m))
	}
	return result, nil
}

func (s *MemoryStore) LookupUser(ctx context.Context, username string) (*User, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.lookupLocked(username); u != nil {
		cp := *u
		return &cp, nil
	}
	if s.autoPoints > 0 && strings.TrimSpace(username) != "" {
		u := &User{Username: strings.TrimSpace(username), Points: s.autoPoints}
		s.users[strings.ToLower(u.Username)] = u
		cp := *u
		return &cp, nil
	}
	return nil, errNotFound("Kullanıcı bulunamadı.")
}

func (s *MemoryStore) lookupLocked(username string) *User {
	return s.users[strings.ToLower(strings.TrimSpace(username))]
}

// cloneMatch deep-copies a match so callers never alias store-owned state.
func cloneMatch(m *Match) *Match {
	cp := *m
	if m.State.Results != nil {
		cp.State.Results = make(map[string]ScoreSubmission, len(m.State.Results))
		for k, v := range m.State.Results {
			sub := v
			if v.DurationMs != nil {
				d := *v.DurationMs
				sub.DurationMs = &d
			}
			cp.State.Results[k] = sub
		}
	}
	if m.State.Chess != nil {
		cs := *m.State.Chess
		cs.MoveHistory = append([]ChessMoveRecord{}, m.State.Chess.MoveHistory...)
		if m.State.Chess.DrawOffer != nil {
			do := *m.State.Chess.DrawOffer
			cs.DrawOffer = &do
		}
		cp.State.Chess = &cs
	}
	return &cp
}
