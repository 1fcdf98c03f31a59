package waitingroom

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/waiting-room/internal/redisclient"
)

// MemStore is an in-memory EntryStore and IdentityResolver for tests and
// local development. It enforces the same waiting-pair uniqueness the
// partial index does in Postgres.
type MemStore struct {
	mu      sync.Mutex
	clients map[uuid.UUID]Client
	pets    map[uuid.UUID]Pet
	entries map[uuid.UUID]WaitingEntry
}

func NewMemStore() *MemStore {
	return &MemStore{
		clients: make(map[uuid.UUID]Client),
		pets:    make(map[uuid.UUID]Pet),
		entries: make(map[uuid.UUID]WaitingEntry),
	}
}

func (s *MemStore) AddClient(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *MemStore) AddPet(p Pet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pets[p.ID] = p
}

// PutEntry stores an entry verbatim, bypassing the duplicate guard. Test
// seeding only.
func (s *MemStore) PutEntry(e WaitingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
}

// IdentityResolver

func (s *MemStore) ResolveClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (s *MemStore) ResolvePet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pets[id]
	if !ok {
		return nil, ErrPetNotFound
	}
	return &p, nil
}

func (s *MemStore) PetBelongsToClient(ctx context.Context, petID, clientID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pets[petID]
	if !ok {
		return false, ErrPetNotFound
	}
	return p.ClientID == clientID, nil
}

// EntryStore

func (s *MemStore) CreateEntry(ctx context.Context, entry *WaitingEntry) (*WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Status == StatusWaiting {
		for _, e := range s.entries {
			if e.ClientID == entry.ClientID && e.PetID == entry.PetID && e.Status == StatusWaiting {
				return nil, ErrDuplicateActiveVisit
			}
		}
	}

	now := time.Now().UTC()
	stored := *entry
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.entries[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetEntryByID(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (s *MemStore) FindByPairAndStatus(ctx context.Context, clientID, petID uuid.UUID, status Status) (*WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ClientID == clientID && e.PetID == petID && e.Status == status {
			out := e
			return &out, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *MemStore) FindByStatusIn(ctx context.Context, statuses ...Status) ([]WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []WaitingEntry
	for _, e := range s.entries {
		for _, st := range statuses {
			if e.Status == st {
				result = append(result, e)
				break
			}
		}
	}
	return result, nil
}

func (s *MemStore) FindByArrivalRange(ctx context.Context, from, to time.Time) ([]WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []WaitingEntry
	for _, e := range s.entries {
		if !e.ArrivalTime.Before(from) && e.ArrivalTime.Before(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) UpdateEntryStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Status != from {
		return nil, ErrEntryNotFound
	}

	e.Status = to
	switch {
	case to == StatusInConsultation:
		t := at
		e.ConsultationStartedAt = &t
	case to.IsTerminal():
		t := at
		e.CompletedAt = &t
	}
	e.UpdatedAt = time.Now().UTC()
	s.entries[id] = e

	out := e
	return &out, nil
}

func (s *MemStore) UpdateEntryPriority(ctx context.Context, id uuid.UUID, priority Priority) (*WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}

	e.Priority = priority
	e.UpdatedAt = time.Now().UTC()
	s.entries[id] = e

	out := e
	return &out, nil
}

func (s *MemStore) AppendEntryNote(ctx context.Context, id uuid.UUID, line string) (*WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}

	e.Notes = appendNote(e.Notes, line)
	e.UpdatedAt = time.Now().UTC()
	s.entries[id] = e

	out := e
	return &out, nil
}

func (s *MemStore) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemStore) SearchEntries(ctx context.Context, term string, limit, offset int) ([]EntryView, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)

	var matches []EntryView
	for _, e := range s.entries {
		v := EntryView{WaitingEntry: e}
		if c, ok := s.clients[e.ClientID]; ok {
			v.ClientName = c.Name
		}
		if p, ok := s.pets[e.PetID]; ok {
			v.PetName = p.Name
		}

		if needle != "" &&
			!strings.Contains(strings.ToLower(v.ClientName), needle) &&
			!strings.Contains(strings.ToLower(v.PetName), needle) &&
			!strings.Contains(strings.ToLower(e.ReasonForVisit), needle) {
			continue
		}
		matches = append(matches, v)
	}

	sortViewsByArrivalDesc(matches)
	return pageViews(matches, limit, offset)
}

func (s *MemStore) EntriesByArrivalRange(ctx context.Context, from, to time.Time, limit, offset int) ([]EntryView, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []EntryView
	for _, e := range s.entries {
		if e.ArrivalTime.Before(from) || !e.ArrivalTime.Before(to) {
			continue
		}
		v := EntryView{WaitingEntry: e}
		if c, ok := s.clients[e.ClientID]; ok {
			v.ClientName = c.Name
		}
		if p, ok := s.pets[e.PetID]; ok {
			v.PetName = p.Name
		}
		matches = append(matches, v)
	}

	sortViewsByArrivalDesc(matches)
	return pageViews(matches, limit, offset)
}

func sortViewsByArrivalDesc(views []EntryView) {
	sort.Slice(views, func(i, j int) bool {
		if !views[i].ArrivalTime.Equal(views[j].ArrivalTime) {
			return views[i].ArrivalTime.After(views[j].ArrivalTime)
		}
		return views[i].ID.String() < views[j].ID.String()
	})
}

func pageViews(views []EntryView, limit, offset int) ([]EntryView, int, error) {
	total := len(views)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return views[offset:end], total, nil
}

// PairMutexLocker is an in-process Locker: one mutex per (client, pet) pair.
// It gives the same serialization as the Redis locker within a single
// process.
type PairMutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPairMutexLocker() *PairMutexLocker {
	return &PairMutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *PairMutexLocker) WithPairLock(ctx context.Context, clientID, petID uuid.UUID, fn func(ctx context.Context) error) error {
	key := clientID.String() + ":" + petID.String()

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}

var _ redisclient.Locker = (*PairMutexLocker)(nil)
var _ EntryStore = (*MemStore)(nil)
var _ IdentityResolver = (*MemStore)(nil)
var _ EntryStore = (*PgStore)(nil)
var _ IdentityResolver = (*PgStore)(nil)
