package store

import (
	"context"
	"sync"
	"time"

	"SOSRelay/internal/models"
	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"

	"github.com/google/uuid"
)

// Memory keeps every record in process. Records are copied in and out so
// callers never share state with the store.
type Memory struct {
	mu sync.RWMutex

	users   map[string]*models.User
	phones  map[string]string
	events  map[string]*models.SosEvent
	resps   map[string]*models.SosResponse
	evOrder []string
	rsOrder []string

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]*models.User),
		phones: make(map[string]string),
		events: make(map[string]*models.SosEvent),
		resps:  make(map[string]*models.SosResponse),
		now:    time.Now,
	}
}

func (m *Memory) Migrate(context.Context) error { return nil }
func (m *Memory) Ping(context.Context) error    { return nil }
func (m *Memory) Close() error                  { return nil }

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.phones[phone]
	if !ok {
		return nil, notFound("user with phone", phone)
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneUser(u)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := m.users[c.ID]; ok {
		return nil, errors.Conflict("user %s already exists", c.ID)
	}
	if _, ok := m.phones[c.Phone]; ok {
		return nil, errors.Conflict("phone %s already registered", c.Phone)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.users[c.ID] = c
	m.phones[c.Phone] = c.ID
	return cloneUser(c), nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, patch models.UserPatch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	patch.Apply(u)
	return cloneUser(u), nil
}

func (m *Memory) ListUsers(context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (m *Memory) ListUsersInRadius(_ context.Context, center geo.Coordinate, radiusKm float64) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.User
	for _, u := range m.users {
		if u.Reachable() && inRadius(center, u.Location.Coordinate(), radiusKm) {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (*models.SosEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, notFound("event", id)
	}
	return cloneEvent(e), nil
}

func (m *Memory) CreateEvent(_ context.Context, e *models.SosEvent) (*models.SosEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneEvent(e)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := m.events[c.ID]; ok {
		return nil, errors.Conflict("event %s already exists", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.events[c.ID] = c
	m.evOrder = append(m.evOrder, c.ID)
	return cloneEvent(c), nil
}

func (m *Memory) UpdateEvent(_ context.Context, id string, patch models.EventPatch) (*models.SosEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, notFound("event", id)
	}
	if e.Status.Terminal() && (patch.Status != nil || patch.TouchesImmutable()) {
		return nil, errors.Conflict("event %s is %s", id, e.Status)
	}
	patch.Apply(e)
	return cloneEvent(e), nil
}

func (m *Memory) TransitionEvent(_ context.Context, id string, from models.EventStatus, patch models.EventPatch) (*models.SosEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, notFound("event", id)
	}
	if e.Status != from {
		return nil, errors.Wrapf(ErrStatusMismatch, "event %s is %s", id, e.Status)
	}
	patch.Apply(e)
	return cloneEvent(e), nil
}

// ListEvents returns newest first.
func (m *Memory) ListEvents(context.Context) ([]*models.SosEvent, error) {
	return m.filterEvents(func(*models.SosEvent) bool { return true }), nil
}

func (m *Memory) ListActiveEvents(context.Context) ([]*models.SosEvent, error) {
	return m.filterEvents(func(e *models.SosEvent) bool { return e.Status == models.EventActive }), nil
}

func (m *Memory) ListActiveEventsInRadius(_ context.Context, center geo.Coordinate, radiusKm float64) ([]*models.SosEvent, error) {
	return m.filterEvents(func(e *models.SosEvent) bool {
		return e.Status == models.EventActive && inRadius(center, e.Location, radiusKm)
	}), nil
}

func (m *Memory) ListEventsByUser(_ context.Context, userID string) ([]*models.SosEvent, error) {
	return m.filterEvents(func(e *models.SosEvent) bool { return e.UserID == userID }), nil
}

func (m *Memory) filterEvents(keep func(*models.SosEvent) bool) []*models.SosEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.SosEvent
	for i := len(m.evOrder) - 1; i >= 0; i-- {
		if e := m.events[m.evOrder[i]]; keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

func (m *Memory) GetResponse(_ context.Context, id string) (*models.SosResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resps[id]
	if !ok {
		return nil, notFound("response", id)
	}
	c := *r
	return &c, nil
}

func (m *Memory) CreateResponse(_ context.Context, r *models.SosResponse) (*models.SosResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[r.EventID]; !ok {
		return nil, notFound("event", r.EventID)
	}
	c := *r
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := m.resps[c.ID]; ok {
		return nil, errors.Conflict("response %s already exists", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.resps[c.ID] = &c
	m.rsOrder = append(m.rsOrder, c.ID)
	out := c
	return &out, nil
}

func (m *Memory) UpdateResponse(_ context.Context, id string, patch models.ResponsePatch) (*models.SosResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resps[id]
	if !ok {
		return nil, notFound("response", id)
	}
	patch.Apply(r)
	c := *r
	return &c, nil
}

// ListResponsesByEvent returns responses in arrival order.
func (m *Memory) ListResponsesByEvent(_ context.Context, eventID string) ([]*models.SosResponse, error) {
	return m.filterResponses(func(r *models.SosResponse) bool { return r.EventID == eventID }), nil
}

func (m *Memory) ListResponsesByResponder(_ context.Context, userID string) ([]*models.SosResponse, error) {
	return m.filterResponses(func(r *models.SosResponse) bool { return r.ResponderID == userID }), nil
}

func (m *Memory) filterResponses(keep func(*models.SosResponse) bool) []*models.SosResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.SosResponse
	for _, id := range m.rsOrder {
		if r := m.resps[id]; keep(r) {
			c := *r
			out = append(out, &c)
		}
	}
	return out
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.Location != nil {
		loc := *u.Location
		c.Location = &loc
	}
	if u.MedicalInfo != nil {
		info := *u.MedicalInfo
		c.MedicalInfo = &info
	}
	c.EmergencyContacts = append([]models.EmergencyContact(nil), u.EmergencyContacts...)
	c.SafeZones = append([]models.SafeZone(nil), u.SafeZones...)
	return &c
}

func cloneEvent(e *models.SosEvent) *models.SosEvent {
	c := *e
	if e.ResolvedAt != nil {
		at := *e.ResolvedAt
		c.ResolvedAt = &at
	}
	if e.ResolvedBy != nil {
		by := *e.ResolvedBy
		c.ResolvedBy = &by
	}
	c.Photos = append([]string(nil), e.Photos...)
	c.Videos = append([]string(nil), e.Videos...)
	return &c
}

var _ Store = (*Memory)(nil)
