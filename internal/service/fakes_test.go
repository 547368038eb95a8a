package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory implementation of every repository interface.
// It stores copies, never the caller's pointers, so a service that mutates a
// loaded struct without calling Update can't accidentally change "the database".
//
// The *Err fields let a test simulate a storage failure on one operation.

type fakeStore struct {
	mu        sync.Mutex
	nextID    int
	clock     time.Time
	users     map[string]*model.User
	locations map[string]*model.Location
	items     map[string]*model.Item
	messages  map[string]*model.Message
	sessions  map[string]*model.Session

	// writes counts every successful mutation, so tests can assert "nothing written".
	writes int

	resolveErr       error
	getItemErr       error
	createSessionErr error
	deleteSessionErr error
}

var (
	_ repository.UserRepository     = (*fakeStore)(nil)
	_ repository.LocationRepository = (*fakeStore)(nil)
	_ repository.ItemRepository     = (*fakeStore)(nil)
	_ repository.MessageRepository  = (*fakeStore)(nil)
	_ repository.SessionRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		users:     make(map[string]*model.User),
		locations: make(map[string]*model.Location),
		items:     make(map[string]*model.Item),
		messages:  make(map[string]*model.Message),
		sessions:  make(map[string]*model.Session),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// tick returns a strictly increasing timestamp.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// --- users ---

func (f *fakeStore) ResolveByEmail(_ context.Context, email, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	u := &model.User{ID: f.id("user"), Email: email, Name: name, CreatedAt: f.tick()}
	f.users[u.ID] = u
	f.writes++
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) SetUserLocation(_ context.Context, userID, locationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	loc := locationID
	u.LocationID = &loc
	f.writes++
	return nil
}

// --- locations ---

func (f *fakeStore) CreateLocation(_ context.Context, loc *model.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc.ID = f.id("loc")
	loc.CreatedAt = f.tick()
	c := *loc
	f.locations[loc.ID] = &c
	f.writes++
	return nil
}

func (f *fakeStore) GetLocation(_ context.Context, id string) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[id]
	if !ok {
		return nil, apperror.NotFound("location", id)
	}
	c := *loc
	return &c, nil
}

func (f *fakeStore) GetLocationByName(_ context.Context, name string) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, loc := range f.locations {
		if loc.Name == name {
			c := *loc
			return &c, nil
		}
	}
	return nil, apperror.NotFound("location", name)
}

func (f *fakeStore) ListLocations(_ context.Context) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Location{}
	for _, loc := range f.locations {
		out = append(out, *loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- items ---

func (f *fakeStore) CreateItem(_ context.Context, item *model.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.id("item")
	item.CreatedAt = f.tick()
	c := *item
	f.items[item.ID] = &c
	f.writes++
	return nil
}

func (f *fakeStore) GetItem(_ context.Context, id string) (*model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getItemErr != nil {
		return nil, f.getItemErr
	}
	it, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("item", id)
	}
	c := *it
	return &c, nil
}

func (f *fakeStore) UpdateItem(_ context.Context, item *model.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[item.ID]
	if !ok || it.UserID != item.UserID {
		return apperror.NotFound("item", item.ID)
	}
	c := *item
	c.CreatedAt = it.CreatedAt
	f.items[item.ID] = &c
	f.writes++
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok || it.UserID != ownerID {
		return apperror.NotFound("item", id)
	}
	delete(f.items, id)
	f.writes++
	return nil
}

func (f *fakeStore) sortedItems(keep func(*model.Item) bool) []model.Item {
	out := []model.Item{}
	for _, it := range f.items {
		if keep(it) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) ListItems(_ context.Context) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedItems(func(*model.Item) bool { return true }), nil
}

func (f *fakeStore) RecentItems(_ context.Context, n int) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sortedItems(func(*model.Item) bool { return true })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeStore) ItemsByOwner(_ context.Context, userID string) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedItems(func(it *model.Item) bool { return it.UserID == userID }), nil
}

func (f *fakeStore) ItemsByLocation(_ context.Context, locationID string) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedItems(func(it *model.Item) bool {
		if it.LocationID != nil {
			return *it.LocationID == locationID
		}
		owner := f.users[it.UserID]
		return owner != nil && owner.LocationID != nil && *owner.LocationID == locationID
	}), nil
}

// --- messages ---

func (f *fakeStore) CreateMessage(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = f.id("msg")
	msg.CreatedAt = f.tick()
	c := *msg
	f.messages[msg.ID] = &c
	f.writes++
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, apperror.NotFound("message", id)
	}
	c := *m
	return &c, nil
}

func (f *fakeStore) DeleteMessage(_ context.Context, id, receiverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok || m.ReceiverID != receiverID {
		return apperror.NotFound("message", id)
	}
	delete(f.messages, id)
	f.writes++
	return nil
}

func (f *fakeStore) MessagesForReceiver(_ context.Context, receiverID string) ([]model.InboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.InboxEntry{}
	for _, m := range f.messages {
		if m.ReceiverID != receiverID {
			continue
		}
		e := model.InboxEntry{Message: *m}
		if it := f.items[m.ItemID]; it != nil {
			e.ItemName = it.Name
		}
		if u := f.users[m.SenderID]; u != nil {
			e.SenderEmail = u.Email
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- sessions ---

func (f *fakeStore) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createSessionErr != nil {
		return f.createSessionErr
	}
	c := *s
	f.sessions[s.ID] = &c
	f.writes++
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	c := *s
	return &c, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteSessionErr != nil {
		return f.deleteSessionErr
	}
	delete(f.sessions, id)
	f.writes++
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.Expired(time.Now()) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// FAKE PROVIDER AND RECORDER
// =========================================================================

type fakeProvider struct {
	user        *auth.ProviderUser
	exchangeErr error
	userInfoErr error
	revokeErr   error
	revoked     []string
	seenTokens  []string
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access-for-" + code}, nil
}

func (p *fakeProvider) UserInfo(_ context.Context, token *oauth2.Token) (*auth.ProviderUser, error) {
	if p.userInfoErr != nil {
		return nil, p.userInfoErr
	}
	p.seenTokens = append(p.seenTokens, token.AccessToken)
	u := *p.user
	return &u, nil
}

func (p *fakeProvider) Revoke(_ context.Context, accessToken string) error {
	p.revoked = append(p.revoked, accessToken)
	return p.revokeErr
}

type countingRecorder struct {
	events map[string]int
	denied map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{events: map[string]int{}, denied: map[string]int{}}
}

func (r *countingRecorder) RecordEvent(e string)   { r.events[e]++ }
func (r *countingRecorder) RecordDenied(op string) { r.denied[op]++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
