// Package seed loads starter data from a YAML file into the repositories.
//
// Locations have no web route for creating them, so a fresh deployment gets its
// locations (and, for development, some users, items and messages) from here.
//
// Applying the same file twice leaves the database unchanged: users are
// resolved by email, locations by name, items by owner and name, and a message
// is skipped when the receiver already has the same text from the same sender
// about the same item.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
	"github.com/sakif/trading-post/internal/service"
)

// File is the top-level shape of a seed file. Records refer to each other by
// natural key (location name, user email, item name) rather than by ID.
type File struct {
	Locations []string  `yaml:"locations"`
	Users     []User    `yaml:"users"`
	Items     []Item    `yaml:"items"`
	Messages  []Message `yaml:"messages"`
}

type User struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

type Item struct {
	Owner       string `yaml:"owner"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Cardset     string `yaml:"cardset"`
	Condition   string `yaml:"condition"`
	Price       string `yaml:"price"`
	Quantity    int    `yaml:"quantity"`
	Location    string `yaml:"location"`
}

type Message struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Item string `yaml:"item"`
	Body string `yaml:"body"`
}

// Store is every repository the seeder writes through.
type Store interface {
	repository.UserRepository
	repository.LocationRepository
	repository.ItemRepository
	repository.MessageRepository
}

// Result counts the rows Apply created.
type Result struct {
	Locations int
	Users     int
	Items     int
	Messages  int
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed file. Unknown keys are rejected so a typo does not
// silently drop data.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, fmt.Errorf("seed: parsing: %w", err)
	}
	return &file, nil
}

// seeder keeps the natural-key lookups built up while applying a file.
// Items go through the catalog service so a seed file obeys the same
// validation as the add-item form.
type seeder struct {
	store   Store
	catalog *service.CatalogService
	logger  *slog.Logger
	res     Result

	locations map[string]string      // name → id
	users     map[string]*model.User // email → user
	items     map[string]*model.Item // owner email + "/" + item name → item
}

// Apply writes file into store in dependency order: locations, users, items,
// messages.
func Apply(ctx context.Context, store Store, file *File, logger *slog.Logger) (Result, error) {
	s := &seeder{
		store:     store,
		catalog:   service.NewCatalogService(store, store, store, nil, logger),
		logger:    logger,
		locations: make(map[string]string),
		users:     make(map[string]*model.User),
		items:     make(map[string]*model.Item),
	}

	for _, name := range file.Locations {
		if _, err := s.location(ctx, name); err != nil {
			return s.res, err
		}
	}
	for _, u := range file.Users {
		if err := s.user(ctx, u); err != nil {
			return s.res, err
		}
	}
	for _, it := range file.Items {
		if err := s.item(ctx, it); err != nil {
			return s.res, err
		}
	}
	for _, m := range file.Messages {
		if err := s.message(ctx, m); err != nil {
			return s.res, err
		}
	}

	return s.res, nil
}

func (s *seeder) location(ctx context.Context, name string) (string, error) {
	if id, ok := s.locations[name]; ok {
		return id, nil
	}

	loc, err := s.store.GetLocationByName(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		loc = &model.Location{Name: name}
		if err := s.store.CreateLocation(ctx, loc); err != nil {
			return "", fmt.Errorf("seed: location %q: %w", name, err)
		}
		s.res.Locations++
		s.logger.Info("location created", slog.String("name", name))
	default:
		return "", fmt.Errorf("seed: location %q: %w", name, err)
	}

	s.locations[name] = loc.ID
	return loc.ID, nil
}

func (s *seeder) user(ctx context.Context, in User) error {
	if in.Email == "" {
		return fmt.Errorf("seed: user without email")
	}

	_, err := s.store.GetUserByEmail(ctx, in.Email)
	isNew := errors.Is(err, apperror.ErrNotFound)
	if err != nil && !isNew {
		return fmt.Errorf("seed: user %s: %w", in.Email, err)
	}

	u, err := s.store.ResolveByEmail(ctx, in.Email, in.Name)
	if err != nil {
		return fmt.Errorf("seed: user %s: %w", in.Email, err)
	}
	if isNew {
		s.res.Users++
		s.logger.Info("user created", slog.String("email", in.Email))
	}

	if in.Location != "" {
		locID, err := s.location(ctx, in.Location)
		if err != nil {
			return err
		}
		if u.LocationID == nil || *u.LocationID != locID {
			if err := s.store.SetUserLocation(ctx, u.ID, locID); err != nil {
				return fmt.Errorf("seed: user %s: %w", in.Email, err)
			}
			u.LocationID = &locID
		}
	}

	s.users[in.Email] = u
	return nil
}

func (s *seeder) lookupUser(email string) (*model.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, fmt.Errorf("seed: unknown user %q (list it under users)", email)
	}
	return u, nil
}

func (s *seeder) item(ctx context.Context, in Item) error {
	owner, err := s.lookupUser(in.Owner)
	if err != nil {
		return err
	}
	key := in.Owner + "/" + in.Name

	owned, err := s.store.ItemsByOwner(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("seed: item %q: %w", in.Name, err)
	}
	for i := range owned {
		if owned[i].Name == in.Name {
			s.items[key] = &owned[i]
			return nil
		}
	}

	input := model.ItemInput{
		Name:        in.Name,
		Description: in.Description,
		Cardset:     in.Cardset,
		Condition:   in.Condition,
		Price:       in.Price,
		Quantity:    in.Quantity,
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if in.Location != "" {
		locID, err := s.location(ctx, in.Location)
		if err != nil {
			return err
		}
		input.LocationID = locID
	}

	item, err := s.catalog.CreateItem(ctx, owner.ID, input)
	if err != nil {
		return fmt.Errorf("seed: item %q: %w", in.Name, err)
	}
	s.res.Items++
	s.items[key] = item
	return nil
}

func (s *seeder) message(ctx context.Context, in Message) error {
	if strings.TrimSpace(in.Body) == "" {
		return fmt.Errorf("seed: message from %s has no body", in.From)
	}
	from, err := s.lookupUser(in.From)
	if err != nil {
		return err
	}
	to, err := s.lookupUser(in.To)
	if err != nil {
		return err
	}

	// The item normally belongs to the receiver; a reply is about the
	// sender's own item.
	item, ok := s.items[in.To+"/"+in.Item]
	if !ok {
		item, ok = s.items[in.From+"/"+in.Item]
	}
	if !ok {
		return fmt.Errorf("seed: message about unknown item %q", in.Item)
	}

	inbox, err := s.store.MessagesForReceiver(ctx, to.ID)
	if err != nil {
		return fmt.Errorf("seed: message to %s: %w", in.To, err)
	}
	for _, m := range inbox {
		if m.SenderID == from.ID && m.ItemID == item.ID && m.Body == in.Body {
			return nil
		}
	}

	msg := &model.Message{SenderID: from.ID, ReceiverID: to.ID, ItemID: item.ID, Body: in.Body}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("seed: message to %s: %w", in.To, err)
	}
	s.res.Messages++
	return nil
}
