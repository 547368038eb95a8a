package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/repository"
	"github.com/sakif/trading-post/internal/security"
)

// RecentItemsLimit is how many items the home page shows.
const RecentItemsLimit = 5

// CatalogService owns locations and items: listings, the browsing side effect,
// and owner-only item mutations.
type CatalogService struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	items     repository.ItemRepository
	validate  *validator.Validate
	clean     *security.TextSanitizer
	events    EventRecorder
	logger    *slog.Logger
}

func NewCatalogService(
	users repository.UserRepository,
	locations repository.LocationRepository,
	items repository.ItemRepository,
	events EventRecorder,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		users:     users,
		locations: locations,
		items:     items,
		validate:  newValidator(),
		clean:     security.NewTextSanitizer(),
		events:    recorderOrNop(events),
		logger:    logger,
	}
}

// =========================================================================
// READ PATHS
// =========================================================================

func (s *CatalogService) Locations(ctx context.Context) ([]model.Location, error) {
	locs, err := s.locations.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing locations: %w", err)
	}
	return locs, nil
}

func (s *CatalogService) Location(ctx context.Context, id string) (*model.Location, error) {
	loc, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: fetching location %s: %w", id, err)
	}
	return loc, nil
}

// RecentItems returns the newest items for the home page.
func (s *CatalogService) RecentItems(ctx context.Context) ([]model.Item, error) {
	items, err := s.items.RecentItems(ctx, RecentItemsLimit)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing recent items: %w", err)
	}
	return items, nil
}

func (s *CatalogService) AllItems(ctx context.Context) ([]model.Item, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing items: %w", err)
	}
	return items, nil
}

// ItemsForLocation lists a location's items without side effects.
// An unknown location is NotFound rather than an empty list.
func (s *CatalogService) ItemsForLocation(ctx context.Context, locationID string) (*model.Location, []model.Item, error) {
	loc, err := s.Location(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.items.ItemsByLocation(ctx, loc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/catalog: listing items at %s: %w", loc.ID, err)
	}
	return loc, items, nil
}

// ItemsAtLocation is ItemsForLocation for a browsing user: after the read, a
// signed-in viewer's current location is set to the one they are looking at.
// Anonymous viewers (viewerID == "") cause no write.
func (s *CatalogService) ItemsAtLocation(ctx context.Context, locationID, viewerID string) (*model.Location, []model.Item, error) {
	loc, items, err := s.ItemsForLocation(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}

	if viewerID != "" {
		if err := s.users.SetUserLocation(ctx, viewerID, loc.ID); err != nil {
			return nil, nil, fmt.Errorf("service/catalog: recording location for %s: %w", viewerID, err)
		}
	}
	return loc, items, nil
}

func (s *CatalogService) Item(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: fetching item %s: %w", id, err)
	}
	return item, nil
}

func (s *CatalogService) ItemsByOwner(ctx context.Context, userID string) ([]model.Item, error) {
	items, err := s.items.ItemsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing items for %s: %w", userID, err)
	}
	return items, nil
}

// OwnedItem returns an item only if userID owns it.
func (s *CatalogService) OwnedItem(ctx context.Context, userID, itemID string) (*model.Item, error) {
	return s.authorizedItem(ctx, userID, itemID, OpView)
}

// ItemForEdit loads an item for the edit or delete form, with the same
// ownership check the mutation will apply.
func (s *CatalogService) ItemForEdit(ctx context.Context, userID, itemID string, op Operation) (*model.Item, error) {
	return s.authorizedItem(ctx, userID, itemID, op)
}

// =========================================================================
// MUTATIONS
// =========================================================================

// CreateItem validates the input and stores a new item owned by ownerID.
func (s *CatalogService) CreateItem(ctx context.Context, ownerID string, in model.ItemInput) (*model.Item, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized("sign in to add items")
	}

	in, err := s.checkInput(ctx, in)
	if err != nil {
		return nil, err
	}

	item := &model.Item{UserID: ownerID}
	applyInput(item, in)

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/catalog: creating item: %w", err)
	}

	s.events.RecordEvent(EventItemCreated)
	s.logger.Info("item created",
		slog.String("itemID", item.ID),
		slog.String("userID", ownerID),
	)
	return item, nil
}

// UpdateItem applies an edit. The owner is checked before the input is even
// looked at, so a non-owner learns nothing about validation rules and the
// stored row is untouched.
func (s *CatalogService) UpdateItem(ctx context.Context, userID, itemID string, in model.ItemInput) (*model.Item, error) {
	item, err := s.authorizedItem(ctx, userID, itemID, OpEdit)
	if err != nil {
		return nil, err
	}

	in, err = s.checkInput(ctx, in)
	if err != nil {
		return nil, err
	}

	updated := *item
	applyInput(&updated, in)

	if err := s.items.UpdateItem(ctx, &updated); err != nil {
		return nil, fmt.Errorf("service/catalog: updating item %s: %w", itemID, err)
	}

	s.events.RecordEvent(EventItemUpdated)
	s.logger.Info("item updated",
		slog.String("itemID", itemID),
		slog.String("userID", userID),
	)
	return &updated, nil
}

// DeleteItem removes an item owned by userID.
func (s *CatalogService) DeleteItem(ctx context.Context, userID, itemID string) error {
	if _, err := s.authorizedItem(ctx, userID, itemID, OpDelete); err != nil {
		return err
	}

	if err := s.items.DeleteItem(ctx, itemID, userID); err != nil {
		return fmt.Errorf("service/catalog: deleting item %s: %w", itemID, err)
	}

	s.events.RecordEvent(EventItemDeleted)
	s.logger.Info("item deleted",
		slog.String("itemID", itemID),
		slog.String("userID", userID),
	)
	return nil
}

// authorizedItem loads the item (NotFound first) and then applies the owner rule.
func (s *CatalogService) authorizedItem(ctx context.Context, userID, itemID string, op Operation) (*model.Item, error) {
	item, err := s.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := AuthorizeItem(userID, item, op); err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			s.events.RecordDenied(string(op))
			s.logger.Warn("item access denied",
				slog.String("itemID", itemID),
				slog.String("userID", userID),
				slog.String("operation", string(op)),
			)
		}
		return nil, err
	}
	return item, nil
}

// checkInput trims and sanitizes the free-text fields, then validates.
// An unknown location is reported as a field error, not a 404.
func (s *CatalogService) checkInput(ctx context.Context, in model.ItemInput) (model.ItemInput, error) {
	in.Name = s.clean.Clean(in.Name)
	in.Description = s.clean.Clean(in.Description)
	in.Cardset = s.clean.Clean(in.Cardset)
	in.Condition = s.clean.Clean(in.Condition)
	in.Price = strings.TrimSpace(in.Price)
	in.LocationID = strings.TrimSpace(in.LocationID)

	if err := validateStruct(s.validate, in); err != nil {
		return in, err
	}

	if in.LocationID != "" {
		if _, err := s.locations.GetLocation(ctx, in.LocationID); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return in, apperror.ValidationFailed("location_id", "location does not exist")
			}
			return in, fmt.Errorf("service/catalog: checking location %s: %w", in.LocationID, err)
		}
	}
	return in, nil
}

func applyInput(item *model.Item, in model.ItemInput) {
	item.Name = in.Name
	item.Description = in.Description
	item.Cardset = in.Cardset
	item.Condition = in.Condition
	item.Price = in.Price
	item.Quantity = in.Quantity
	if in.LocationID == "" {
		item.LocationID = nil
	} else {
		loc := in.LocationID
		item.LocationID = &loc
	}
}
