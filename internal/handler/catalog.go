package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/model"
	"github.com/sakif/trading-post/internal/service"
)

// CatalogHandler serves locations and items: the public listings, the JSON
// feeds, and the owner-only item forms.
//
// Handlers stay thin: parse the request, call CatalogService, render. Every
// ownership and validation rule lives in the service.
type CatalogHandler struct {
	catalog *service.CatalogService
	pages   *Pages
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, pages *Pages, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, pages: pages, logger: logger}
}

type itemsPage struct {
	Location *model.Location
	Items    []model.Item
}

type itemPage struct {
	Item    *model.Item
	IsOwner bool
	Body    string
	Errors  map[string]string
}

type itemFormPage struct {
	ItemID string
	Action string
	Input  model.ItemInput
	Errors map[string]string
}

// =========================================================================
// JSON FEEDS
// =========================================================================

// HandleLocationsJSON lists every location.
//
// HTTP: GET /locations/JSON
func (h *CatalogHandler) HandleLocationsJSON(w http.ResponseWriter, r *http.Request) {
	locs, err := h.catalog.Locations(r.Context())
	if err != nil {
		h.logger.Error("listing locations", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

// HandleLocationItemsJSON lists the items at one location.
//
// HTTP: GET /locations/{id}/JSON
func (h *CatalogHandler) HandleLocationItemsJSON(w http.ResponseWriter, r *http.Request) {
	_, items, err := h.catalog.ItemsForLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleItemsJSON lists every item.
//
// HTTP: GET /items/JSON
func (h *CatalogHandler) HandleItemsJSON(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.AllItems(r.Context())
	if err != nil {
		h.logger.Error("listing items", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// =========================================================================
// PAGES
// =========================================================================

// HandleHome shows the newest items.
//
// HTTP: GET /
func (h *CatalogHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.RecentItems(r.Context())
	if err != nil {
		h.pages.Fail(w, r, err, "/")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageHome, "Latest items", itemsPage{Items: items})
}

// HandleLocation lists a location's items. A signed-in viewer's current
// location becomes this one.
//
// HTTP: GET /locations/{id}/ and /locations/{id}/items/
func (h *CatalogHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	loc, items, err := h.catalog.ItemsAtLocation(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		h.pages.Fail(w, r, err, "/")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageLocation, loc.Name, itemsPage{Location: loc, Items: items})
}

// HandleItem shows an item with a message form for signed-in non-owners.
//
// HTTP: GET /items/{id}
func (h *CatalogHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, "/")
		return
	}
	renderItem(h.pages, w, r, http.StatusOK, item, "", nil)
}

func renderItem(p *Pages, w http.ResponseWriter, r *http.Request, status int, item *model.Item, body string, errs map[string]string) {
	userID, _ := auth.UserIDFromContext(r.Context())
	p.Render(w, r, status, pageItem, item.Name, itemPage{
		Item:    item,
		IsOwner: userID != "" && userID == item.UserID,
		Body:    body,
		Errors:  errs,
	})
}

// HandleUserItems lists the signed-in user's items.
//
// HTTP: GET /user/items/
func (h *CatalogHandler) HandleUserItems(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	items, err := h.catalog.ItemsByOwner(r.Context(), userID)
	if err != nil {
		h.pages.Fail(w, r, err, "/")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageUserItems, "My items", itemsPage{Items: items})
}

// HandleUserItem shows one of the signed-in user's own items.
//
// HTTP: GET /user/items/{id}
func (h *CatalogHandler) HandleUserItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	item, err := h.catalog.OwnedItem(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.pages.Fail(w, r, err, "/user/items/")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageUserItem, item.Name, itemPage{Item: item, IsOwner: true})
}

// =========================================================================
// ITEM FORMS
// =========================================================================

// HandleNewItem shows the empty add form.
//
// HTTP: GET /additem
func (h *CatalogHandler) HandleNewItem(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, pageItemForm, "New item", itemFormPage{
		Action: "/additem",
		Input:  model.ItemInput{Quantity: 1},
	})
}

// HandleCreateItem stores a new item owned by the signed-in user.
//
// HTTP: POST /additem
func (h *CatalogHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	form := itemFormPage{Action: "/additem"}

	in, errs := decodeItemForm(r)
	form.Input = in
	if len(errs) > 0 {
		form.Errors = errs
		h.pages.Render(w, r, http.StatusUnprocessableEntity, pageItemForm, "New item", form)
		return
	}

	if _, err := h.catalog.CreateItem(r.Context(), userID, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			form.Errors = fieldErrors(err)
			h.pages.Render(w, r, http.StatusUnprocessableEntity, pageItemForm, "New item", form)
			return
		}
		h.pages.Fail(w, r, err, "/user/items/")
		return
	}

	h.pages.Redirect(w, r, "/user/items/", "New item created!")
}

// HandleEditItem shows the edit form, owner only.
//
// HTTP: GET /items/{id}/edit
func (h *CatalogHandler) HandleEditItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "id")

	item, err := h.catalog.ItemForEdit(r.Context(), userID, itemID, service.OpEdit)
	if err != nil {
		h.pages.Fail(w, r, err, "/user/items/")
		return
	}

	h.pages.Render(w, r, http.StatusOK, pageItemForm, "Edit "+item.Name, itemFormPage{
		ItemID: item.ID,
		Action: "/items/" + item.ID + "/edit",
		Input:  inputFromItem(item),
	})
}

// HandleUpdateItem applies the edit form.
//
// HTTP: POST /items/{id}/edit
func (h *CatalogHandler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	itemID := chi.URLParam(r, "id")
	form := itemFormPage{ItemID: itemID, Action: "/items/" + itemID + "/edit"}

	in, errs := decodeItemForm(r)
	form.Input = in
	if len(errs) > 0 {
		// Ownership still comes first: a non-owner gets the usual refusal
		// rather than a form with errors.
		if _, err := h.catalog.ItemForEdit(r.Context(), userID, itemID, service.OpEdit); err != nil {
			h.pages.Fail(w, r, err, "/user/items/")
			return
		}
		form.Errors = errs
		h.pages.Render(w, r, http.StatusUnprocessableEntity, pageItemForm, "Edit item", form)
		return
	}

	if _, err := h.catalog.UpdateItem(r.Context(), userID, itemID, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			form.Errors = fieldErrors(err)
			h.pages.Render(w, r, http.StatusUnprocessableEntity, pageItemForm, "Edit item", form)
			return
		}
		h.pages.Fail(w, r, err, "/user/items/")
		return
	}

	h.pages.Redirect(w, r, "/user/items/", "Item edited!")
}

// HandleDeleteItemForm asks for confirmation, owner only.
//
// HTTP: GET /items/{id}/delete
func (h *CatalogHandler) HandleDeleteItemForm(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	item, err := h.catalog.ItemForEdit(r.Context(), userID, chi.URLParam(r, "id"), service.OpDelete)
	if err != nil {
		h.pages.Fail(w, r, err, "/user/items/")
		return
	}
	h.pages.Render(w, r, http.StatusOK, pageItemDelete, "Delete "+item.Name, itemPage{Item: item, IsOwner: true})
}

// HandleDeleteItem deletes the item and its messages.
//
// HTTP: POST /items/{id}/delete
func (h *CatalogHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.catalog.DeleteItem(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.pages.Fail(w, r, err, "/user/items/")
		return
	}
	h.pages.Redirect(w, r, "/user/items/", "Item deleted!")
}

// decodeItemForm reads the add/edit form. Only the quantity can fail to
// parse here; every other rule is the service's.
func decodeItemForm(r *http.Request) (model.ItemInput, map[string]string) {
	in := model.ItemInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Cardset:     r.PostFormValue("cardset"),
		Condition:   r.PostFormValue("condition"),
		Price:       r.PostFormValue("price"),
		LocationID:  r.PostFormValue("location_id"),
	}

	errs := map[string]string{}
	if q := strings.TrimSpace(r.PostFormValue("quantity")); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			errs["quantity"] = "quantity must be a whole number"
		}
		in.Quantity = n
	} else {
		in.Quantity = 1
	}
	return in, errs
}

func inputFromItem(item *model.Item) model.ItemInput {
	in := model.ItemInput{
		Name:        item.Name,
		Description: item.Description,
		Cardset:     item.Cardset,
		Condition:   item.Condition,
		Price:       item.Price,
		Quantity:    item.Quantity,
	}
	if item.LocationID != nil {
		in.LocationID = *item.LocationID
	}
	return in
}
