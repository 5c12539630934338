package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/api/middleware"
	"github.com/veloshop/storefront-backend/api/responses"
	"github.com/veloshop/storefront-backend/api/validators"
	"github.com/veloshop/storefront-backend/internal/cart"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
)

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// cartIdentity builds the cart owner from the request context. Both the
// authenticated user and the anonymous session id are forwarded when
// present so Resolve can merge a pre-login cart into the user's cart.
func cartIdentity(r *http.Request) (cart.Identity, error) {
	var identity cart.Identity
	if userID := middleware.UserIDFromContext(r.Context()); userID != uuid.Nil {
		identity.UserID = &userID
	}
	if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
		identity.SessionID = &sessionID
	}
	if identity.UserID == nil && identity.SessionID == nil {
		return identity, pkgerrors.New(pkgerrors.CodeValidation, "missing cart identity")
	}
	return identity, nil
}

func resolveCart(r *http.Request, svc cart.Service) (*models.Cart, error) {
	identity, err := cartIdentity(r)
	if err != nil {
		return nil, err
	}
	return svc.Resolve(r.Context(), identity)
}

func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resolved, err := resolveCart(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items, err := svc.Items(ctx, resolved.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart": resolved, "items": items})
	}
}

func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body cart.AddItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolved, err := resolveCart(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		item, err := svc.Add(ctx, resolved.ID, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolved, err := resolveCart(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.UpdateItem(ctx, resolved.ID, itemID, body.Quantity); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resolved, err := resolveCart(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.RemoveItem(ctx, resolved.ID, itemID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resolved, err := resolveCart(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Clear(ctx, resolved.ID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
