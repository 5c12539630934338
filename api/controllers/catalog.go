package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veloshop/storefront-backend/api/responses"
	"github.com/veloshop/storefront-backend/api/validators"
	"github.com/veloshop/storefront-backend/internal/catalog"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
	"github.com/veloshop/storefront-backend/pkg/logger"
)

func CategoryList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		categories, err := svc.ListCategories(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": categories})
	}
}

func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		input, err := parseProductListInput(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListProducts(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product slug required"))
			return
		}

		product, err := svc.GetProduct(ctx, slug)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseProductListInput(r *http.Request) (catalog.ListProductsInput, error) {
	var input catalog.ListProductsInput

	params, err := validators.ParsePagination(r)
	if err != nil {
		return input, err
	}
	input.Pagination = params

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("category_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid category id")
		}
		input.Filters.CategoryID = &id
	}
	input.Filters.CategorySlug = strings.TrimSpace(query.Get("category"))
	input.Filters.Query = strings.TrimSpace(query.Get("q"))

	if min, err := validators.ParseQueryInt(r, "price_min", -1, 0, 1<<30); err != nil {
		return input, err
	} else if min >= 0 {
		input.Filters.PriceMinCents = &min
	}
	if max, err := validators.ParseQueryInt(r, "price_max", -1, 0, 1<<30); err != nil {
		return input, err
	} else if max >= 0 {
		input.Filters.PriceMaxCents = &max
	}

	inStock, err := validators.ParseQueryBool(r, "in_stock")
	if err != nil {
		return input, err
	}
	input.Filters.InStock = inStock

	return input, nil
}
