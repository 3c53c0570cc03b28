package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-auth-api/internal/model"
	"go-auth-api/pkg/apierror"
)

// UserIDParam is the route parameter carrying the target user id.
const UserIDParam = "userId"

type userService interface {
	CreateUser(ctx context.Context, candidate model.UserCandidate) (model.User, error)
	ListUsers(ctx context.Context, filter model.UserFilter, opts model.ListOptions) (model.UserPage, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	UpdateUserByID(ctx context.Context, id string, update model.UserUpdate) (model.User, error)
	DeleteUserByID(ctx context.Context, id string) error
}

type UserHandler struct {
	service userService
	opts    Options
}

func NewUserHandler(service userService, opts Options) *UserHandler {
	return &UserHandler{service: service, opts: opts}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUserRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Candidate())
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusCreated, user.View(), nil)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	page, err := h.service.ListUsers(r.Context(), query.Filter(), query.Options())
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, model.Views(page.Results), page.Meta())
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), chi.URLParam(r, UserIDParam))
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, user.View(), nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload model.UpdateUserRequest
	if err := bind(r, w, &payload); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	user, err := h.service.UpdateUserByID(r.Context(), chi.URLParam(r, UserIDParam), payload.Update())
	if err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeSuccess(w, http.StatusOK, user.View(), nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUserByID(r.Context(), chi.URLParam(r, UserIDParam)); err != nil {
		writeError(w, r, err, h.opts)
		return
	}

	writeNoContent(w)
}

func parseListQuery(r *http.Request) (model.ListUsersQuery, error) {
	values := r.URL.Query()
	query := model.ListUsersQuery{
		Role:   values.Get("role"),
		SortBy: values.Get("sortBy"),
	}

	if err := parsePaging(values, &query.Limit, &query.Page); err != nil {
		return model.ListUsersQuery{}, err
	}
	if err := validate(query); err != nil {
		return model.ListUsersQuery{}, err
	}
	return query, nil
}

// parsePaging reads the limit and page parameters. A parameter that is
// present must be a positive integer; ozzo treats zero as absent.
func parsePaging(values url.Values, limit *int, page *int) error {
	for name, dst := range map[string]*int{"limit": limit, "page": page} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apierror.Validation(name + ": must be an integer")
		}
		if n < 1 {
			return apierror.Validation(name + ": must be no less than 1")
		}
		*dst = n
	}
	return nil
}
