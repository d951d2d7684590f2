// This file, `handlers.go`, is the HTTP layer for account management. Handlers decode the
// request, call AccountService and write the `{"msg": ...}` style responses.
package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	// `apperror` provides standardized error types and responses.
	"github.com/user/akun-go/apperror"
	// `auth` carries the verified session and writes JSON responses.
	"github.com/user/akun-go/auth"
)

const (
	// MaxBodySize caps every request body handled here.
	MaxBodySize = 10 << 20
	// multipartMemory is how much of a multipart body is kept in memory; the rest spills
	// to temporary files.
	multipartMemory = 8 << 20
	imageField      = "image"
)

// Handlers provides the account endpoints.
type Handlers struct {
	service *AccountService
	log     logrus.FieldLogger
}

// NewHandlers creates Handlers.
func NewHandlers(service *AccountService, log logrus.FieldLogger) *Handlers {
	return &Handlers{service: service, log: log}
}

// Routes mounts the account endpoints on r. authn guards the endpoints that need a verified
// bearer token.
func (h *Handlers) Routes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestSize(MaxBodySize))

		r.Get("/users", h.HandleListUsers())
		r.Post("/users", h.HandleRegister())
		r.Post("/login", h.HandleLogin())
		r.Delete("/logout", h.HandleLogout())
		r.Patch("/password", h.HandleUpdatePassword())

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/me", h.HandleMe())
			r.Patch("/users", h.HandleUpdateProfile())
			r.Delete("/users", h.HandleDeleteAccount())
		})
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	auth.WriteError(w, r, h.log, err)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return apperror.NewBadRequestError("Request body too large", err)
		}
		return apperror.NewBadRequestError("Invalid request body", err)
	}
	return nil
}

// HandleListUsers godoc
// @Summary List users
// @Description Returns every registered account. Password hashes and session tokens are never included.
// @Tags users
// @Produce json
// @Success 200 {array} User
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [get]
func (h *Handlers) HandleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.service.ListUsers(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, list)
	}
}

// HandleRegister godoc
// @Summary Register a new account
// @Tags users
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Account details"
// @Success 200 {object} auth.MessageResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "Username already exists"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := h.service.Register(r.Context(), req); err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteMessage(w, http.StatusOK, MsgRegisterSuccess)
	}
}

// HandleLogin godoc
// @Summary Log in
// @Description Verifies the credentials and issues a session token. Any earlier session of the account stops being accepted.
// @Tags users
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} apperror.ErrorResponse "Wrong password"
// @Failure 404 {object} apperror.ErrorResponse "User not found"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		resp, err := h.service.Login(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleMe godoc
// @Summary Current account
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} User
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 500 {object} apperror.ErrorResponse
// @Router /me [get]
func (h *Handlers) HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			h.writeError(w, r, apperror.NewUnauthorizedError(MsgUnauthorized, nil))
			return
		}
		u, err := h.service.Me(r.Context(), session.Claims.UserID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteJSON(w, http.StatusOK, u)
	}
}

// HandleLogout godoc
// @Summary Log out
// @Description Revokes the bearer token if it is the account's current session. Without a token, or with one that is not current, the response is 204.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.MessageResponse
// @Success 204
// @Failure 500 {object} apperror.ErrorResponse
// @Router /logout [delete]
func (h *Handlers) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cleared, err := h.service.Logout(r.Context(), auth.BearerToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !cleared {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		auth.WriteMessage(w, http.StatusOK, MsgLogoutSuccess)
	}
}

// HandleUpdateProfile godoc
// @Summary Update profile
// @Description Overwrites name, email, phone and alamat (empty clears the field) and optionally replaces the profile image (png, jpg or jpeg, at most 5MB).
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string false "Name"
// @Param email formData string false "Email"
// @Param phone formData string false "Phone"
// @Param alamat formData string false "Address"
// @Param image formData file false "Profile image"
// @Success 200 {object} auth.MessageResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 422 {object} apperror.ErrorResponse "Invalid image type or image too large"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [patch]
func (h *Handlers) HandleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			h.writeError(w, r, apperror.NewUnauthorizedError(MsgUnauthorized, nil))
			return
		}

		in, img, cleanup, err := parseProfileRequest(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		defer cleanup()

		if err := h.service.UpdateProfile(r.Context(), session, in, img); err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteMessage(w, http.StatusOK, MsgUserUpdated)
	}
}

// parseProfileRequest accepts a JSON body, a urlencoded form or a multipart form with an
// optional `image` file. The returned cleanup closes the uploaded file.
func parseProfileRequest(r *http.Request) (ProfileInput, *ImageUpload, func(), error) {
	noop := func() {}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var in ProfileInput
		if err := decodeJSON(r, &in); err != nil {
			return ProfileInput{}, nil, noop, err
		}
		return in, nil, noop, nil
	}

	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return ProfileInput{}, nil, noop, apperror.NewUnprocessableError(MsgImageTooLarge, err)
		}
		return ProfileInput{}, nil, noop, apperror.NewBadRequestError("Invalid form data", err)
	}

	in := ProfileInput{
		Name:   r.PostFormValue("name"),
		Email:  r.PostFormValue("email"),
		Phone:  r.PostFormValue("phone"),
		Alamat: r.PostFormValue("alamat"),
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File[imageField]) == 0 {
		return in, nil, noop, nil
	}

	header := r.MultipartForm.File[imageField][0]
	file, err := header.Open()
	if err != nil {
		return ProfileInput{}, nil, noop, apperror.NewBadRequestError("Invalid image upload", err)
	}
	img := &ImageUpload{Filename: header.Filename, Size: header.Size, Content: file}
	return in, img, func() { _ = file.Close() }, nil
}

// HandleUpdatePassword godoc
// @Summary Update password
// @Tags users
// @Accept json
// @Produce json
// @Param body body UpdatePasswordRequest true "Email and new password"
// @Success 200 {object} auth.MessageResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "User not found"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /password [patch]
func (h *Handlers) HandleUpdatePassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdatePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := h.service.UpdatePassword(r.Context(), req); err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteMessage(w, http.StatusOK, MsgPasswordUpdated)
	}
}

// HandleDeleteAccount godoc
// @Summary Delete account
// @Description Deletes the caller's account. A custom profile image is removed as well.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.MessageResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [delete]
func (h *Handlers) HandleDeleteAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			h.writeError(w, r, apperror.NewUnauthorizedError(MsgUnauthorized, nil))
			return
		}
		if err := h.service.DeleteAccount(r.Context(), session); err != nil {
			h.writeError(w, r, err)
			return
		}
		auth.WriteMessage(w, http.StatusOK, MsgUserDeleted)
	}
}
