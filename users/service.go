// This file, `service.go`, contains the account business logic. Handlers translate HTTP
// into calls on AccountService; every error it returns is an *apperror.AppError.
package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/user/akun-go/apperror"
	// `auth` hashes passwords and issues the session tokens.
	"github.com/user/akun-go/auth"
	// `background` runs image writes and removals off the request path.
	"github.com/user/akun-go/background"
	"github.com/user/akun-go/storage"
)

// MaxImageSize is the largest accepted profile image, in bytes.
const MaxImageSize = 5_000_000

// Response messages shared with the handlers and relied on by clients.
const (
	MsgRegisterSuccess  = "Register success"
	MsgUsernameTaken    = "Username already exists"
	MsgUserNotFound     = "User not found"
	MsgWrongPassword    = "Wrong password"
	MsgUnauthorized     = "Unauthorized"
	MsgLogoutSuccess    = "Logout successful"
	MsgInvalidImageType = "Invalid image type"
	MsgImageTooLarge    = "Max image size is 5MB"
	MsgUserUpdated      = "User updated successfully"
	MsgPasswordUpdated  = "Password updated successfully"
	MsgUserDeleted      = "User deleted successfully"
)

var allowedImageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// TaskSubmitter accepts detached work. *background.Runner implements it.
type TaskSubmitter interface {
	Submit(task background.Task)
}

// AccountService implements the account operations on top of a Store.
type AccountService struct {
	store     Store
	hasher    auth.Hasher
	tokens    *auth.TokenIssuer
	images    storage.ImageStore
	tasks     TaskSubmitter
	publicURL string
	validate  *validator.Validate
	log       logrus.FieldLogger
}

// NewAccountService wires the service. publicURL is the externally visible base URL that
// image URLs are built from.
func NewAccountService(
	store Store,
	hasher auth.Hasher,
	tokens *auth.TokenIssuer,
	images storage.ImageStore,
	tasks TaskSubmitter,
	publicURL string,
	log logrus.FieldLogger,
) *AccountService {
	return &AccountService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		images:    images,
		tasks:     tasks,
		publicURL: strings.TrimRight(publicURL, "/"),
		validate:  newValidator(),
		log:       log,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt rejects passwords longer than 72 bytes, whatever their rune count
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= limit
	})
	return v
}

func (s *AccountService) validateStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.NewValidationError("Invalid request body", err)
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "maxbytes":
		msg = fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return apperror.NewValidationError(msg, err)
}

// ImageURL returns the public URL of a stored image.
func (s *AccountService) ImageURL(image string) string {
	return s.publicURL + "/images/" + image
}

// ListUsers returns every account.
func (s *AccountService) ListUsers(ctx context.Context) ([]User, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list users", err)
	}
	if list == nil {
		list = []User{}
	}
	return list, nil
}

// Register creates an account with role "user" and the default image.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) error {
	if err := s.validateStruct(req); err != nil {
		return err
	}

	_, err := s.store.FindByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return apperror.NewNotFoundError(MsgUsernameTaken, nil)
	case !errors.Is(err, ErrNotFound):
		return apperror.NewDatabaseError("failed to look up username", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}

	u := &User{
		Username: req.Username,
		Email:    nullable(req.Email),
		Password: hash,
		Image:    storage.DefaultImage,
		Role:     DefaultRole,
	}
	if err := s.store.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration of the same name
		if errors.Is(err, ErrDuplicateUsername) {
			return apperror.NewNotFoundError(MsgUsernameTaken, err)
		}
		return apperror.NewDatabaseError("failed to create user", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	return nil
}

// Login checks credentials, issues a session token and makes it the user's only valid
// session.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	u, err := s.store.FindByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NewNotFoundError(MsgUserNotFound, err)
	}
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}

	if !s.hasher.Verify(req.Password, u.Password) {
		return nil, apperror.NewBadRequestError(MsgWrongPassword, nil)
	}

	token, err := s.tokens.Issue(auth.Claims{
		UserID:   u.ID,
		Name:     deref(u.Name),
		Username: u.Username,
		Email:    deref(u.Email),
		Phone:    deref(u.Phone),
		Role:     u.Role,
		Image:    u.Image,
		URL:      deref(u.URL),
	})
	if err != nil {
		return nil, apperror.NewInternalError("failed to issue token", err)
	}

	if err := s.store.SetSessionToken(ctx, u.ID, token); err != nil {
		return nil, apperror.NewDatabaseError("failed to store session", err)
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return &LoginResponse{AccessToken: token, Role: u.Role}, nil
}

// Me returns the account a verified token belongs to.
func (s *AccountService) Me(ctx context.Context, userID uint) (*User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NewUnauthorizedError(MsgUnauthorized, err)
	}
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}
	return u, nil
}

// Logout revokes token if it is some user's current session. It reports whether a
// session was revoked; unknown or already revoked tokens are not an error.
func (s *AccountService) Logout(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	u, err := s.store.FindBySessionToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperror.NewDatabaseError("failed to look up session", err)
	}

	cleared, err := s.store.ClearSessionToken(ctx, u.ID, token)
	if err != nil {
		return false, apperror.NewDatabaseError("failed to clear session", err)
	}
	if cleared {
		s.log.WithField("user_id", u.ID).Info("user logged out")
	}
	return cleared, nil
}

// currentUser loads the session's user and requires that the session token is the one
// stored for it.
func (s *AccountService) currentUser(ctx context.Context, session auth.Session) (*User, error) {
	if session.Claims == nil {
		return nil, apperror.NewUnauthorizedError(MsgUnauthorized, nil)
	}
	u, err := s.store.FindByID(ctx, session.Claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NewUnauthorizedError(MsgUnauthorized, err)
	}
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}
	if !u.HasSession(session.Token) {
		return nil, apperror.NewUnauthorizedError(MsgUnauthorized, nil)
	}
	return u, nil
}

// readImage validates an upload and returns its bytes. The type check comes first.
func readImage(img *ImageUpload) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if !allowedImageExts[ext] {
		return nil, apperror.NewUnprocessableError(MsgInvalidImageType, nil)
	}
	if img.Size > MaxImageSize {
		return nil, apperror.NewUnprocessableError(MsgImageTooLarge, nil)
	}

	data, err := io.ReadAll(io.LimitReader(img.Content, MaxImageSize+1))
	if err != nil {
		return nil, apperror.NewBadRequestError("failed to read image", err)
	}
	if len(data) > MaxImageSize {
		return nil, apperror.NewUnprocessableError(MsgImageTooLarge, nil)
	}
	return data, nil
}

// UpdateProfile overwrites the caller's profile fields. When img is non-nil it becomes the
// new profile image, written in the background under its content-hash name.
func (s *AccountService) UpdateProfile(ctx context.Context, session auth.Session, in ProfileInput, img *ImageUpload) error {
	u, err := s.currentUser(ctx, session)
	if err != nil {
		return err
	}

	image := u.Image
	if image == "" {
		image = storage.DefaultImage
	}
	var data []byte
	if img != nil {
		if data, err = readImage(img); err != nil {
			return err
		}
		image = storage.ContentName(data, img.Filename)
	}

	if err := s.validateStruct(in); err != nil {
		return err
	}
	if data != nil {
		s.saveImage(image, data)
	}

	url := s.ImageURL(image)
	err = s.store.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Name:   nullable(in.Name),
		Email:  nullable(in.Email),
		Phone:  nullable(in.Phone),
		Alamat: nullable(in.Alamat),
		Image:  image,
		URL:    &url,
		Role:   DefaultRole,
	})
	if errors.Is(err, ErrNotFound) {
		return apperror.NewUnauthorizedError(MsgUnauthorized, err)
	}
	if err != nil {
		return apperror.NewDatabaseError("failed to update user", err)
	}
	return nil
}

// UpdatePassword replaces the password of the account registered under req.Email.
func (s *AccountService) UpdatePassword(ctx context.Context, req UpdatePasswordRequest) error {
	if err := s.validateStruct(req); err != nil {
		return err
	}

	u, err := s.store.FindByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return apperror.NewNotFoundError(MsgUserNotFound, err)
	}
	if err != nil {
		return apperror.NewDatabaseError("failed to look up user", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return apperror.NewInternalError("failed to hash password", err)
	}
	if err := s.store.UpdatePassword(ctx, u.ID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperror.NewNotFoundError(MsgUserNotFound, err)
		}
		return apperror.NewDatabaseError("failed to update password", err)
	}
	return nil
}

// DeleteAccount removes the caller's account and, unless it is the shared default, their
// profile image.
func (s *AccountService) DeleteAccount(ctx context.Context, session auth.Session) error {
	u, err := s.currentUser(ctx, session)
	if err != nil {
		return err
	}

	// a logout since currentUser leaves no matching row
	if err := s.store.Delete(ctx, u.ID, session.Token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperror.NewUnauthorizedError(MsgUnauthorized, err)
		}
		return apperror.NewDatabaseError("failed to delete user", err)
	}

	if storage.IsRemovable(u.Image) {
		s.removeImage(u.Image)
	}
	s.log.WithField("user_id", u.ID).Info("user deleted")
	return nil
}

func (s *AccountService) saveImage(name string, data []byte) {
	s.tasks.Submit(background.Task{
		Name: "save image " + name,
		Run: func(ctx context.Context) error {
			return s.images.Save(ctx, name, data)
		},
	})
}

func (s *AccountService) removeImage(name string) {
	s.tasks.Submit(background.Task{
		Name: "remove image " + name,
		Run: func(ctx context.Context) error {
			return s.images.Remove(ctx, name)
		},
	})
}
