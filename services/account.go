package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/blog/models"
	"github.com/cppla/blog/utils"
)

const (
	msgUsernameTaken = "That username is taken. Please choose a different one."
	msgEmailTaken    = "That email is taken. Please choose a different one."
	msgNoSuchAccount = "There is no account with that email. You must register first."
	msgLoginFailed   = "Login failed. Please check email and password."
	msgTakenRetry    = "That username or email was just taken. Please try again."
)

// Upload is a file posted with the account form.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// AccountService registers users, checks logins and maintains profiles.
type AccountService struct {
	db    *gorm.DB
	creds *CredentialService
	media *MediaHandler
	cache *utils.Cache
}

func NewAccountService(db *gorm.DB, creds *CredentialService, media *MediaHandler, cache *utils.Cache) *AccountService {
	return &AccountService{db: db, creds: creds, media: media, cache: cache}
}

// Register creates a user with a hashed password and the default picture.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if err := s.checkUnique(ctx, "Registration failed", username, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := models.User{Username: username, Email: email, Password: hash, ImageFile: s.media.DefaultFile()}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.duplicateError(ctx, "Registration failed", username, email, 0)
		}
		return nil, models.NewInternalError(err)
	}
	utils.Sugar.Infow("user registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Authenticate returns the user whose email and password match.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewAuthFailedError(msgLoginFailed)
		}
		return nil, err
	}
	if !s.creds.Verify(user.Password, password) {
		return nil, models.NewAuthFailedError(msgLoginFailed)
	}
	return user, nil
}

func (s *AccountService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, "username = ?", username)
}

// UpdateAccount changes username, email and optionally the profile picture of actor.
// Uniqueness is only checked for values that actually change.
func (s *AccountService) UpdateAccount(ctx context.Context, actor *models.User, username, email string, picture *Upload) (*models.User, error) {
	if actor == nil {
		return nil, models.NewForbiddenError("login required")
	}
	changedName, changedEmail := "", ""
	if username != actor.Username {
		changedName = username
	}
	if email != actor.Email {
		changedEmail = email
	}
	if err := s.checkUnique(ctx, "Update failed", changedName, changedEmail, actor.ID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"username": username, "email": email}
	oldPicture := actor.ImageFile
	newPicture := ""
	if picture != nil && picture.Reader != nil && picture.Filename != "" {
		name, err := s.media.StoreProfilePicture(ctx, picture.Filename, picture.Reader)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Fields == nil && appErr.Kind != models.KindInternal {
				appErr.Fields = map[string]string{"picture": appErr.Message}
			}
			return nil, err
		}
		newPicture = name
		updates["image_file"] = name
	}

	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", actor.ID).Updates(updates).Error
	if err != nil {
		if newPicture != "" {
			_ = s.media.Remove(newPicture)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.duplicateError(ctx, "Update failed", username, email, actor.ID)
		}
		return nil, models.NewInternalError(err)
	}

	if newPicture != "" && oldPicture != newPicture {
		if err := s.media.Remove(oldPicture); err != nil {
			utils.Sugar.Warnw("remove old profile picture failed", "file", oldPicture, "err", err)
		}
	}
	// author names and pictures are embedded in cached listings
	invalidateListings(ctx, s.cache)
	return s.GetByID(ctx, actor.ID)
}

// RequestReset looks up the account that a reset mail should go to.
func (s *AccountService) RequestReset(ctx context.Context, email string) (*models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewValidationError("email", msgNoSuchAccount)
	}
	return user, err
}

// UserForResetToken resolves a reset token to its user.
func (s *AccountService) UserForResetToken(ctx context.Context, token string) (*models.User, error) {
	id, ok := s.creds.VerifyResetToken(token)
	if !ok {
		return nil, models.NewTokenInvalidError()
	}
	user, err := s.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewTokenInvalidError()
	}
	return user, err
}

// ResetPassword sets a new password for the user named by a valid reset token.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) (*models.User, error) {
	user, err := s.UserForResetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	hash, err := s.creds.Hash(password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hash).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Password = hash
	utils.Sugar.Infow("password reset", "user_id", user.ID)
	return user, nil
}

func (s *AccountService) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("user", arg)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// taken reports whether column already holds value for a user other than exceptID.
// conflicts reports which of username and email already belong to another
// account. Empty values are not checked.
func (s *AccountService) conflicts(ctx context.Context, username, email string, exceptID uint) (map[string]string, error) {
	fields := map[string]string{}
	for _, c := range []struct{ column, value, msg string }{
		{"username", username, msgUsernameTaken},
		{"email", email, msgEmailTaken},
	} {
		if c.value == "" {
			continue
		}
		taken, err := s.taken(ctx, c.column, c.value, exceptID)
		if err != nil {
			return nil, err
		}
		if taken {
			fields[c.column] = c.msg
		}
	}
	return fields, nil
}

func (s *AccountService) checkUnique(ctx context.Context, message, username, email string, exceptID uint) error {
	fields, err := s.conflicts(ctx, username, email, exceptID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if len(fields) > 0 {
		return &models.AppError{Kind: models.KindValidation, Message: message, Fields: fields}
	}
	return nil
}

// duplicateError names the column that a unique index rejected.
func (s *AccountService) duplicateError(ctx context.Context, message, username, email string, exceptID uint) error {
	if err := s.checkUnique(ctx, message, username, email, exceptID); err != nil {
		return err
	}
	// the clashing row is gone again; let the user retry
	return models.NewValidationError("username", msgTakenRetry)
}

func (s *AccountService) taken(ctx context.Context, column, value string, exceptID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.User{}).Where(column+" = ?", strings.TrimSpace(value))
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		utils.Sugar.Warnw("uniqueness check failed", "column", column, "err", err)
		return false, err
	}
	return count > 0, nil
}
