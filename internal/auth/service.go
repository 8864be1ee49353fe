// Package auth manages accounts in the users collection: sign-up with an
// argon2id password hash, sign-in issuing a JWT access token, and the local
// session record the CLI keeps between runs.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/classyapps/securechat/internal/common"
	"github.com/classyapps/securechat/internal/directory"
	"github.com/classyapps/securechat/internal/docstore"
	"github.com/classyapps/securechat/internal/logging"
	"github.com/classyapps/securechat/internal/models"
)

const saltSize = 16

type Service struct {
	store    docstore.Store
	secret   []byte
	tokenTTL time.Duration
	log      logging.Logger
}

func NewService(store docstore.Store, secretKey string, tokenTTL time.Duration, log logging.Logger) *Service {
	return &Service{
		store:    store,
		secret:   []byte(secretKey),
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// SignUp creates the account document and signs the new user in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", common.ErrValidation)
	}

	if existing, err := s.findByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrAlreadyExists, email)
	}

	salt := common.GenerateRandByteArray(saltSize)
	user := models.User{
		ID:           s.store.GenerateID(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: base64.StdEncoding.EncodeToString(hashPassword([]byte(password), salt)),
		Salt:         base64.StdEncoding.EncodeToString(salt),
	}

	path := docstore.JoinPath(directory.UsersCollection, user.ID)
	if err := s.store.SetDocument(ctx, path, user.Fields()); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info(ctx, "account created", "user", user.ID)

	return s.newSession(user)
}

// SignIn verifies the password and returns a fresh session. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.ErrUnauthorized
	}

	salt, err := base64.StdEncoding.DecodeString(user.Salt)
	if err != nil {
		return nil, common.ErrUnauthorized
	}
	stored, err := base64.StdEncoding.DecodeString(user.PasswordHash)
	if err != nil {
		return nil, common.ErrUnauthorized
	}

	candidate := hashPassword([]byte(password), salt)
	if subtle.ConstantTimeCompare(stored, candidate) != 1 {
		return nil, common.ErrUnauthorized
	}

	return s.newSession(*user)
}

// ParseToken validates a session token and returns the user ID it carries.
func (s *Service) ParseToken(token string) (string, error) {
	return GetUserIDFromToken(token, s.secret)
}

func (s *Service) newSession(user models.User) (*Session, error) {
	token, err := GenerateToken(user.ID, s.secret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Token:       token,
	}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := s.store.ListDocuments(ctx, directory.UsersCollection, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for _, doc := range docs {
		u, err := models.UserFromFields(doc.ID, doc.Fields)
		if err != nil {
			s.log.Warn(ctx, "skipping corrupted user document", "id", doc.ID, "err", err)
			continue
		}
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func hashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}
