// Package models holds the persisted and derived record types of the
// messaging engine, plus their docstore field codecs. Codec functions
// return an error for corrupt documents so callers can skip one bad record
// without aborting a whole snapshot.
package models

import (
	"fmt"

	"github.com/classyapps/securechat/internal/docstore"
)

// User is one identity as stored in the "users" collection. PublicKey is
// the base64-encoded asymmetric public key, empty until the owner publishes
// one. PasswordHash and Salt are only populated on documents managed by the
// auth service.
type User struct {
	ID           string
	DisplayName  string
	Email        string
	PublicKey    string
	PasswordHash string
	Salt         string
}

const (
	fieldUserID       = "userId"
	fieldDisplayName  = "displayName"
	fieldEmail        = "email"
	fieldPublicKey    = "publicKey"
	fieldPasswordHash = "passwordHash"
	fieldSalt         = "salt"
)

// UserFromFields decodes a users-collection document.
func UserFromFields(id string, f docstore.Fields) (User, error) {
	name, ok := asString(f[fieldDisplayName])
	if !ok || name == "" {
		return User{}, fmt.Errorf("user %q: missing displayName", id)
	}

	email, _ := asString(f[fieldEmail])
	publicKey, _ := asString(f[fieldPublicKey])
	passwordHash, _ := asString(f[fieldPasswordHash])
	salt, _ := asString(f[fieldSalt])

	return User{
		ID:           id,
		DisplayName:  name,
		Email:        email,
		PublicKey:    publicKey,
		PasswordHash: passwordHash,
		Salt:         salt,
	}, nil
}

// Fields encodes the user for storage.
func (u User) Fields() docstore.Fields {
	return docstore.Fields{
		fieldUserID:       u.ID,
		fieldDisplayName:  u.DisplayName,
		fieldEmail:        u.Email,
		fieldPublicKey:    u.PublicKey,
		fieldPasswordHash: u.PasswordHash,
		fieldSalt:         u.Salt,
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asInt64 accepts the numeric shapes different backends produce for the
// same stored value.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}
