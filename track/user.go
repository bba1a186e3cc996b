package track

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jacentio/gantry/store"
)

// ErrInvalidCredentials is returned by Login when the email is unknown or
// the password does not match.
var ErrInvalidCredentials = errors.New("gantry: invalid credentials")

const tokenSeparator = "__&&__"

// UserController extends the base controller with credential handling. A
// plaintext "password" field on create is replaced with a random salt and an
// HMAC-SHA1 digest before the record is stored.
type UserController struct {
	*Controller
}

func (r *Registry) newUser() *Controller {
	return &Controller{
		store:     r.store,
		desc:      userDescriptor(r.config),
		preCreate: hashPassword,
	}
}

func hashPassword(ctx context.Context, fields store.Fields) error {
	password, _ := fields["password"].(string)
	if password == "" {
		return nil
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("%w: generate salt: %v", store.ErrUnavailable, err)
	}
	salt := hex.EncodeToString(buf)
	fields["salt"] = salt
	fields["hashedPassword"] = digest(salt, password)
	delete(fields, "password")
	return nil
}

// Login verifies the credentials and returns an opaque session token binding
// the email to the stored password digest.
func (c *UserController) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	user, err := c.GetOne(ctx, store.Eq("email", email))
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	hashed := user.StringAttr("hashedPassword")
	if !hmac.Equal([]byte(hashed), []byte(digest(user.StringAttr("salt"), password))) {
		return "", ErrInvalidCredentials
	}
	token := base64.StdEncoding.EncodeToString([]byte(email + tokenSeparator + hashed))
	return token, nil
}

// CheckToken resolves a session token back to its user. Malformed or stale
// tokens yield (nil, nil) rather than an error.
func (c *UserController) CheckToken(ctx context.Context, token string) (*store.Item, error) {
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, nil
	}
	email, hashed, ok := strings.Cut(string(decoded), tokenSeparator)
	if !ok || email == "" {
		return nil, nil
	}
	user, err := c.GetOne(ctx, store.Eq("email", email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.StringAttr("hashedPassword") != hashed {
		return nil, nil
	}
	return user, nil
}

func digest(salt, password string) string {
	mac := hmac.New(sha1.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}
