// Package identifier derives the session keys that name chunk namespaces and
// merged files.
//
// Keys are deterministic: the same caller uploading the same file twice lands
// in the same namespace, which is what makes resuming possible.
package identifier

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/sniff"
)

type Identifier interface {
	Generate(ctx context.Context, data string) (string, error)
}

// Nop returns data unchanged.
type Nop struct{}

func (Nop) Generate(_ context.Context, data string) (string, error) { return data, nil }

// Session hashes data together with the caller's session id.
type Session struct {
	Source IdentitySource
}

func (s Session) Generate(ctx context.Context, data string) (string, error) {
	id, err := resolve(ctx, s.Source, SessionSource)
	if err != nil {
		return "", err
	}
	return digest(id + data), nil
}

// Auth hashes data together with the authenticated user id.
type Auth struct {
	Source IdentitySource
}

func (a Auth) Generate(ctx context.Context, data string) (string, error) {
	id, err := resolve(ctx, a.Source, UserSource)
	if err != nil {
		return "", err
	}
	return digest(id + "_" + data), nil
}

func resolve(ctx context.Context, src, def IdentitySource) (string, error) {
	if src == nil {
		src = def
	}
	id, err := src.ResolveIdentity(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", apperr.Unauthorized("identity required")
	}
	return id, nil
}

func digest(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// New returns the identifier registered under name.
func New(name string) (Identifier, error) {
	switch name {
	case "", "session":
		return Session{}, nil
	case "auth":
		return Auth{}, nil
	case "nop":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown identifier %q", name)
}

// FileIdentifier keys a file by its declared size and original name.
func FileIdentifier(ctx context.Context, id Identifier, totalSize int64, filename string) (string, error) {
	return id.Generate(ctx, strconv.FormatInt(totalSize, 10)+"_"+filename)
}

// UploadedFileIdentifierName appends the extension sniffed from head to the
// key of data, so the stored name and the key share a stem.
func UploadedFileIdentifierName(ctx context.Context, id Identifier, data string, head []byte) (string, error) {
	key, err := id.Generate(ctx, data)
	if err != nil {
		return "", err
	}
	return key + "." + sniff.ExtensionOr(head), nil
}
