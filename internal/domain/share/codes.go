package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	extractCodeBytes = 4  // 6 characters after raw-URL base64
	deleteCodeBytes  = 12 // 16 characters
	maxCodeAttempts  = 100
)

// codeGenerator hands out extract/delete code pairs that no live record
// is using. Uniqueness is checked against the record store rather than
// memory, so it holds across restarts. Codes of destroyed records may
// be handed out again.
type codeGenerator struct {
	repo Repository
}

func newCodeGenerator(repo Repository) *codeGenerator {
	return &codeGenerator{repo: repo}
}

// NewCodes returns a short uppercased extract code and a long delete
// code, both unused. Collisions at these entropy sizes are practically
// impossible; the attempt cap only guards against a misbehaving store.
func (g *codeGenerator) NewCodes(ctx context.Context) (extractCode, deleteCode string, err error) {
	extractCode, err = g.unusedCode(ctx, extractCodeBytes, true, g.repo.GetByExtractCode)
	if err != nil {
		return "", "", fmt.Errorf("generate extract code: %w", err)
	}
	deleteCode, err = g.unusedCode(ctx, deleteCodeBytes, false, g.repo.GetByDeleteCode)
	if err != nil {
		return "", "", fmt.Errorf("generate delete code: %w", err)
	}
	return extractCode, deleteCode, nil
}

func (g *codeGenerator) unusedCode(
	ctx context.Context,
	numBytes int,
	uppercase bool,
	lookup func(context.Context, string) (*FileRecord, error),
) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := randomCode(numBytes)
		if err != nil {
			return "", err
		}
		if uppercase {
			code = strings.ToUpper(code)
		}
		_, err = lookup(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrCodeSpaceExhausted
}

func randomCode(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
