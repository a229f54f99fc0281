package convo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/parley/internal/model"
)

// ErrShortQuery rejects prefixes under the 2-character search minimum.
var ErrShortQuery = errors.New("search prefix needs at least 2 characters")

// SearchError is a user-search failure. Surfaced inline; the user may
// retype to retry.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("user search failed: %v", e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// SearchUsers finds users whose search key starts with prefix,
// excluding the session user.
func (s *Store) SearchUsers(ctx context.Context, prefix string) ([]model.User, error) {
	trimmed := strings.ToLower(strings.TrimSpace(prefix))
	if utf8.RuneCountInString(trimmed) < 2 {
		return nil, ErrShortQuery
	}

	users, err := s.docs.SearchUsers(ctx, trimmed, s.userID)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	return users, nil
}
