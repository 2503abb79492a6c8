package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"atlasforum/internal/model"
)

// ParseCursor parses a compound keyset cursor "id:unixmicro".
func ParseCursor(cursor string) (time.Time, uuid.UUID, error) {
	idPart, tsPart, ok := strings.Cut(cursor, ":")
	if !ok {
		return time.Time{}, uuid.Nil, model.ErrInvalidCursor
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", model.ErrInvalidCursor, err)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("%w: %v", model.ErrInvalidCursor, err)
	}
	return time.UnixMicro(ts).UTC(), id, nil
}

// FormatCursor formats a compound keyset cursor "id:unixmicro".
func FormatCursor(t time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s:%d", id, t.UnixMicro())
}
