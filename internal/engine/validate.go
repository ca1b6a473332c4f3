package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxQueryLength caps search queries after sanitization.
	MaxQueryLength = 10_000

	// MaxMetadataBytes caps the JSON-serialized size of a metadata map.
	MaxMetadataBytes = 10 * 1024

	// MaxBatchSize caps bulk-store chunk sizes.
	MaxBatchSize = 1000

	// DefaultBatchSize is used when a bulk-store caller omits batch_size.
	DefaultBatchSize = 100
)

// collectionNamePattern matches valid collection names. Kept permissive
// enough for legacy hyphenated aliases, which canonicalize before storage.
var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// validateUTF8 rejects malformed input outright. Sanitization would
// otherwise rewrite broken bytes to U+FFFD and store mangled text.
func validateUTF8(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidInput, field)
	}
	return nil
}

func validateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection_name cannot be empty", ErrInvalidInput)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection_name must match %s", ErrInvalidInput, collectionNamePattern)
	}
	return nil
}

// sanitizeDocument strips control characters from stored text. Newlines and
// tabs are document structure and survive.
func sanitizeDocument(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// sanitizeQuery strips control characters, collapses runs of whitespace,
// and caps the query length. Whitespace controls remain word boundaries.
func sanitizeQuery(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, s)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) > MaxQueryLength {
		cleaned = cleaned[:MaxQueryLength]
	}
	return cleaned
}

// validateMetadata rejects metadata maps that do not serialize or exceed
// the size cap.
func validateMetadata(meta map[string]any) error {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: metadata is not JSON-serializable: %v", ErrInvalidInput, err)
	}
	if len(raw) > MaxMetadataBytes {
		return fmt.Errorf("%w: metadata exceeds %d bytes (got %d)", ErrInvalidInput, MaxMetadataBytes, len(raw))
	}
	return nil
}

// validatePointIDs requires a non-empty list of well-formed UUIDs.
func validatePointIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: point_ids cannot be empty", ErrInvalidInput)
	}
	for i, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: point_ids[%d] %q is not a valid UUID", ErrInvalidInput, i, id)
		}
	}
	return nil
}

// normalizeBatchSize applies the default and the cap.
func normalizeBatchSize(size int) (int, error) {
	if size == 0 {
		return DefaultBatchSize, nil
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: batch_size must be positive", ErrInvalidInput)
	}
	if size > MaxBatchSize {
		return MaxBatchSize, nil
	}
	return size, nil
}
