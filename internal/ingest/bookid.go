package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// knownBooks maps a substring of a book name to its short id. Checked in order.
var knownBooks = []struct {
	name    string
	shortID string
}{
	{"Diane_Papalia,_Sally_Olds,_Ruth_Feldman_-_Human_Development_(2009,_McGraw-Hill_Education_cleaned", "papalia"},
	{"Life-Span Human Development_cleaned", "lifespan"},
	{"Life-Span_Development,_13th_Edition_by_John_Santrock_(z-lib.org)[1]_cleaned", "santrock"},
}

// ShortBookID returns a stable short identifier for a book name: a fixed id for
// the known textbooks, otherwise the first 8 hex characters of its MD5.
// Two unknown names can collide in 32 bits; ids are not checked for uniqueness
// across books.
func ShortBookID(bookName string) string {
	for _, b := range knownBooks {
		if strings.Contains(bookName, b.name) {
			return b.shortID
		}
	}
	sum := md5.Sum([]byte(bookName))
	return hex.EncodeToString(sum[:])[:8]
}

// DocumentID is the store id of a chunk.
func DocumentID(shortID string, chunkID int) string {
	return fmt.Sprintf("%s_c%d", shortID, chunkID)
}
