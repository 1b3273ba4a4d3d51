// Package cursor encodes resume points for paginated action reads.
//
// A token is the unpadded url-safe base64 of "<epoch_ms>.<id>". Tokens carry
// no server state and are not signed; Decode only rejects malformed input.
package cursor

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
)

const separator = "."

func Encode(t time.Time, id int64) string {
	raw := strconv.FormatInt(t.UnixMilli(), 10) + separator + strconv.FormatInt(id, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func EncodePosition(p domain.Position) string {
	return Encode(p.CreatedAt, p.ID)
}

// Decode reverses Encode. Padded tokens are accepted. The boolean is false
// for any malformed token, in which case callers read from the beginning.
func Decode(token string) (domain.Position, bool) {
	token = strings.TrimRight(token, "=")
	if token == "" {
		return domain.Position{}, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return domain.Position{}, false
	}

	tsPart, idPart, ok := strings.Cut(string(raw), separator)
	if !ok {
		return domain.Position{}, false
	}

	ms, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return domain.Position{}, false
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return domain.Position{}, false
	}

	return domain.Position{CreatedAt: time.UnixMilli(ms).UTC(), ID: id}, true
}
