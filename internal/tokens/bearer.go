package tokens

import (
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// ExtractBearer returns the token from an Authorization header value of the
// exact form "Bearer <token>". Any other shape (missing scheme, other scheme,
// empty token, extra segments) yields common.ErrInvalidHeaderFormat.
func ExtractBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != common.BearerScheme {
		return "", common.ErrInvalidHeaderFormat
	}
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", common.ErrInvalidHeaderFormat
	}
	return token, nil
}
