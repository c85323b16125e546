package saveable

import (
	"strings"

	"github.com/cockroachdb/errors"
)

func errorf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}

func splitByte(s string, sep byte) (string, string, bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	} else {
		return s[:i], s[i+1:], true
	}
}
