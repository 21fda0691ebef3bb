package rectype

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// CheckTag reports whether tag can name a record boundary element.
//
// The tag must be an XML name: a letter, '_' or ':' followed by letters,
// digits and the punctuation '_', ':', '-' and '.'.
func CheckTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTag)
	}
	if !utf8.ValidString(tag) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidTag, tag)
	}
	for i, r := range tag {
		switch {
		case unicode.IsLetter(r), r == '_', r == ':':
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
		default:
			return fmt.Errorf("%w: %q is not an XML name", ErrInvalidTag, tag)
		}
	}
	return nil
}
