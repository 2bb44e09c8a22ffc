package flashfat

import (
	"strings"
	"unicode/utf8"

	"github.com/aligator/flashfat/checkpoint"
	"golang.org/x/text/unicode/norm"
)

// cleanName turns a user supplied name into the form stored in the table.
// The namespace is flat: a single leading slash is accepted, any other
// separator is not. Names are NFC normalized so that visually equal names
// written by different systems resolve to the same file.
func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." || name == ".." {
		return "", checkpoint.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !utf8.ValidString(name) {
		return "", checkpoint.Errorf("%w: %q is no valid utf-8", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", checkpoint.Errorf("%w: %q contains a separator or NUL, directories are not supported", ErrInvalidName, name)
	}

	name = norm.NFC.String(name)
	if len(name) > MaxFilenameLength {
		return "", checkpoint.Errorf("%w: %q is longer than %d bytes", ErrInvalidName, name, MaxFilenameLength)
	}
	return name, nil
}

// extensionOf returns the part of name behind the last dot, cut to the
// stored extension length.
func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}

	ext := name[i+1:]
	if len(ext) <= MaxExtensionLength {
		return ext
	}

	// Do not cut a multi byte rune in half.
	ext = ext[:MaxExtensionLength]
	for len(ext) > 0 && !utf8.ValidString(ext) {
		ext = ext[:len(ext)-1]
	}
	return ext
}
