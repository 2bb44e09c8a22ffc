package flashfat

import (
	"errors"
	"strings"
	"testing"
)

func Test_cleanName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "plain", in: "a.txt", want: "a.txt"},
		{name: "leading slash", in: "/a.txt", want: "a.txt"},
		{name: "spaces are fine", in: "my file", want: "my file"},
		{name: "composed", in: "café", want: "café"},
		{name: "longest name", in: strings.Repeat("x", MaxFilenameLength), want: strings.Repeat("x", MaxFilenameLength)},
		{name: "empty", in: "", wantErr: ErrInvalidName},
		{name: "root", in: "/", wantErr: ErrInvalidName},
		{name: "dot", in: ".", wantErr: ErrInvalidName},
		{name: "dot dot", in: "..", wantErr: ErrInvalidName},
		{name: "two slashes", in: "//a", wantErr: ErrInvalidName},
		{name: "sub directory", in: "dir/a", wantErr: ErrInvalidName},
		{name: "backslash", in: "dir\\a", wantErr: ErrInvalidName},
		{name: "nul", in: "a\x00b", wantErr: ErrInvalidName},
		{name: "invalid utf-8", in: "\xc3\x28", wantErr: ErrInvalidName},
		{name: "too long", in: strings.Repeat("x", MaxFilenameLength+1), wantErr: ErrInvalidName},
		{name: "too long in bytes", in: strings.Repeat("é", MaxFilenameLength/2+1), wantErr: ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanName(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("cleanName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("cleanName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_extensionOf(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "a.txt", want: "txt"},
		{name: "last dot wins", in: "archive.tar.gz", want: "gz"},
		{name: "none", in: "README", want: ""},
		{name: "hidden file", in: ".profile", want: ""},
		{name: "trailing dot", in: "name.", want: ""},
		{name: "exactly the maximum", in: "a.0123456789", want: "0123456789"},
		{name: "cut", in: "a.0123456789abc", want: "0123456789"},
		{name: "does not split a rune", in: "a.123456789é", want: "123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extensionOf(tt.in); got != tt.want {
				t.Errorf("extensionOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
