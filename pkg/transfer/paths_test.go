package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosixifyPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"windows path", `C:\Users\x`, "/c/Users/x"},
		{"windows path lowercase drive", `d:\data\set`, "/d/data/set"},
		{"windows nested path", `C:\Users\globus_user\docs\file.dat`, "/c/Users/globus_user/docs/file.dat"},
		{"posix path unchanged", "/home/user/file.dat", "/home/user/file.dat"},
		{"relative path unchanged", "data/file.dat", "data/file.dat"},
		{"drive-like posix path unchanged", "/c/Users/x", "/c/Users/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PosixifyPath(tt.input))
		})
	}
}
