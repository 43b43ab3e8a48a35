package transfer

import (
	"regexp"
	"strings"
)

// PathEntry is one (source, destination) pair to transfer. Paths are
// normalized to POSIX form before classification and submission.
type PathEntry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

var windowsPathPattern = regexp.MustCompile(`^[A-Za-z]:\\`)

// PosixifyPath rewrites a Windows-style path to POSIX form, with the drive
// letter as the first folder: C:\Users\x becomes /c/Users/x. POSIX paths are
// returned unchanged.
func PosixifyPath(path string) string {
	if !windowsPathPattern.MatchString(path) {
		return path
	}
	drive := strings.ToLower(path[:1])
	rest := strings.ReplaceAll(path[2:], `\`, "/")
	return "/" + drive + rest
}
