package transfer

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// Existence is the three-valued existence state of a remote path.
type Existence int

const (
	ExistenceUnknown Existence = iota
	ExistenceConfirmed
	ExistenceMissing
)

func (e Existence) String() string {
	switch e {
	case ExistenceConfirmed:
		return "confirmed"
	case ExistenceMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying one endpoint path. IsDir and
// IsFile are never both true, and both are false unless existence is
// confirmed.
type Classification struct {
	Exists Existence
	IsDir  bool
	IsFile bool
}

// dirState is what the listing attempts revealed about the path type.
type dirState int

const (
	dirUnknown dirState = iota
	dirConfirmed
	fileConfirmed
)

// Classify determines whether a path on an endpoint is a file, a directory,
// or missing. The listing API has no dedicated stat operation, so the type is
// inferred from listing error codes, falling back to a listing of the parent
// directory when the error is not conclusive. A non-nil error means the
// classification is unusable and the caller must abort.
func Classify(ctx context.Context, client Client, endpoint, p string, allowMissing bool) (Classification, error) {
	state := dirUnknown
	exists := ExistenceUnknown

	_, err := client.ListDirectory(ctx, endpoint, p)
	if err == nil {
		state = dirConfirmed
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return Classification{}, fmt.Errorf("list %q on endpoint %q: %w", p, endpoint, err)
		}
		switch apiErr.Code {
		case CodeNotDirectory:
			state = fileConfirmed
		case CodeListingSizeLimit:
			// Too many entries to enumerate, but the path is still known
			// to exist and be a directory.
			state = dirConfirmed
		case CodeNotFound:
			exists = ExistenceMissing
		default:
			state, exists, err = classifyViaParent(ctx, client, endpoint, p)
			if err != nil {
				return Classification{}, err
			}
		}
	}

	if state != dirUnknown {
		exists = ExistenceConfirmed
	}
	if exists == ExistenceMissing && !allowMissing {
		return Classification{}, fmt.Errorf("path %q not found on endpoint %q", p, endpoint)
	}

	return Classification{
		Exists: exists,
		IsDir:  state == dirConfirmed,
		IsFile: state == fileConfirmed,
	}, nil
}

// classifyViaParent lists the parent directory and looks for an entry with
// the path's basename. Used when the direct listing failed with an error code
// that says nothing about the path type.
func classifyViaParent(ctx context.Context, client Client, endpoint, p string) (dirState, Existence, error) {
	parent := path.Dir(p)
	base := path.Base(p)

	entries, err := client.ListDirectory(ctx, endpoint, parent)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return dirUnknown, ExistenceUnknown, fmt.Errorf("list parent of %q on endpoint %q: %w", p, endpoint, err)
		}
		switch apiErr.Code {
		case CodeListingSizeLimit:
			return dirUnknown, ExistenceUnknown, fmt.Errorf("unable to check type of path %q: parent directory too large", p)
		case CodeNotFound:
			return dirUnknown, ExistenceMissing, nil
		default:
			return dirUnknown, ExistenceUnknown, fmt.Errorf("list parent of %q on endpoint %q: %w", p, endpoint, err)
		}
	}

	var types []string
	for _, entry := range entries {
		if entry.Name == base {
			types = append(types, entry.Type)
		}
	}

	switch {
	case len(types) == 0:
		// The direct listing failed with an unexpected error, yet the
		// parent has no such entry. Odd, but still a missing path.
		return dirUnknown, ExistenceMissing, nil
	case len(types) > 1:
		// Shouldn't occur under normal remote semantics, but some storage
		// connectors can list duplicate names.
		return dirUnknown, ExistenceUnknown, fmt.Errorf("multiple items named %q in %q on endpoint %q", base, parent, endpoint)
	}

	switch types[0] {
	case EntryTypeDir:
		return dirConfirmed, ExistenceConfirmed, nil
	case EntryTypeFile:
		return fileConfirmed, ExistenceConfirmed, nil
	default:
		return dirUnknown, ExistenceConfirmed, fmt.Errorf("path %q leads to a %q, not a file or directory", p, types[0])
	}
}
