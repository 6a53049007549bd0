package channel

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// ID uniquely identifies a relayed channel configuration. Several versions of
// the same name may be registered at once.
type ID struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String returns "name/version".
func (id ID) String() string {
	return id.Name + "/" + id.Version
}

// Compare orders IDs by name, then version.
func (id ID) Compare(other ID) int {
	if c := cmp.Compare(id.Name, other.Name); c != 0 {
		return c
	}
	return cmp.Compare(id.Version, other.Version)
}

// Source binds an ID to the origin playlist URL it relays.
type Source struct {
	ID  ID     `json:"id"`
	URL string `json:"source_url"`
}

var (
	// ErrInvalidID is returned when a name or version does not match the accepted form.
	ErrInvalidID = errors.New("invalid channel id")

	// ErrInvalidSourceURL is returned when the origin URL is not an absolute http(s) URL.
	ErrInvalidSourceURL = errors.New("invalid source url")
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	versionPattern = regexp.MustCompile(`^v[0-9]+$`)
)

// Validate reports whether id is usable as a path component of playback URLs.
func Validate(id ID) error {
	if !namePattern.MatchString(id.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidID, id.Name)
	}
	if !versionPattern.MatchString(id.Version) {
		return fmt.Errorf("%w: version %q", ErrInvalidID, id.Version)
	}
	return nil
}

// ValidateSource checks both the ID and the origin URL of src.
func ValidateSource(src Source) error {
	if err := Validate(src.ID); err != nil {
		return err
	}
	u, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSourceURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSourceURL, src.URL)
	}
	return nil
}
