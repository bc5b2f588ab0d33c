// Package s3url parses and renders s3://bucket/key references, the only
// form of object-store location the manifest service is allowed to use.
package s3url

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var pattern = regexp.MustCompile(`^s3://([^/]+)/(.+)$`)

// URL is a reference to an object on S3 by bucket and key.
type URL struct {
	Bucket string
	Key    string
}

// ParseError reports a string that is not a valid s3:// URL.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid s3:// URL: %q", e.Input)
}

// Parse parses a string of the form s3://<bucket>/<key>, where bucket is
// one or more non-slash characters and key is one or more characters
// (which may contain slashes).
func Parse(s string) (URL, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return URL{}, &ParseError{Input: s}
	}
	return URL{Bucket: m[1], Key: m[2]}, nil
}

// String renders u back to its s3:// form.
func (u URL) String() string {
	return fmt.Sprintf("s3://%s/%s", u.Bucket, u.Key)
}

// UnmarshalJSON decodes a JSON string field into a URL, as used for the
// "source" field of manifest entries.
func (u *URL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalJSON renders u as its s3:// string form.
func (u URL) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}
