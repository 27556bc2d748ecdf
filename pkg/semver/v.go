package semver

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// V is structured semantic version representation
	V struct {
		Major, Minor, Patch uint
		PreRelease          string
		BuildMetadata       []string
	}
)

func (v V) String() string {
	buf := strings.Builder{}
	buf.WriteString(strconv.FormatUint(uint64(v.Major), 10))
	buf.WriteByte('.')
	buf.WriteString(strconv.FormatUint(uint64(v.Minor), 10))
	buf.WriteByte('.')
	buf.WriteString(strconv.FormatUint(uint64(v.Patch), 10))
	if v.PreRelease != "" {
		buf.WriteByte('-')
		buf.WriteString(v.PreRelease)
	}
	if len(v.BuildMetadata) > 0 {
		buf.WriteByte('+')
		buf.WriteString(strings.Join(v.BuildMetadata, "."))
	}

	return buf.String()
}

// Parse - reads version in form MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD.META].
// Leading "v" is allowed.
func Parse(s string) (V, error) {
	v := V{}
	rest := strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		if i == len(rest)-1 {
			return V{}, fmt.Errorf("semver.Parse: empty build metadata in %q", s)
		}
		v.BuildMetadata = strings.Split(rest[i+1:], ".")
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		if i == len(rest)-1 {
			return V{}, fmt.Errorf("semver.Parse: empty pre-release in %q", s)
		}
		v.PreRelease = rest[i+1:]
		rest = rest[:i]
	}
	core := strings.Split(rest, ".")
	if len(core) != 3 {
		return V{}, fmt.Errorf("semver.Parse: %q is not MAJOR.MINOR.PATCH", s)
	}
	nums := [3]*uint{&v.Major, &v.Minor, &v.Patch}
	for i, part := range core {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return V{}, fmt.Errorf("semver.Parse: invalid number %q in %q", part, s)
		}
		*nums[i] = uint(n)
	}
	return v, nil
}

// MustParse - same as Parse, but panics on error. Intended for version constants.
func MustParse(s string) V {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
