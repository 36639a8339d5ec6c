package watch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ja7ad/procwatch/pkg/process"
	"github.com/ja7ad/procwatch/pkg/types"
)

// Field is a memory figure of a process.
type Field int

const (
	RSS Field = iota + 1
	VSize
	Shared
)

var ErrUnknownField = errors.New("watch: unknown field")

func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rss", "resident":
		return RSS, nil
	case "vsize", "virtual":
		return VSize, nil
	case "shared":
		return Shared, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
}

func (f Field) String() string {
	switch f {
	case RSS:
		return "rss"
	case VSize:
		return "vsize"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Of extracts f from rec. It panics on an invalid Field, which only a
// programming error can produce.
func (f Field) Of(rec process.Record) types.Bytes {
	switch f {
	case RSS:
		return rec.RSS
	case VSize:
		return rec.VSize
	case Shared:
		return rec.Shared
	default:
		panic(fmt.Sprintf("watch: invalid field %d", int(f)))
	}
}
