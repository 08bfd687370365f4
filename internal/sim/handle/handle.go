// Package handle defines the opaque agent and nest references stored by the
// routing and population structures. Holders never dereference or validate
// a handle; only the owning agent registry resolves it.
package handle

import "github.com/google/uuid"

type Handle struct {
	id uuid.UUID
}

// None is the zero handle.
var None Handle

func New() Handle { return Handle{id: uuid.New()} }

// Named derives a stable handle from a name. Used by fixtures and replays
// that need reproducible ids.
func Named(name string) Handle {
	return Handle{id: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))}
}

func Parse(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return None, err
	}
	return Handle{id: id}, nil
}

func (h Handle) IsNone() bool { return h.id == uuid.Nil }

func (h Handle) String() string {
	if h.IsNone() {
		return ""
	}
	return h.id.String()
}

// Less gives handles a total order for stable iteration.
func Less(a, b Handle) bool {
	for i := range a.id {
		if a.id[i] != b.id[i] {
			return a.id[i] < b.id[i]
		}
	}
	return false
}

func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Handle) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*h = None
		return nil
	}
	id, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	h.id = id
	return nil
}
