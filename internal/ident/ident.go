package ident

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity kinds understood by the scheduler. The identifier prefix is the
// first four characters of the upper-cased kind.
const (
	KindPatient     = "patient"
	KindDoctor      = "doctor"
	KindDepartment  = "department"
	KindAppointment = "appointment"
	KindSlot        = "availability"
	KindCredential  = "credential"
)

const (
	prefixLen       = 4
	timestampLayout = "20060102150405"
	suffixLen       = 8
)

// ErrIDCollision is returned by stores when a freshly generated identifier
// already exists. Callers are expected to generate a new one and retry.
var ErrIDCollision = errors.New("identifier already in use")

// Generator produces PREFIX + YYYYMMDDHHMMSS + random suffix identifiers.
type Generator struct {
	now func() time.Time
}

func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

var defaultGenerator = NewGenerator(nil)

// Generate returns a new identifier for kind using the wall clock.
func Generate(kind string) string {
	return defaultGenerator.Generate(kind)
}

func (g *Generator) Generate(kind string) string {
	var b strings.Builder
	b.Grow(prefixLen + len(timestampLayout) + suffixLen)
	b.WriteString(Prefix(kind))
	b.WriteString(g.now().Format(timestampLayout))
	b.WriteString(suffix())
	return b.String()
}

// Prefix returns the identifier prefix for kind.
func Prefix(kind string) string {
	p := strings.ToUpper(strings.TrimSpace(kind))
	if len(p) > prefixLen {
		p = p[:prefixLen]
	}
	return p
}

// Valid reports whether id carries the prefix for kind and is purely
// alphanumeric. The prefix comparison ignores case.
func Valid(id, kind string) bool {
	prefix := Prefix(kind)
	if prefix == "" || len(id) <= len(prefix) {
		return false
	}
	if !strings.HasPrefix(strings.ToUpper(id), prefix) {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// suffix takes eight hex characters from a random v4 UUID. The random bits
// sit in the leading bytes so they are not diluted by version/variant bits.
func suffix() string {
	u := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:suffixLen])
}
