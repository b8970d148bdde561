package schema

import (
	"fmt"
)

// FieldKind tags exactly one storage/encryption behavior per field. There is
// no runtime type inspection: a shape's descriptor table fully determines
// which leaves get encrypted.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindEncryptedScalar
	KindNested
	KindListOfScalar
	KindListOfNested
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEncryptedScalar:
		return "encrypted-scalar"
	case KindNested:
		return "nested"
	case KindListOfScalar:
		return "list-of-scalar"
	case KindListOfNested:
		return "list-of-nested"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// UnknownFieldPolicy controls what an encrypt/decrypt pass does with document
// fields that are not declared on the shape.
type UnknownFieldPolicy int

const (
	// PassUnknown copies undeclared fields through untouched.
	PassUnknown UnknownFieldPolicy = iota
	// RejectUnknown fails the pass with ErrUnknownField, so a renamed field
	// cannot silently stop being encrypted.
	RejectUnknown
)

type Field struct {
	Name  string
	Kind  FieldKind
	Shape *Shape // set only for KindNested and KindListOfNested
}

// Shape is the static descriptor table for one kind of document. Shapes are
// declared once at package init and are immutable afterwards.
type Shape struct {
	Name    string
	Fields  []Field
	Unknown UnknownFieldPolicy

	index map[string]int
}

// Validate checks the descriptor table: unique non-empty field names, nested
// shape references present exactly where the kind requires them. It also
// builds the name index, so it must run before the shape is used.
func (s *Shape) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("shape has no name")
	}
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("shape %q: field %d has no name", s.Name, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return fmt.Errorf("shape %q: duplicate field %q", s.Name, f.Name)
		}
		switch f.Kind {
		case KindNested, KindListOfNested:
			if f.Shape == nil {
				return fmt.Errorf("shape %q: field %q is %s but has no nested shape", s.Name, f.Name, f.Kind)
			}
		case KindScalar, KindEncryptedScalar, KindListOfScalar:
			if f.Shape != nil {
				return fmt.Errorf("shape %q: field %q is %s but carries a nested shape", s.Name, f.Name, f.Kind)
			}
		default:
			return fmt.Errorf("shape %q: field %q has unknown kind %d", s.Name, f.Name, int(f.Kind))
		}
		s.index[f.Name] = i
	}
	return nil
}

// MustShape validates a shape and panics on a malformed descriptor. Shape
// tables are package-level declarations, so a bad one fails at process start
// rather than on the first request that touches it.
func MustShape(s *Shape) *Shape {
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

func (s *Shape) field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}
