package parser

// Reason tells why a field carries no value.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNotFound
	ReasonEmpty
	ReasonMalformed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "present"
	case ReasonNotFound:
		return "not found"
	case ReasonEmpty:
		return "empty"
	case ReasonMalformed:
		return "malformed"
	}
	return "unknown"
}

// Field is the optional result of a single extractor.
type Field struct {
	Value   string
	Missing Reason
}

func Present(v string) Field { return Field{Value: v} }

func Absent(r Reason) Field {
	if r == ReasonNone {
		r = ReasonNotFound
	}
	return Field{Missing: r}
}

func (f Field) OK() bool { return f.Missing == ReasonNone }

// Or returns the value, or fallback when the field is absent.
func (f Field) Or(fallback string) string {
	if f.OK() {
		return f.Value
	}
	return fallback
}
