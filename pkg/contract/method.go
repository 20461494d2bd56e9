package contract

// Capability selects how a synthesized member is dispatched.
type Capability int

const (
	// CapRead resolves with the backend's return value.
	CapRead Capability = iota
	// CapTransact resolves with the transaction receipt.
	CapTransact
	// CapEvent opens a log subscription.
	CapEvent
)

func (c Capability) String() string {
	switch c {
	case CapRead:
		return "read"
	case CapTransact:
		return "transact"
	case CapEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Method is one member synthesized from an ABI entry.
type Method struct {
	Spec MethodSpec
	Cap  Capability
}

// Name returns the member name.
func (m *Method) Name() string {
	return m.Spec.Name
}

func capabilityOf(spec MethodSpec) Capability {
	switch {
	case spec.Kind == KindEvent:
		return CapEvent
	case spec.ReadOnly:
		return CapRead
	default:
		return CapTransact
	}
}

func synthesize(specs []MethodSpec) ([]*Method, map[string]*Method) {
	methods := make([]*Method, 0, len(specs))
	byName := make(map[string]*Method, len(specs))
	for _, spec := range specs {
		m := &Method{Spec: spec, Cap: capabilityOf(spec)}
		methods = append(methods, m)
		byName[spec.Name] = m
	}
	return methods, byName
}
