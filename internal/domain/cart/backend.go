package cart

// BackendKind tells which representation is authoritative for a request
type BackendKind int

const (
	// BackendNone is the zero value of an unresolved Backend
	BackendNone BackendKind = iota
	// BackendAnonymous means the cart travels in the client cookie
	BackendAnonymous
	// BackendAuthenticated means the cart lives in the server-side store
	BackendAuthenticated
)

// String returns the kind name used in logs and metrics
func (k BackendKind) String() string {
	switch k {
	case BackendAnonymous:
		return "anonymous"
	case BackendAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// Backend selects the cart representation for one request. Exactly one of
// the anonymous cart or the user id is meaningful, chosen once by whether the
// caller presented a valid identity.
type Backend struct {
	kind BackendKind
	cart Cart
	uid  UserID
}

// Anonymous builds a backend over a decoded cookie cart
func Anonymous(c Cart) Backend {
	if c == nil {
		c = New()
	}
	return Backend{kind: BackendAnonymous, cart: c}
}

// Authenticated builds a backend over the server-side cart of uid
func Authenticated(uid UserID) Backend {
	return Backend{kind: BackendAuthenticated, uid: uid}
}

// Kind returns the backend kind
func (b Backend) Kind() BackendKind {
	return b.kind
}

// IsAnonymous reports whether the cookie cart is authoritative
func (b Backend) IsAnonymous() bool {
	return b.kind == BackendAnonymous
}

// Cart returns the anonymous cart. It is empty for other kinds.
func (b Backend) Cart() Cart {
	return b.cart
}

// UserID returns the authenticated user id. It is zero for other kinds.
func (b Backend) UserID() UserID {
	return b.uid
}
