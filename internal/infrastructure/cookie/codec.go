package cookie

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/config"
)

// lineClaim is the compact wire form of a cart line
type lineClaim struct {
	Count    int64 `json:"c"`
	Selected bool  `json:"s"`
}

// cartClaims carries the cart as a private claim keyed by decimal item id
type cartClaims struct {
	jwt.RegisteredClaims
	Lines map[string]lineClaim `json:"lines"`
}

// Codec encodes carts into signed tokens suitable for a client-held cookie
type Codec struct {
	secret []byte
	issuer string
	maxAge time.Duration
	// maxBytes bounds the signed token; zero disables the check
	maxBytes int
	now      func() time.Time
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the time source used for exp and validation
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec from cookie configuration
func NewCodec(cfg config.CookieConfig, opts ...Option) *Codec {
	c := &Codec{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		maxAge:   cfg.MaxAge,
		maxBytes: cfg.MaxBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode signs the cart into a token. A token longer than the configured
// limit fails with cart.ErrCartTooLarge, since browsers drop oversized cookies.
func (c *Codec) Encode(in cart.Cart) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	now := c.now()
	claims := &cartClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
		Lines: make(map[string]lineClaim, len(in)),
	}
	for id, line := range in {
		claims.Lines[strconv.FormatInt(int64(id), 10)] = lineClaim{
			Count:    line.Quantity,
			Selected: line.Selected,
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign cart token: %w", err)
	}
	if c.maxBytes > 0 && len(signed) > c.maxBytes {
		return "", cart.ErrCartTooLarge
	}
	return signed, nil
}

// Decode verifies a token and returns its cart. An empty token is an empty
// cart. Any malformed, tampered or expired token fails with
// cart.ErrCorruptToken.
func (c *Codec) Decode(token string) (cart.Cart, error) {
	if token == "" {
		return cart.New(), nil
	}

	claims := &cartClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, errors.Join(cart.ErrCorruptToken, err)
	}
	if !parsed.Valid {
		return nil, cart.ErrCorruptToken
	}

	out := make(cart.Cart, len(claims.Lines))
	for key, lc := range claims.Lines {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errors.Join(cart.ErrCorruptToken, err)
		}
		out[cart.ItemID(id)] = cart.Line{
			ItemID:   cart.ItemID(id),
			Quantity: lc.Count,
			Selected: lc.Selected,
		}
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Join(cart.ErrCorruptToken, err)
	}
	return out, nil
}

// DecodeOrEmpty decodes a token and degrades any failure to an empty cart.
// The second result reports whether the token was corrupt.
func (c *Codec) DecodeOrEmpty(token string) (cart.Cart, bool) {
	out, err := c.Decode(token)
	if err != nil {
		return cart.New(), true
	}
	return out, false
}
