package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HandshakeClaims are the registered claims of a handshake token plus the
// fingerprints it binds together.
type HandshakeClaims struct {
	jwt.RegisteredClaims
	SenderFingerprint    string `json:"sender_fp"`
	RecipientFingerprint string `json:"recipient_fp,omitempty"`
}

// HandshakeManager mints and validates handshake tokens. The token ID (jti)
// becomes the envelope's handshake_id, so a recipient can verify which
// handshake an envelope was generated under.
type HandshakeManager struct {
	secret []byte
	issuer string
}

// NewHandshakeManager creates a manager with an HMAC secret.
func NewHandshakeManager(secret []byte) *HandshakeManager {
	return &HandshakeManager{secret: secret, issuer: "sealpost/identity"}
}

// Mint creates a signed handshake token with bounded validity.
func (m *HandshakeManager) Mint(handshakeID, senderFP, recipientFP string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := HandshakeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        handshakeID,
			Subject:   senderFP,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.issuer,
		},
		SenderFingerprint:    senderFP,
		RecipientFingerprint: recipientFP,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("handshake mint failed: %w", err)
	}
	return signed, nil
}

// Validate parses a handshake token and returns its claims.
func (m *HandshakeManager) Validate(tokenString string) (*HandshakeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &HandshakeClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("handshake validation failed: %w", err)
	}
	claims, ok := token.Claims.(*HandshakeClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}
