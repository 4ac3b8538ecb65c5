package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "p2p-auction"

// AnnouncementClaims is the signed record a server publishes so clients can
// turn its public key into a reachable address.
type AnnouncementClaims struct {
	Address string `json:"addr"`
	NodeKey string `json:"node"`
	jwt.RegisteredClaims
}

// Announcement is a verified AnnouncementClaims
type Announcement struct {
	PublicKey string
	NodeKey   string
	Address   string
	ExpiresAt time.Time
}

// SignAnnouncement signs address with the rpc key. The token expires after ttl.
func (id *Identity) SignAnnouncement(address string, ttl time.Duration, now time.Time) (string, error) {
	claims := &AnnouncementClaims{
		Address: address,
		NodeKey: id.DHT.PublicHex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.RPC.PublicHex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(id.RPC.Private)
	if err != nil {
		return "", fmt.Errorf("failed to sign announcement: %w", err)
	}
	return signed, nil
}

// VerifyAnnouncement checks that token was signed by publicKey and has not expired
func VerifyAnnouncement(token string, publicKey ed25519.PublicKey) (*Announcement, error) {
	claims := &AnnouncementClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid announcement: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid announcement")
	}

	if claims.Subject != hex.EncodeToString(publicKey) {
		return nil, errors.New("announcement subject does not match public key")
	}
	if claims.Address == "" {
		return nil, errors.New("announcement has no address")
	}

	return &Announcement{
		PublicKey: claims.Subject,
		NodeKey:   claims.NodeKey,
		Address:   claims.Address,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
