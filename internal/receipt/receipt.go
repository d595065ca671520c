// Package receipt issues and verifies signed check-in receipts.
package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rollcall/internal/attendance"
)

// Claims attests one recorded check-in.
type Claims struct {
	SessionID      string    `json:"sid"`
	ProfessionalID string    `json:"pid"`
	RecordID       string    `json:"rid"`
	Sequence       int       `json:"seq"`
	EnteredAt      time.Time `json:"entered_at"`
	jwt.RegisteredClaims
}

// Issuer signs receipts with HS256.
type Issuer struct {
	issuer string
	key    []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer. A non-positive ttl means 30 days.
func NewIssuer(issuer, key string, ttl time.Duration) (*Issuer, error) {
	if key == "" {
		return nil, errors.New("receipt: signing key is empty")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Issuer{issuer: issuer, key: []byte(key), ttl: ttl, now: time.Now}, nil
}

// Issue signs a receipt for v and returns it with its expiry.
func (i *Issuer) Issue(v attendance.CheckinView) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		SessionID:      v.SessionID,
		ProfessionalID: v.ProfessionalID,
		RecordID:       v.ID,
		Sequence:       v.Sequence,
		EnteredAt:      v.EnteredAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   v.ProfessionalID,
			ID:        v.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign receipt: %w", err)
	}
	return token, exp, nil
}

// Parse validates a receipt and returns its claims.
func (i *Issuer) Parse(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, errors.New("invalid receipt")
	}
	return claims, nil
}
