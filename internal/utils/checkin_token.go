package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CheckInTokenIssuer issues and validates the short-lived signed
// tokens presented at check-in. The token is an HS256 JWT whose "rid"
// claim names the reservation; whatever renders it as a QR code or
// link lives outside this service.
type CheckInTokenIssuer struct {
	Secret string
	TTL    time.Duration
}

// NewCheckInTokenIssuer returns an issuer with the given secret and
// token lifetime.
func NewCheckInTokenIssuer(secret string, ttl time.Duration) *CheckInTokenIssuer {
	return &CheckInTokenIssuer{Secret: secret, TTL: ttl}
}

// Issue signs a check-in token for a reservation.
func (i *CheckInTokenIssuer) Issue(reservationID uint64) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"rid": reservationID,
		"exp": now.Add(i.TTL).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Secret))
}

// Validate implements booking.CheckInTokenValidator: it verifies the
// signature and expiry and returns the reservation id the token was
// issued for.
func (i *CheckInTokenIssuer) Validate(token string) (uint64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.Secret), nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, errors.New("invalid check-in token")
	}
	rid, ok := claims["rid"].(float64)
	if !ok || rid < 1 {
		return 0, errors.New("check-in token has no reservation")
	}
	return uint64(rid), nil
}
