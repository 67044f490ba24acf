package utils // package utils provides helpers for session tokens, PINs and hashing

import (
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// SessionIssuer is the iss claim stamped on every session token.
const SessionIssuer = "stuffworth"

// ErrInvalidSession is returned for any token that fails to parse, verify or
// carries an unusable subject.
var ErrInvalidSession = errors.New("invalid or expired session")

// SessionClaims is the payload of a session token.  The subject holds the
// user ID; email, plan and role travel with it so middleware can gate pages
// without a database round trip.
type SessionClaims struct {
    jwt.RegisteredClaims
    Email string `json:"email"`
    Name  string `json:"name,omitempty"`
    Plan  string `json:"plan"`
    Role  string `json:"role"`
}

// UserID parses the numeric subject.
func (c *SessionClaims) UserID() (uint64, error) {
    id, err := strconv.ParseUint(c.Subject, 10, 64)
    if err != nil || id == 0 {
        return 0, ErrInvalidSession
    }
    return id, nil
}

// SessionToken is a signed session token along with its expiry.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// SessionUser carries the user fields embedded in a session token.
type SessionUser struct {
    ID    uint64
    Email string
    Name  string
    Plan  string
    Role  string
}

// NewSessionToken builds and signs an HS256 session token for a user.
func NewSessionToken(secret string, u SessionUser, ttl time.Duration) (SessionToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := SessionClaims{
        RegisteredClaims: jwt.RegisteredClaims{
            Issuer:    SessionIssuer,
            Subject:   strconv.FormatUint(u.ID, 10),
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
        Email: u.Email,
        Name:  u.Name,
        Plan:  u.Plan,
        Role:  u.Role,
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies signature, algorithm, issuer and expiry and
// returns the claims.  Tokens without a role are rejected.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
    tok, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidSession
        }
        return []byte(secret), nil
    }, jwt.WithIssuer(SessionIssuer), jwt.WithExpirationRequired())
    if err != nil {
        return nil, ErrInvalidSession
    }
    claims, ok := tok.Claims.(*SessionClaims)
    if !ok || !tok.Valid || claims.Role == "" {
        return nil, ErrInvalidSession
    }
    if _, err := claims.UserID(); err != nil {
        return nil, err
    }
    return claims, nil
}
