package token

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/streetlift/meet-engine/internal/domain/judging"
)

// JudgeClaims is the signed payload a judge tablet presents at session join.
// The token travels inside a login URL rendered as a QR code.
type JudgeClaims struct {
	JudgeID  string `json:"judge_id"`
	MeetCode string `json:"meet_code"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *Signer) Sign(judgeID, meetCode string, role judging.Role) (string, error) {
	if _, err := judging.ParseRole(string(role)); err != nil {
		return "", err
	}

	now := s.now().UTC()
	claims := JudgeClaims{
		JudgeID:  judgeID,
		MeetCode: meetCode,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign judge token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded claims.
func (s *Signer) Verify(raw string) (JudgeClaims, error) {
	claims := JudgeClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return JudgeClaims{}, fmt.Errorf("parse judge token: %w", err)
	}
	if !parsed.Valid {
		return JudgeClaims{}, fmt.Errorf("judge token is not valid")
	}
	if _, err := judging.ParseRole(claims.Role); err != nil {
		return JudgeClaims{}, fmt.Errorf("judge token role: %w", err)
	}

	return claims, nil
}

// LoginURL embeds a signed token into the judge login link for QR rendering.
func LoginURL(baseURL, signed string) string {
	return strings.TrimRight(baseURL, "/") + "/judge/login?token=" + url.QueryEscape(signed)
}
