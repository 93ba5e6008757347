// Package auth issues and validates the three connect-time tokens spec.md
// §6 names: a participant's {participantId, sessionId, nickname}, a
// controller's {sessionId, hostId}, and a big screen's {sessionId}.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dinhkhaphancs/quiz-orchestration-core/internal/config"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token has expired")
)

// ParticipantClaims authenticates a phone/browser participant connection.
type ParticipantClaims struct {
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	Nickname      string `json:"nickname"`
	jwt.RegisteredClaims
}

// ControllerClaims authenticates the session host's control connection.
// It is issued when the session is created, which stores a bcrypt hash
// of the host credential; the credential is not compared against that
// hash before issuing and is not carried in the token.
type ControllerClaims struct {
	SessionID string `json:"sessionId"`
	HostID    string `json:"hostId"`
	jwt.RegisteredClaims
}

// BigScreenClaims authenticates the read-only projector connection.
type BigScreenClaims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates the three connect-time token types
// from a single shared secret, generalizing the teacher's single-claim
// JWTManager into one per role.
type JWTManager struct {
	config config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	return &JWTManager{config: cfg}
}

func (m *JWTManager) GenerateParticipantToken(participantID, sessionID, nickname string) (string, error) {
	now := time.Now()
	claims := ParticipantClaims{
		ParticipantID: participantID, SessionID: sessionID, Nickname: nickname,
		RegisteredClaims: m.registeredClaims(now, participantID),
	}
	return m.sign(claims)
}

func (m *JWTManager) GenerateControllerToken(sessionID, hostID string) (string, error) {
	now := time.Now()
	claims := ControllerClaims{
		SessionID: sessionID, HostID: hostID,
		RegisteredClaims: m.registeredClaims(now, hostID),
	}
	return m.sign(claims)
}

func (m *JWTManager) GenerateBigScreenToken(sessionID string) (string, error) {
	now := time.Now()
	claims := BigScreenClaims{
		SessionID:        sessionID,
		RegisteredClaims: m.registeredClaims(now, sessionID),
	}
	return m.sign(claims)
}

func (m *JWTManager) ValidateParticipantToken(token string) (*ParticipantClaims, error) {
	claims := &ParticipantClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) ValidateControllerToken(token string) (*ControllerClaims, error) {
	claims := &ControllerClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) ValidateBigScreenToken(token string) (*BigScreenClaims, error) {
	claims := &BigScreenClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) registeredClaims(now time.Time, subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ExpirationTime)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    m.config.Issuer,
		Subject:   subject,
	}
}

func (m *JWTManager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

func (m *JWTManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
