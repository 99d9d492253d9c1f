// Package token mints and verifies room access credentials.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/auth"
)

var (
	// ErrNotConfigured 表示缺少 API key 或 secret。
	ErrNotConfigured = errors.New("room credentials not configured")
	// ErrInvalidToken 表示 token 签名、签发方或房间授权不匹配。
	ErrInvalidToken = errors.New("invalid access token")
)

// Grant describes who may join which room.
type Grant struct {
	Identity string
	Name     string
	Room     string
}

// Issuer signs access tokens with the room service key pair.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// NewIssuer 创建签发器，ttl 为 0 时使用 6 小时。
func NewIssuer(apiKey, apiSecret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}
}

// Configured reports whether tokens can be minted.
func (i *Issuer) Configured() bool {
	return i != nil && i.apiKey != "" && i.apiSecret != ""
}

// Issue mints a token allowing join, publish and subscribe on g.Room.
func (i *Issuer) Issue(g Grant) (string, error) {
	if !i.Configured() {
		return "", ErrNotConfigured
	}

	allow := true
	at := auth.NewAccessToken(i.apiKey, i.apiSecret)
	at.SetVideoGrant(&auth.VideoGrant{
		RoomJoin:     true,
		Room:         g.Room,
		CanPublish:   &allow,
		CanSubscribe: &allow,
	}).
		SetIdentity(g.Identity).
		SetName(g.Name).
		SetValidFor(i.ttl)

	jwtToken, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return jwtToken, nil
}

type videoClaims struct {
	Room     string `json:"room"`
	RoomJoin bool   `json:"roomJoin"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Name  string       `json:"name,omitempty"`
	Video *videoClaims `json:"video,omitempty"`
}

// Verify checks the signature, issuer and expiry of raw and that it grants
// joining room.
func (i *Issuer) Verify(raw, room string) (Grant, error) {
	if !i.Configured() {
		return Grant{}, ErrNotConfigured
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return []byte(i.apiSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.apiKey),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Video == nil || !claims.Video.RoomJoin || claims.Video.Room != room {
		return Grant{}, fmt.Errorf("%w: no join grant for room %q", ErrInvalidToken, room)
	}

	return Grant{Identity: claims.Subject, Name: claims.Name, Room: claims.Video.Room}, nil
}
