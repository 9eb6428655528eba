package middleware

import (
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// TokenCodec converts session IDs to the token handed to clients and back.
// Decode returns "" for a token it does not accept, which makes the
// Manager start a new session.
type TokenCodec interface {
	Encode(id session.ID) (string, error)
	Decode(token string) string
}

// PlainCodec sends the session ID itself.
type PlainCodec struct{}

func (PlainCodec) Encode(id session.ID) (string, error) { return id.String(), nil }
func (PlainCodec) Decode(token string) string           { return token }

// SignedCodec wraps the session ID in a signed, expiring token.
type SignedCodec struct {
	Tokens *jwt.Manager
}

func (c SignedCodec) Encode(id session.ID) (string, error) {
	return c.Tokens.Sign(id)
}

func (c SignedCodec) Decode(token string) string {
	if token == "" {
		return ""
	}
	id, err := c.Tokens.SessionID(token)
	if err != nil {
		log.Debugw("rejected session token", "err", err)
		return ""
	}
	return id.String()
}
