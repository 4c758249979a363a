package protocol

import "time"

// LoginRequest is the request body for directory admin authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse contains the JWT token after successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterNodeRequest is the request body a node sends to announce or
// refresh its directory entry.
type RegisterNodeRequest struct {
	PublicKey string `json:"public_key" binding:"required"` // 33-byte compressed secp256k1 key, hex
	Address   string `json:"address" binding:"required"`    // host:port a peer can dial
	Platform  string `json:"platform"`
}

// NodeInfo is a directory entry in API responses.
type NodeInfo struct {
	PublicKey string    `json:"public_key"`
	Address   string    `json:"address"`
	Platform  string    `json:"platform,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
}
