package domain

import "time"

// LoginState is the CSRF nonce persisted between the authorization
// redirect and the provider callback. It expires on a short TTL.
type LoginState struct {
	State     string    `json:"state"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}
