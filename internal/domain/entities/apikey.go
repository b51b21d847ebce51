package entities

import "time"

// APIKey is an issued credential for the public API. The caller presents
// `<id>.<secret>`; only the bcrypt hash of the secret is stored.
type APIKey struct {
	ID         string    `json:"id" bson:"_id"`
	SecretHash string    `json:"-" bson:"secret_hash"`
	Label      string    `json:"label,omitempty" bson:"label,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	Disabled   bool      `json:"disabled" bson:"disabled"`
}

// NewAPIKey builds a key record around an already-hashed secret.
func NewAPIKey(id, secretHash, label string) *APIKey {
	return &APIKey{
		ID:         id,
		SecretHash: secretHash,
		Label:      label,
		CreatedAt:  time.Now().UTC(),
	}
}

// IdempotencyRecord caches the response of a completed mutating API call so
// client retries with the same Idempotency-Key replay it instead of acting
// twice. Rows expire via a TTL index.
type IdempotencyRecord struct {
	Key            string    `json:"key" bson:"_id"`
	RequestHash    string    `json:"request_hash" bson:"request_hash"`
	ResponseStatus int       `json:"response_status" bson:"response_status"`
	ResponseBody   []byte    `json:"response_body" bson:"response_body"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}
