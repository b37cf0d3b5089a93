package cache

import "time"

// Entry is one cached model response.
type Entry struct {
	Key       string    `json:"key"`
	Model     string    `json:"model,omitempty"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewEntry creates an entry that expires ttl from now.
func NewEntry(key, model, response string, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Key:       key,
		Model:     model,
		Response:  response,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired checks if the cache entry has expired based on current time.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Age returns the duration since the entry was created.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
