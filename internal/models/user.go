package models

// UserAccount carries what the engines need about a user: identity and the
// encrypted exchange credentials. Profile CRUD lives outside this service.
type UserAccount struct {
	ID int64

	// API key material as stored: opaque encrypted blobs, decrypted only
	// for the duration of a reconciliation cycle.
	APIKeyBlob    string
	APISecretBlob string

	TelegramChatID int64
}

// Credentials is the decrypted pair handed to the exchange client.
type Credentials struct {
	APIKey    string
	APISecret string
}
