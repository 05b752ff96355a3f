package core

import (
	"context"
	"io"
	"time"
)

type (
	// SMSService is any service that can send text messages.
	SMSService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*SMSMessage)
	}

	SMSMessage struct {
		To   string
		Body string
	}

	// StoredObject describes an object written to a FileStorage bucket.
	StoredObject struct {
		Bucket      string
		Path        string
		ContentType string
		Size        int64
	}

	// FileStorage is an object storage organized in buckets.
	FileStorage interface {
		Upload(ctx context.Context, bucket, path, contentType string, r io.Reader) (StoredObject, error)
		Delete(ctx context.Context, bucket, path string) error
		PublicURL(bucket, path string) string
		SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error)
	}

	// TokenBlacklist keeps track of revoked JWT ids until they expire.
	TokenBlacklist interface {
		Revoke(ctx context.Context, jti string, ttl time.Duration) error
		IsRevoked(ctx context.Context, jti string) (bool, error)
	}
)
