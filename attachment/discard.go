package attachment

import (
	"context"

	"github.com/google/uuid"
)

// Discard is an Uploader that accepts everything and stores nothing.
// Used in tests and when no receipt store is configured.
type Discard struct{}

func (Discard) Upload(_ context.Context, fileName string, _ []byte) (string, string, error) {
	id := uuid.NewString()
	return "discard://" + id + "/" + fileName, id, nil
}

func (Discard) Delete(context.Context, string) error { return nil }
