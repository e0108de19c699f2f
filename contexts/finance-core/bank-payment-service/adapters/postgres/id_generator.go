package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator issues ids for audit events and settlements.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
