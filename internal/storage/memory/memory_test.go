package memory

import (
	"testing"

	"eventreg/internal/storage"
	"eventreg/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}
