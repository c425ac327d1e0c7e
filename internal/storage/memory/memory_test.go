package memory

import (
	"testing"

	"finlens/internal/ports"
	"finlens/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store {
		return New()
	})
}
