package memory

import (
	"testing"

	"simbank/internal/store"
	"simbank/internal/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
