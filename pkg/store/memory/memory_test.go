package memory

import (
	"testing"

	"github.com/marmos91/bucketfs/pkg/store"
	storetesting "github.com/marmos91/bucketfs/pkg/store/testing"
	"github.com/stretchr/testify/assert"
)

// TestMemoryObjectStore runs the object store conformance suite against
// MemoryObjectStore.
func TestMemoryObjectStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.ObjectStore {
			return NewMemoryObjectStore()
		},
	}

	suite.Run(t)
}

func TestMemoryObjectStoreKeys(t *testing.T) {
	s := NewMemoryObjectStore()
	ctx := t.Context()

	assert.NoError(t, s.Put(ctx, "/a", nil))
	assert.NoError(t, s.Put(ctx, "/b", nil))

	assert.Equal(t, 2, s.Len())
	assert.ElementsMatch(t, []string{"/a", "/b"}, s.Keys())
}
