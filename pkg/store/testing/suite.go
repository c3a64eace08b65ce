package testing

import (
	"context"
	"testing"

	"github.com/marmos91/bucketfs/pkg/store"
)

// StoreTestSuite is a conformance suite for store.ObjectStore
// implementations. It checks the interface contract, not implementation
// details, so the same suite runs against memory, badger and S3.
//
// Optional capabilities (VersionedStore, RangeStore) are tested only when
// the store under test implements them.
//
// Usage:
//
//	func TestMyObjectStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.ObjectStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) store.ObjectStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("VersionedOperations", suite.RunVersionedTests)
	t.Run("RangeOperations", suite.RunRangeTests)
}

func testContext() context.Context {
	return context.Background()
}
