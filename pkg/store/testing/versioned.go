package testing

import (
	"sync"
	"testing"

	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunVersionedTests executes the VersionedStore contract tests.
func (suite *StoreTestSuite) RunVersionedTests(t *testing.T) {
	t.Run("GetVersioned_NotFound", suite.testGetVersionedNotFound)
	t.Run("PutIfVersion_CreateAbsent", suite.testPutIfVersionCreate)
	t.Run("PutIfVersion_CreateExisting", suite.testPutIfVersionCreateExisting)
	t.Run("PutIfVersion_Matching", suite.testPutIfVersionMatching)
	t.Run("PutIfVersion_Stale", suite.testPutIfVersionStale)
	t.Run("PutIfVersion_SingleWinner", suite.testPutIfVersionSingleWinner)
}

func (suite *StoreTestSuite) versioned(t *testing.T) store.VersionedStore {
	s := suite.NewStore(t)
	v, ok := s.(store.VersionedStore)
	if !ok {
		t.Skip("Store does not implement VersionedStore")
	}
	return v
}

func (suite *StoreTestSuite) testGetVersionedNotFound(t *testing.T) {
	s := suite.versioned(t)

	_, _, err := s.GetVersioned(testContext(), "/missing")
	AssertErrorIs(t, store.ErrObjectNotFound, err)
}

func (suite *StoreTestSuite) testPutIfVersionCreate(t *testing.T) {
	s := suite.versioned(t)

	v, err := s.PutIfVersion(testContext(), "/new", []byte("first"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, v)

	data, got, err := s.GetVersioned(testContext(), "/new")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
	assert.Equal(t, v, got)
}

func (suite *StoreTestSuite) testPutIfVersionCreateExisting(t *testing.T) {
	s := suite.versioned(t)

	mustPut(t, s, "/taken", []byte("x"))
	_, err := s.PutIfVersion(testContext(), "/taken", []byte("y"), "")
	AssertErrorIs(t, store.ErrPreconditionFailed, err)
	assertObjectEquals(t, s, "/taken", []byte("x"))
}

func (suite *StoreTestSuite) testPutIfVersionMatching(t *testing.T) {
	s := suite.versioned(t)

	mustPut(t, s, "/k", []byte("v1"))
	_, v1, err := s.GetVersioned(testContext(), "/k")
	require.NoError(t, err)

	v2, err := s.PutIfVersion(testContext(), "/k", []byte("v2"), v1)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
	assertObjectEquals(t, s, "/k", []byte("v2"))
}

func (suite *StoreTestSuite) testPutIfVersionStale(t *testing.T) {
	s := suite.versioned(t)

	mustPut(t, s, "/k", []byte("v1"))
	_, v1, err := s.GetVersioned(testContext(), "/k")
	require.NoError(t, err)

	mustPut(t, s, "/k", []byte("other writer"))

	_, err = s.PutIfVersion(testContext(), "/k", []byte("lost"), v1)
	AssertErrorIs(t, store.ErrPreconditionFailed, err)
	assertObjectEquals(t, s, "/k", []byte("other writer"))
}

func (suite *StoreTestSuite) testPutIfVersionSingleWinner(t *testing.T) {
	s := suite.versioned(t)

	mustPut(t, s, "/race", []byte("base"))
	_, base, err := s.GetVersioned(testContext(), "/race")
	require.NoError(t, err)

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.PutIfVersion(testContext(), "/race", []byte{byte(i)}, base); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
