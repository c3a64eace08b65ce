package testing

import (
	"context"
	"testing"

	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes the ObjectStore contract tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Put_Get", suite.testPutGet)
	t.Run("Put_Overwrite", suite.testPutOverwrite)
	t.Run("Put_EmptyValue", suite.testPutEmptyValue)
	t.Run("Put_CallerBufferNotShared", suite.testPutCallerBuffer)
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Keys_AreDistinct", suite.testKeysDistinct)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
	t.Run("Clear", suite.testClear)
	t.Run("List", suite.testList)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	s := suite.NewStore(t)

	data := generateTestData(1024)
	mustPut(t, s, "/docs/report.txt", data)
	assertObjectEquals(t, s, "/docs/report.txt", data)
}

func (suite *StoreTestSuite) testPutOverwrite(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "/file", []byte("old data that is long"))
	mustPut(t, s, "/file", []byte("new"))
	assertObjectEquals(t, s, "/file", []byte("new"))
}

func (suite *StoreTestSuite) testPutEmptyValue(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "/empty", []byte{})
	assert.Empty(t, mustGet(t, s, "/empty"))
}

func (suite *StoreTestSuite) testPutCallerBuffer(t *testing.T) {
	s := suite.NewStore(t)

	buf := []byte("abc")
	mustPut(t, s, "/buf", buf)
	buf[0] = 'z'

	got := mustGet(t, s, "/buf")
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'z'
	assertObjectEquals(t, s, "/buf", []byte("abc"))
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	s := suite.NewStore(t)
	assertObjectMissing(t, s, "/missing")
}

func (suite *StoreTestSuite) testKeysDistinct(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "/", []byte("root"))
	mustPut(t, s, "/a", []byte("a"))
	mustPut(t, s, "/a/b", []byte("ab"))

	assertObjectEquals(t, s, "/", []byte("root"))
	assertObjectEquals(t, s, "/a", []byte("a"))
	assertObjectEquals(t, s, "/a/b", []byte("ab"))
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	s := suite.NewStore(t)

	mustPut(t, s, "/gone", []byte("x"))
	require.NoError(t, s.Delete(testContext(), "/gone"))
	assertObjectMissing(t, s, "/gone")
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	s := suite.NewStore(t)

	err := s.Delete(testContext(), "/never")
	AssertErrorIs(t, store.ErrObjectNotFound, err)
}

func (suite *StoreTestSuite) testClear(t *testing.T) {
	s := suite.NewStore(t)

	for _, k := range []string{"/", "/a", "/a/b", "/c"} {
		mustPut(t, s, k, []byte(k))
	}

	require.NoError(t, s.Clear(testContext()))
	for _, k := range []string{"/", "/a", "/a/b", "/c"} {
		assertObjectMissing(t, s, k)
	}

	// still usable
	mustPut(t, s, "/a", []byte("again"))
	assertObjectEquals(t, s, "/a", []byte("again"))
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	s := suite.NewStore(t)

	keys, err := s.List(testContext())
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"/", "/a", "/a/b", "/c"} {
		mustPut(t, s, k, []byte(k))
	}
	require.NoError(t, s.Delete(testContext(), "/c"))

	keys, err = s.List(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/", "/a", "/a/b"}, keys)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	s := suite.NewStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Put(ctx, "/x", []byte("x")))
	_, err := s.Get(ctx, "/x")
	assert.Error(t, err)
}
