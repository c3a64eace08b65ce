package testing

import (
	"errors"
	"testing"

	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks that actual matches expected using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

func mustPut(t *testing.T, s store.ObjectStore, key string, data []byte) {
	t.Helper()
	require.NoError(t, s.Put(testContext(), key, data), "Put should succeed")
}

func mustGet(t *testing.T, s store.ObjectStore, key string) []byte {
	t.Helper()
	data, err := s.Get(testContext(), key)
	require.NoError(t, err, "Get should succeed")
	return data
}

func assertObjectEquals(t *testing.T, s store.ObjectStore, key string, expected []byte) {
	t.Helper()
	assert.Equal(t, expected, mustGet(t, s, key), "object data mismatch")
}

func assertObjectMissing(t *testing.T, s store.ObjectStore, key string) {
	t.Helper()
	_, err := s.Get(testContext(), key)
	AssertErrorIs(t, store.ErrObjectNotFound, err)
}

func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
