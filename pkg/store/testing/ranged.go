package testing

import (
	"testing"

	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRangeTests executes the RangeStore contract tests.
func (suite *StoreTestSuite) RunRangeTests(t *testing.T) {
	s := suite.NewStore(t)
	r, ok := s.(store.RangeStore)
	if !ok {
		t.Skip("Store does not implement RangeStore")
	}

	data := []byte("0123456789")
	mustPut(t, r, "/r", data)

	tests := []struct {
		name   string
		offset int64
		length int
		want   []byte
	}{
		{name: "prefix", offset: 0, length: 4, want: []byte("0123")},
		{name: "middle", offset: 3, length: 3, want: []byte("345")},
		{name: "short at end", offset: 7, length: 10, want: []byte("789")},
		{name: "at end", offset: 10, length: 5, want: []byte{}},
		{name: "past end", offset: 50, length: 5, want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.GetRange(testContext(), "/r", tt.offset, tt.length)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), len(got))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := r.GetRange(testContext(), "/missing", 0, 1)
		AssertErrorIs(t, store.ErrObjectNotFound, err)
	})
}
