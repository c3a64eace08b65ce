package filesystem

import (
	"strings"
	"testing"

	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		leaf   string
	}{
		{path: "/a", parent: "/", leaf: "a"},
		{path: "/a/b", parent: "/a", leaf: "b"},
		{path: "/a/b/c.txt", parent: "/a/b", leaf: "c.txt"},
		{path: "/with space", parent: "/", leaf: "with space"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			parent, leaf, err := Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.parent, parent)
			assert.Equal(t, tt.leaf, leaf)
		})
	}
}

func TestResolveRejects(t *testing.T) {
	tests := []struct {
		name string
		path string
		code metadata.ErrorCode
	}{
		{name: "root", path: "/", code: metadata.ErrInvalidArgument},
		{name: "empty", path: "", code: metadata.ErrInvalidArgument},
		{name: "relative", path: "a/b", code: metadata.ErrInvalidArgument},
		{name: "double slash", path: "/a//b", code: metadata.ErrInvalidArgument},
		{name: "trailing slash", path: "/a/", code: metadata.ErrInvalidArgument},
		{name: "dot", path: "/a/./b", code: metadata.ErrInvalidArgument},
		{name: "dotdot", path: "/a/..", code: metadata.ErrInvalidArgument},
		{name: "long leaf", path: "/" + strings.Repeat("x", metadata.MaxNameLen+1), code: metadata.ErrNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Resolve(tt.path)
			AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestResolveRootIsRootRejection(t *testing.T) {
	_, _, err := Resolve("/")
	assert.True(t, isRootErr(err))

	_, _, err = Resolve("/a//b")
	assert.False(t, isRootErr(err))
}

func TestMaxLengthNameAccepted(t *testing.T) {
	_, leaf, err := Resolve("/" + strings.Repeat("x", metadata.MaxNameLen))
	require.NoError(t, err)
	assert.Len(t, leaf, metadata.MaxNameLen)
}

func TestKeys(t *testing.T) {
	ci := metadata.NamePolicy{CaseInsensitive: true}
	cs := metadata.NamePolicy{}

	assert.Equal(t, "/docs/readme", KeyOf(ci, "/Docs/README"))
	assert.Equal(t, "/Docs/README", KeyOf(cs, "/Docs/README"))
	assert.Equal(t, "/a", ChildKey(ci, "/", "A"))
	assert.Equal(t, "/a/b", ChildKey(ci, "/a", "B"))
	assert.Equal(t, "/a/B", ChildKey(cs, "/a", "B"))
	assert.Equal(t, "/x", JoinPath("/", "x"))
	assert.Equal(t, "/a/x", JoinPath("/a", "x"))
}

func TestIsWithin(t *testing.T) {
	assert.True(t, isWithin("/a/b", "/a"))
	assert.True(t, isWithin("/a/b/c", "/a"))
	assert.False(t, isWithin("/a", "/a"))
	assert.False(t, isWithin("/ab", "/a"))
	assert.True(t, isWithin("/a", "/"))
	assert.False(t, isWithin("/", "/"))
}
