package store

import "context"

// Operation names passed to an Interceptor.
const (
	OpGet          = "get"
	OpPut          = "put"
	OpDelete       = "delete"
	OpClear        = "clear"
	OpList         = "list"
	OpGetVersioned = "get_versioned"
	OpPutIfVersion = "put_if_version"
	OpGetRange     = "get_range"
)

// Interceptor runs around every call made through a store returned by
// Intercept. It must invoke call exactly once on success paths and return
// its error; returning early without calling it aborts the operation.
type Interceptor func(ctx context.Context, op, key string, call func(context.Context) error) error

// Intercept wraps inner so that every call goes through ic.
//
// The returned store implements VersionedStore and RangeStore only when
// inner does, so capability checks by callers keep working through any
// number of decorators.
func Intercept(inner ObjectStore, ic Interceptor) ObjectStore {
	base := &intercepted{inner: inner, ic: ic}

	v, isVersioned := inner.(VersionedStore)
	r, isRanged := inner.(RangeStore)

	switch {
	case isVersioned && isRanged:
		return &interceptedFull{
			interceptedVersioned: interceptedVersioned{intercepted: base, v: v},
			r:                    r,
		}
	case isVersioned:
		return &interceptedVersioned{intercepted: base, v: v}
	case isRanged:
		return &interceptedRanged{intercepted: base, r: r}
	default:
		return base
	}
}

type intercepted struct {
	inner ObjectStore
	ic    Interceptor
}

func (s *intercepted) Get(ctx context.Context, key string) (data []byte, err error) {
	err = s.ic(ctx, OpGet, key, func(ctx context.Context) error {
		data, err = s.inner.Get(ctx, key)
		return err
	})
	return data, err
}

func (s *intercepted) Put(ctx context.Context, key string, data []byte) error {
	return s.ic(ctx, OpPut, key, func(ctx context.Context) error {
		return s.inner.Put(ctx, key, data)
	})
}

func (s *intercepted) Delete(ctx context.Context, key string) error {
	return s.ic(ctx, OpDelete, key, func(ctx context.Context) error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *intercepted) Clear(ctx context.Context) error {
	return s.ic(ctx, OpClear, "", func(ctx context.Context) error {
		return s.inner.Clear(ctx)
	})
}

func (s *intercepted) List(ctx context.Context) (keys []string, err error) {
	err = s.ic(ctx, OpList, "", func(ctx context.Context) error {
		keys, err = s.inner.List(ctx)
		return err
	})
	return keys, err
}

type interceptedVersioned struct {
	*intercepted
	v VersionedStore
}

func (s *interceptedVersioned) GetVersioned(ctx context.Context, key string) (data []byte, ver Version, err error) {
	err = s.ic(ctx, OpGetVersioned, key, func(ctx context.Context) error {
		data, ver, err = s.v.GetVersioned(ctx, key)
		return err
	})
	return data, ver, err
}

func (s *interceptedVersioned) PutIfVersion(ctx context.Context, key string, data []byte, expected Version) (ver Version, err error) {
	err = s.ic(ctx, OpPutIfVersion, key, func(ctx context.Context) error {
		ver, err = s.v.PutIfVersion(ctx, key, data, expected)
		return err
	})
	return ver, err
}

type interceptedRanged struct {
	*intercepted
	r RangeStore
}

func (s *interceptedRanged) GetRange(ctx context.Context, key string, offset int64, length int) ([]byte, error) {
	return getRange(ctx, s.intercepted, s.r, key, offset, length)
}

type interceptedFull struct {
	interceptedVersioned
	r RangeStore
}

func (s *interceptedFull) GetRange(ctx context.Context, key string, offset int64, length int) ([]byte, error) {
	return getRange(ctx, s.intercepted, s.r, key, offset, length)
}

func getRange(ctx context.Context, s *intercepted, r RangeStore, key string, offset int64, length int) (data []byte, err error) {
	err = s.ic(ctx, OpGetRange, key, func(ctx context.Context) error {
		data, err = r.GetRange(ctx, key, offset, length)
		return err
	})
	return data, err
}
