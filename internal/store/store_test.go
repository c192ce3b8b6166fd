package store

import (
	"context"
	"errors"
	"fmt"
	"kvguard/internal/backends/memory"
	"kvguard/internal/instrument"
	"kvguard/internal/ports"
	"kvguard/internal/retry"
	"kvguard/internal/topology"
	"kvguard/internal/types"
	"net"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type recordingSink struct {
	mu      sync.Mutex
	counts  map[string]int64
	timings map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counts: map[string]int64{}, timings: map[string]int{}}
}

func (r *recordingSink) Count(ctx context.Context, name string, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name] += n
	return nil
}

func (r *recordingSink) Timing(ctx context.Context, name string, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings[name]++
	return nil
}

// failingStore fails every call with err while failures > 0.
type failingStore struct {
	ports.WireStore
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (f *failingStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return nil
}

func (f *failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.WireStore.Set(ctx, key, value, ttl)
}

func (f *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := f.fail(); err != nil {
		return "", false, err
	}
	return f.WireStore.Get(ctx, key)
}

func (f *failingStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.WireStore.HSet(ctx, key, fields)
}

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	mem   *memory.WireStore
	sink  *recordingSink
	dials int
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = memory.NewWireStore()
	s.sink = newRecordingSink()
	s.dials = 0
}

func (s *StoreTestSuite) settings() topology.Settings {
	return topology.Settings{Endpoint: "mem", Port: topology.DefaultPort, RetryCount: 3}
}

func (s *StoreTestSuite) client(settings topology.Settings, w ports.WireStore) *Client {
	r := topology.NewResolver(settings, topology.WithDialer(func(ctx context.Context, _ topology.Settings) (ports.WireStore, error) {
		s.dials++
		return w, nil
	}))
	return New(r, WithRecorder(instrument.NewRecorder(s.sink)))
}

func (s *StoreTestSuite) raw(key string) string {
	v, ok, err := s.mem.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Require().True(ok, "key %s not stored", key)
	return v
}

type profile struct {
	Name  string   `json:"name"`
	Age   int      `json:"age"`
	Roles []string `json:"roles"`
}

func (s *StoreTestSuite) TestSetValueAndGet() {
	c := s.client(s.settings(), s.mem)
	want := profile{Name: "ada", Age: 36, Roles: []string{"admin"}}

	ok, err := SetValue(s.ctx, c, "user:1", want, 0)
	s.NoError(err)
	s.True(ok)
	s.Equal(`{"name":"ada","age":36,"roles":["admin"]}`, s.raw("user:1"))

	got, found, err := Get[profile](s.ctx, c, "user:1")
	s.NoError(err)
	s.True(found)
	s.Equal(want, got)

	_, found, err = Get[profile](s.ctx, c, "user:2")
	s.NoError(err)
	s.False(found)
	s.Equal(3, s.sink.timings["kvguard.redis.get"]+s.sink.timings["kvguard.redis.set"])
}

func (s *StoreTestSuite) TestStringsAreStoredRaw() {
	c := s.client(s.settings(), s.mem)
	ok, err := c.Set(s.ctx, "greeting", "hello", 0)
	s.NoError(err)
	s.True(ok)
	s.Equal("hello", s.raw("greeting"))

	v, found, err := c.GetString(s.ctx, "greeting")
	s.NoError(err)
	s.True(found)
	s.Equal("hello", v)
}

func (s *StoreTestSuite) TestEmptyValuesAreWrittenAsMarker() {
	c := s.client(s.settings(), s.mem)
	ok, err := c.Set(s.ctx, "empty", "", 0)
	s.NoError(err)
	s.True(ok)
	s.Equal(NilMarker, s.raw("empty"))

	var p *profile
	ok, err = SetValue(s.ctx, c, "nilptr", p, 0)
	s.NoError(err)
	s.True(ok)
	s.Equal(NilMarker, s.raw("nilptr"))

	v, found, err := c.GetString(s.ctx, "empty")
	s.NoError(err)
	s.True(found)
	s.Equal("", v)

	got, found, err := Get[*profile](s.ctx, c, "nilptr")
	s.NoError(err)
	s.True(found)
	s.Nil(got)
}

func (s *StoreTestSuite) TestMarkerLikeStringsRoundTrip() {
	settings := s.settings()
	settings.CompressAbove = 64
	c := s.client(settings, s.mem)

	values := []string{"null", NilMarker, "~z:abc", "~e:x", "~e:" + strings.Repeat("y", 100)}
	for i, want := range values {
		key := fmt.Sprintf("literal:%d", i)
		ok, err := c.Set(s.ctx, key, want, 0)
		s.NoError(err)
		s.True(ok)

		got, found, err := c.GetString(s.ctx, key)
		s.NoError(err)
		s.True(found)
		s.Equal(want, got, "value %q", want)
	}
	s.Equal("null", s.raw("literal:0"))
	s.NotEqual(NilMarker, s.raw("literal:1"))

	got, err := GetMany[string](s.ctx, c, []string{"literal:0", "literal:1"})
	s.NoError(err)
	s.Equal([]string{"null", NilMarker}, got)
}

func (s *StoreTestSuite) TestUndecodableValueYieldsZero() {
	c := s.client(s.settings(), s.mem)
	s.Require().NoError(s.mem.Set(s.ctx, "broken", "{not json", 0))

	got, found, err := Get[profile](s.ctx, c, "broken")
	s.NoError(err)
	s.True(found)
	s.Equal(profile{}, got)
}

func (s *StoreTestSuite) TestCompression() {
	settings := s.settings()
	settings.CompressAbove = 32
	c := s.client(settings, s.mem)

	long := strings.Repeat("abcdefgh", 64)
	ok, err := c.Set(s.ctx, "long", long, 0)
	s.NoError(err)
	s.True(ok)
	stored := s.raw("long")
	s.True(strings.HasPrefix(stored, compressedPrefix))
	s.Less(len(stored), len(long))

	v, found, err := c.GetString(s.ctx, "long")
	s.NoError(err)
	s.True(found)
	s.Equal(long, v)

	ok, err = c.Set(s.ctx, "short", "tiny", 0)
	s.NoError(err)
	s.True(ok)
	s.Equal("tiny", s.raw("short"))
}

func (s *StoreTestSuite) TestTTL() {
	c := s.client(s.settings(), s.mem)
	ok, err := c.Set(s.ctx, "session", "x", 20*time.Millisecond)
	s.NoError(err)
	s.True(ok)
	time.Sleep(40 * time.Millisecond)
	_, found, err := c.GetString(s.ctx, "session")
	s.NoError(err)
	s.False(found)
}

func (s *StoreTestSuite) TestDelete() {
	c := s.client(s.settings(), s.mem)
	deleted, err := c.Delete(s.ctx, "missing")
	s.NoError(err)
	s.False(deleted)

	_, err = c.Set(s.ctx, "k", "v", 0)
	s.NoError(err)
	deleted, err = c.Delete(s.ctx, "k")
	s.NoError(err)
	s.True(deleted)
}

func (s *StoreTestSuite) TestEmptyKeysAreRejectedBeforeTheStore() {
	c := s.client(s.settings(), s.mem)

	_, err := c.Set(s.ctx, "", "v", 0)
	s.True(errors.Is(err, types.ErrNullArgument))
	_, _, err = Get[int](s.ctx, c, "")
	s.True(errors.Is(err, types.ErrNullArgument))
	_, err = c.Delete(s.ctx, "")
	s.True(errors.Is(err, types.ErrNullArgument))
	_, err = c.Count(s.ctx, "")
	s.True(errors.Is(err, types.ErrNullArgument))
	_, err = c.GetIndex(s.ctx, "")
	s.True(errors.Is(err, types.ErrNullArgument))
	_, err = c.AddIndexes(s.ctx, []types.Index{{Name: ""}})
	s.True(errors.Is(err, types.ErrNullArgument))
	_, err = SetMany(s.ctx, c, []*types.Pair[int]{{Key: "a", Value: 1}, {Key: "", Value: 2}}, 0)
	s.True(errors.Is(err, types.ErrNullArgument))

	s.Equal(0, s.dials)
	s.Empty(s.sink.timings)
	s.Empty(s.sink.counts)
	_, found, _ := s.mem.Get(s.ctx, "a")
	s.False(found)
}

func (s *StoreTestSuite) TestSetManyDropsNilEntries() {
	c := s.client(s.settings(), s.mem)
	ok, err := SetMany(s.ctx, c, []*types.Pair[int]{nil, {Key: "a", Value: 1}, nil}, 0)
	s.NoError(err)
	s.True(ok)
	s.Equal("1", s.raw("a"))
	s.Equal(1, s.sink.timings["kvguard.redis.mset"])

	ok, err = SetMany[int](s.ctx, c, []*types.Pair[int]{nil, nil}, 0)
	s.NoError(err)
	s.True(ok)
	s.Equal(1, s.sink.timings["kvguard.redis.mset"])
}

func (s *StoreTestSuite) TestSetManyWithTTLIsOneMeasurement() {
	c := s.client(s.settings(), s.mem)
	pairs := []*types.Pair[string]{{Key: "a", Value: "1"}, nil, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}}
	ok, err := SetMany(s.ctx, c, pairs, time.Minute)
	s.NoError(err)
	s.True(ok)
	s.Equal(1, s.sink.timings["kvguard.redis.setex_many"])
	s.Zero(s.sink.timings["kvguard.redis.set"])
	for _, k := range []string{"a", "b", "c"} {
		s.NotEmpty(s.raw(k))
	}
}

func (s *StoreTestSuite) TestGetMany() {
	c := s.client(s.settings(), s.mem)
	_, err := SetMany(s.ctx, c, []*types.Pair[int]{{Key: "a", Value: 1}, {Key: "c", Value: 3}}, 0)
	s.NoError(err)
	s.Require().NoError(s.mem.Set(s.ctx, "bad", "x", 0))

	got, err := GetMany[int](s.ctx, c, []string{"c", "", "missing", "a", "bad"})
	s.NoError(err)
	s.Equal([]int{3, 0, 1, 0}, got)

	got, err = GetMany[int](s.ctx, c, []string{"", ""})
	s.NoError(err)
	s.Empty(got)
}

func (s *StoreTestSuite) TestAddIndexesMergesByName() {
	c := s.client(s.settings(), s.mem)
	indexes := []types.Index{
		{Name: "idx", Fields: []types.Field{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}},
		{Name: "other", Fields: []types.Field{{Name: "x", Value: "9"}}},
		{Name: "idx", Fields: []types.Field{{Name: "b", Value: "3"}, {Name: "c", Value: "4"}}},
	}
	ok, err := c.AddIndexes(s.ctx, indexes)
	s.NoError(err)
	s.True(ok)
	s.Equal(2, s.sink.timings["kvguard.redis.hset"])

	idx, err := c.GetIndex(s.ctx, "idx")
	s.NoError(err)
	s.Equal(&types.Index{Name: "idx", Fields: []types.Field{
		{Name: "a", Value: "1"}, {Name: "b", Value: "3"}, {Name: "c", Value: "4"},
	}}, idx)

	ok, err = c.AddIndexes(s.ctx, indexes)
	s.NoError(err)
	s.True(ok)
	again, err := c.GetIndex(s.ctx, "idx")
	s.NoError(err)
	s.Equal(idx, again)

	n, err := c.Count(s.ctx, "idx")
	s.NoError(err)
	s.Equal(int64(3), n)
}

func (s *StoreTestSuite) TestIndexProjections() {
	c := s.client(s.settings(), s.mem)
	_, err := c.AddIndexes(s.ctx, []types.Index{{Name: "idx", Fields: []types.Field{
		{Name: "zeta", Value: "last"}, {Name: "alpha", Value: "first"},
	}}})
	s.NoError(err)

	names, err := c.GetIndexColumnNames(s.ctx, "idx")
	s.NoError(err)
	s.Equal([]string{"alpha", "zeta"}, names)

	values, err := c.GetIndexColumnValues(s.ctx, "idx")
	s.NoError(err)
	s.Equal([]string{"first", "last"}, values)

	removed, err := c.DeleteIndexColumns(s.ctx, "idx", "alpha", "nope")
	s.NoError(err)
	s.True(removed)
	removed, err = c.DeleteIndexColumns(s.ctx, "idx", "alpha")
	s.NoError(err)
	s.False(removed)
	removed, err = c.DeleteIndexColumns(s.ctx, "idx")
	s.NoError(err)
	s.False(removed)

	_, err = c.DeleteIndexColumns(s.ctx, "idx", "zeta")
	s.NoError(err)
	idx, err := c.GetIndex(s.ctx, "idx")
	s.NoError(err)
	s.Nil(idx)
	names, err = c.GetIndexColumnNames(s.ctx, "idx")
	s.NoError(err)
	s.Nil(names)
	values, err = c.GetIndexColumnValues(s.ctx, "idx")
	s.NoError(err)
	s.Nil(values)

	n, err := c.Count(s.ctx, "idx")
	s.NoError(err)
	s.Zero(n)
}

func (s *StoreTestSuite) TestFailuresAreRetriedAndAbsorbed() {
	flaky := &failingStore{WireStore: s.mem, failures: 100, err: errors.New("READONLY")}
	c := s.client(s.settings(), flaky)

	ok, err := c.Set(s.ctx, "k", "v", 0)
	s.NoError(err)
	s.False(ok)
	s.Equal(3, flaky.calls)
	s.Equal(int64(3), s.sink.counts[retry.KindOther.CounterName()])
	s.Equal(1, s.sink.timings["kvguard.redis.set"])
	s.Equal(1, s.dials)
}

func (s *StoreTestSuite) TestTransientFailureRecovers() {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	flaky := &failingStore{WireStore: s.mem, failures: 2, err: refused}
	c := s.client(s.settings(), flaky)

	ok, err := c.Set(s.ctx, "k", "v", 0)
	s.NoError(err)
	s.True(ok)
	s.Equal(3, flaky.calls)
	s.Equal(int64(2), s.sink.counts[retry.KindUnableToConnect.CounterName()])
	s.Equal("v", s.raw("k"))
}

func (s *StoreTestSuite) TestIndexWriteFailure() {
	flaky := &failingStore{WireStore: s.mem, failures: 100, err: errors.New("down")}
	c := s.client(s.settings(), flaky)
	ok, err := c.AddIndexes(s.ctx, []types.Index{{Name: "idx", Fields: []types.Field{{Name: "a", Value: "1"}}}})
	s.NoError(err)
	s.False(ok)
}

func (s *StoreTestSuite) TestMisconfigurationPropagates() {
	c := s.client(topology.Settings{Port: topology.DefaultPort, RetryCount: 3}, s.mem)

	ok, err := c.Set(s.ctx, "k", "v", 0)
	s.False(ok)
	s.True(errors.Is(err, types.ErrConfiguration))

	_, _, err = Get[string](s.ctx, c, "k")
	s.True(errors.Is(err, types.ErrConfiguration))

	s.Equal(0, s.dials)
	s.Empty(s.sink.counts)
	s.False(c.IsConnected(s.ctx))
}

func (s *StoreTestSuite) TestIsConnected() {
	c := s.client(s.settings(), s.mem)
	s.True(c.IsConnected(s.ctx))
	s.Equal(1, s.sink.timings["kvguard.redis.probe"])

	flaky := &failingStore{WireStore: memory.NewWireStore(), failures: 1, err: errors.New("down")}
	s.False(s.client(s.settings(), flaky).IsConnected(s.ctx))

	closed := memory.NewWireStore()
	s.Require().NoError(closed.Close())
	s.False(s.client(s.settings(), closed).IsConnected(s.ctx))
}

func (s *StoreTestSuite) TestCanceledContextStopsRetrying() {
	flaky := &failingStore{WireStore: s.mem, failures: 100, err: errors.New("down")}
	settings := s.settings()
	settings.RetrySleep = time.Hour
	c := s.client(settings, flaky)

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	ok, err := c.Set(ctx, "k", "v", 0)
	s.NoError(err)
	s.False(ok)
	s.Less(time.Since(start), time.Second)
}

func (s *StoreTestSuite) TestAsyncSetAndGet() {
	c := s.client(s.settings(), s.mem)
	want := profile{Name: "ada", Age: 36}

	set := <-SetValueAsync(s.ctx, c, "user:1", want, time.Minute)
	s.NoError(set.Err)
	s.True(set.OK)

	got := <-GetAsync[profile](s.ctx, c, "user:1")
	s.NoError(got.Err)
	s.True(got.OK)
	s.Equal(want, got.Value)

	missing := <-GetAsync[profile](s.ctx, c, "user:2")
	s.NoError(missing.Err)
	s.False(missing.OK)

	s.Equal(1, s.sink.timings["kvguard.redis.set"])
	s.Equal(2, s.sink.timings["kvguard.redis.get"])
}

func (s *StoreTestSuite) TestAsyncFailuresAreRetriedAndAbsorbed() {
	flaky := &failingStore{WireStore: s.mem, failures: 100, err: errors.New("READONLY")}
	c := s.client(s.settings(), flaky)

	set := <-SetValueAsync(s.ctx, c, "k", "v", 0)
	s.NoError(set.Err)
	s.False(set.OK)
	s.Equal(3, flaky.calls)
	s.Equal(int64(3), s.sink.counts[retry.KindOther.CounterName()])
}

func (s *StoreTestSuite) TestAsyncRejectsEmptyKeyAndMisconfiguration() {
	c := s.client(s.settings(), s.mem)
	got := <-GetAsync[string](s.ctx, c, "")
	s.True(errors.Is(got.Err, types.ErrNullArgument))
	set := <-SetValueAsync(s.ctx, c, "", "v", 0)
	s.True(errors.Is(set.Err, types.ErrNullArgument))

	bad := s.client(topology.Settings{Port: topology.DefaultPort, RetryCount: 3}, s.mem)
	set = <-SetValueAsync(s.ctx, bad, "k", "v", 0)
	s.False(set.OK)
	s.True(errors.Is(set.Err, types.ErrConfiguration))
	s.Equal(0, s.dials)
}
