package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	a := &stubAdapter{}
	src := map[string]Adapter{"szvc": a, "nil": nil}
	r := NewRegistry(src)

	got, ok := r.Resolve("szvc")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Resolve("weibo")
	assert.False(t, ok)
	_, ok = r.Resolve("nil")
	assert.False(t, ok, "nil adapters are not registered")

	// 构造后修改原 map 不影响 registry
	src["weibo"] = a
	_, ok = r.Resolve("weibo")
	assert.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(AdapterOptions{})
	assert.Equal(t, []string{"baidu-hot-local", "github-trending-local", "hackernews-local", "szse", "szvc"}, r.IDs())

	a, ok := r.Resolve("szvc")
	require.True(t, ok)
	assert.Equal(t, "szvc", a.Name())
}

func TestSZSEPlaceholderFallsBackToSharedAPI(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("id")
		_, _ = w.Write([]byte(`{"status":"success","items":[{"title":"深交所公告"}]}`))
	}))
	defer srv.Close()

	szse, ok := DefaultRegistry(AdapterOptions{}).Resolve("szse")
	require.True(t, ok)
	assert.True(t, szse.FetchRaw(context.Background(), 3).Empty())

	f, _ := newTestFetcher(t, srv.URL, NewRegistry(map[string]Adapter{"szse": szse}))
	payload, err := f.Fetch(context.Background(), NewSourceRequest("szse", "深交所"))
	require.NoError(t, err)
	assert.Equal(t, 1, payload.ItemCount)
	assert.Equal(t, "szse", gotID)
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	_, ok := r.Resolve("szvc")
	assert.False(t, ok)
	assert.Nil(t, r.IDs())
}
