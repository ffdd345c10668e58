package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysCoverEverySpriteFrame(t *testing.T) {
	keys := Keys(2)
	assert.Len(t, keys, 2*len(Directions)*FramesPerDirection+1)
	assert.Contains(t, keys, "1-D-1")
	assert.Contains(t, keys, "2-R-3")
	assert.Equal(t, CeoKey, keys[len(keys)-1])
}

func TestEmbeddedSetIsComplete(t *testing.T) {
	l := &Loader{Fetcher: Embedded(), SpriteCount: 4}
	res := l.Load(context.Background())
	assert.Empty(t, res.Failed)
	assert.Equal(t, len(Keys(4)), res.Registry.Len())
}

type flakyFetcher struct {
	fail  map[string]bool
	calls atomic.Int32
}

func (f *flakyFetcher) Fetch(_ context.Context, key string) (string, error) {
	f.calls.Add(1)
	if f.fail[key] {
		return "", errors.New("boom")
	}
	return key, nil
}

func TestLoadSettlesAllAndSkipsFailures(t *testing.T) {
	f := &flakyFetcher{fail: map[string]bool{"1-L-2": true, CeoKey: true}}
	l := &Loader{Fetcher: f, SpriteCount: 1, Parallel: 2}

	res := l.Load(context.Background())
	assert.Equal(t, int32(len(Keys(1))), f.calls.Load())
	assert.Equal(t, []string{"1-L-2", CeoKey}, res.Failed)
	assert.Equal(t, len(Keys(1))-2, res.Registry.Len())

	_, ok := res.Registry.Lookup("1-L-2")
	assert.False(t, ok)
	tex, ok := res.Registry.Lookup("1-D-1")
	require.True(t, ok)
	assert.Equal(t, []string{"1-D-1"}, tex.Lines)
}

func TestFSFetcher(t *testing.T) {
	f := &FSFetcher{FS: fstest.MapFS{"1-D-1.txt": {Data: []byte("ab\r\ncde\n")}}}

	raw, err := f.Fetch(context.Background(), "1-D-1")
	require.NoError(t, err)
	tex := NewTexture("1-D-1", raw)
	assert.Equal(t, []string{"ab", "cde"}, tex.Lines)
	assert.Equal(t, 3, tex.Width)
	assert.Equal(t, 2, tex.Height)

	_, err = f.Fetch(context.Background(), "9-D-1")
	require.ErrorIs(t, err, ErrAssetNotFound)
	_, err = f.Fetch(context.Background(), "../etc/passwd")
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/assets/") {
		case "ceo":
			_, _ = w.Write([]byte("[^]"))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{BaseURL: srv.URL + "/"}
	raw, err := f.Fetch(context.Background(), "ceo")
	require.NoError(t, err)
	assert.Equal(t, "[^]", raw)

	_, err = f.Fetch(context.Background(), "1-D-1")
	require.ErrorIs(t, err, ErrAssetNotFound)

	_, err = f.Fetch(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAssetNotFound)
}

func TestTextureWidthCountsWideRunes(t *testing.T) {
	tex := NewTexture("k", "🤖x")
	assert.Equal(t, 3, tex.Width)
}
