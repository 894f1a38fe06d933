package launcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	fail   func(url string) bool
}

func (f *fakeOpener) OpenURL(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
	if f.fail != nil && f.fail(url) {
		return errors.New("no handler")
	}
	return nil
}

func (f *fakeOpener) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func TestOpenKnownAppOnDesktopUsesWebTarget(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	l := New(opener, PlatformDesktop, zerolog.Nop())

	url, err := l.Open(context.Background(), "Spotify")
	require.NoError(t, err)
	assert.Equal(t, "https://open.spotify.com", url)
	assert.Equal(t, []string{"https://open.spotify.com"}, opener.snapshot())
}

func TestOpenUnknownAppSearches(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	l := New(opener, "", zerolog.Nop())

	url, err := l.Open(context.Background(), "google maps")
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/search?q=google+maps", url)
}

func TestOpenOnAndroidFallsBackToWeb(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{fail: func(url string) bool { return strings.HasPrefix(url, "vnd.youtube") }}
	l := New(opener, PlatformAndroid, zerolog.Nop())

	url, err := l.Open(context.Background(), "youtube")
	require.NoError(t, err)
	assert.Equal(t, "https://youtube.com", url)
	assert.Equal(t, []string{"vnd.youtube://", "https://youtube.com"}, opener.snapshot())
}

func TestOpenOnIOSUsesScheme(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	l := New(opener, PlatformIOS, zerolog.Nop())

	url, err := l.Open(context.Background(), "maps")
	require.NoError(t, err)
	assert.Equal(t, "maps://", url)
}

func TestOpenReportsOpenerFailure(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{fail: func(string) bool { return true }}
	l := New(opener, PlatformDesktop, zerolog.Nop())

	_, err := l.Open(context.Background(), "gmail")
	require.Error(t, err)
	assert.Len(t, opener.snapshot(), 1)
}

func TestResolveCoversSchemeTable(t *testing.T) {
	t.Parallel()

	l := New(&fakeOpener{}, PlatformDesktop, zerolog.Nop())
	for name, target := range Schemes {
		assert.Equal(t, target.Web, l.Resolve(name), name)
	}
	assert.Equal(t, "https://x.com", l.Resolve(" X "))
}
