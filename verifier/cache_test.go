package verifier_test

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/jrsteele09/go-token-trust/verifier"
	"github.com/stretchr/testify/require"
)

var (
	sharedKeyPairs     [2]*keys.KeyPair
	sharedKeyPairsOnce sync.Once
)

// testKeyPairs returns two distinct key pairs generated once per package.
func testKeyPairs(t *testing.T) (*keys.KeyPair, *keys.KeyPair) {
	t.Helper()
	sharedKeyPairsOnce.Do(func() {
		for i := range sharedKeyPairs {
			kp, err := keys.GenerateRSAKeyPair("", 2048)
			if err != nil {
				panic("failed to generate shared key pair: " + err.Error())
			}
			sharedKeyPairs[i] = kp
		}
	})
	return sharedKeyPairs[0], sharedKeyPairs[1]
}

func publicKey(t *testing.T, kp *keys.KeyPair) *rsa.PublicKey {
	t.Helper()
	pub, err := kp.RSAPublicKey()
	require.NoError(t, err)
	return pub
}

type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
	mu    sync.Mutex
	key   *rsa.PublicKey
	err   error
}

func (f *fakeFetcher) FetchKey(context.Context) (*rsa.PublicKey, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, f.err
}

func (f *fakeFetcher) set(key *rsa.PublicKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.key, f.err = key, err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeyCache_StaticKeyNeverFetches(t *testing.T) {
	kp, _ := testKeyPairs(t)
	fetcher := &fakeFetcher{err: errors.New("must not be called")}
	clock := &testClock{now: time.Now()}
	cache := verifier.NewKeyCache(fetcher,
		verifier.WithStaticKey(publicKey(t, kp)),
		verifier.WithTTL(time.Second),
		verifier.WithCacheNowFunc(clock.Now),
	)

	for _, force := range []bool{false, true, false} {
		key, err := cache.GetKey(context.Background(), force)
		require.NoError(t, err)
		require.True(t, publicKey(t, kp).Equal(key))
		clock.Advance(time.Hour)
	}
	cache.Clear()
	_, err := cache.GetKey(context.Background(), true)
	require.NoError(t, err)

	require.Zero(t, fetcher.calls.Load())
}

func TestKeyCache_FetchAndTTL(t *testing.T) {
	kp, other := testKeyPairs(t)
	ctx := context.Background()
	fetcher := &fakeFetcher{key: publicKey(t, kp)}
	clock := &testClock{now: time.Now()}
	cache := verifier.NewKeyCache(fetcher, verifier.WithCacheNowFunc(clock.Now))

	t.Run("first call fetches", func(t *testing.T) {
		key, err := cache.GetKey(ctx, false)
		require.NoError(t, err)
		require.True(t, publicKey(t, kp).Equal(key))
		require.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("served from cache within ttl", func(t *testing.T) {
		clock.Advance(verifier.DefaultCacheTTL)
		_, err := cache.GetKey(ctx, false)
		require.NoError(t, err)
		require.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("force refresh refetches within ttl", func(t *testing.T) {
		fetcher.set(publicKey(t, other), nil)
		key, err := cache.GetKey(ctx, true)
		require.NoError(t, err)
		require.True(t, publicKey(t, other).Equal(key))
		require.Equal(t, int32(2), fetcher.calls.Load())
	})

	t.Run("expired entry refetches", func(t *testing.T) {
		clock.Advance(verifier.DefaultCacheTTL + time.Second)
		_, err := cache.GetKey(ctx, false)
		require.NoError(t, err)
		require.Equal(t, int32(3), fetcher.calls.Load())
	})

	t.Run("clear forces next fetch", func(t *testing.T) {
		cache.Clear()
		_, err := cache.GetKey(ctx, false)
		require.NoError(t, err)
		require.Equal(t, int32(4), fetcher.calls.Load())
	})
}

func TestKeyCache_FetchFailureFailsClosed(t *testing.T) {
	kp, _ := testKeyPairs(t)
	ctx := context.Background()
	fetcher := &fakeFetcher{key: publicKey(t, kp)}
	clock := &testClock{now: time.Now()}
	cache := verifier.NewKeyCache(fetcher, verifier.WithTTL(time.Minute), verifier.WithCacheNowFunc(clock.Now))

	_, err := cache.GetKey(ctx, false)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	fetcher.set(nil, boom)
	clock.Advance(2 * time.Minute)

	key, err := cache.GetKey(ctx, false)
	require.Nil(t, key, "stale key must not be served")
	require.ErrorIs(t, err, apperr.ErrKeyUnavailable)
	require.ErrorIs(t, err, boom)
	var fe *verifier.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "fetch public key: connection refused", fe.Error())

	// Recovery once the issuer is reachable again.
	fetcher.set(publicKey(t, kp), nil)
	_, err = cache.GetKey(ctx, false)
	require.NoError(t, err)
}

func TestKeyCache_ConcurrentMissesShareFetch(t *testing.T) {
	kp, _ := testKeyPairs(t)
	fetcher := &fakeFetcher{key: publicKey(t, kp)}
	cache := verifier.NewKeyCache(fetcher)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.GetKey(context.Background(), false)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), fetcher.calls.Load())
}

func TestKeyCache_ConcurrentFailuresShareFetch(t *testing.T) {
	const delay = 200 * time.Millisecond
	boom := errors.New("issuer down")
	fetcher := &fakeFetcher{err: boom, delay: delay}
	cache := verifier.NewKeyCache(fetcher)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 10)
		waits = make([]time.Duration, 10)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			began := time.Now()
			_, errs[i] = cache.GetKey(context.Background(), false)
			waits[i] = time.Since(began)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range errs {
		require.ErrorIs(t, errs[i], apperr.ErrKeyUnavailable)
		require.ErrorIs(t, errs[i], boom)
		require.Less(t, waits[i], 3*delay, "callers must not queue behind each other's fetches")
	}
	require.Equal(t, int32(1), fetcher.calls.Load())
}

func TestKeyCache_CallerContextEndsWait(t *testing.T) {
	kp, _ := testKeyPairs(t)
	fetcher := &fakeFetcher{key: publicKey(t, kp), delay: time.Second}
	cache := verifier.NewKeyCache(fetcher)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	began := time.Now()
	key, err := cache.GetKey(ctx, false)
	require.Nil(t, key)
	require.ErrorIs(t, err, apperr.ErrKeyUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(began), 500*time.Millisecond)

	// The shared fetch keeps running and fills the cache for later callers.
	require.Eventually(t, func() bool {
		got, err := cache.GetKey(context.Background(), false)
		return err == nil && got != nil
	}, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, int32(1), fetcher.calls.Load())
}

func servePublicKey(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestHTTPKeyFetcher(t *testing.T) {
	kp, _ := testKeyPairs(t)
	pemText, err := kp.ExportPublicKeyPEM()
	require.NoError(t, err)

	t.Run("ok", func(t *testing.T) {
		url := servePublicKey(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != verifier.PublicKeyPath {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(keys.PublicKeyResponse{PublicKey: pemText, Algorithm: keys.RS256})
		})

		key, err := verifier.NewHTTPKeyFetcher(url+"/", time.Second).FetchKey(context.Background())
		require.NoError(t, err)
		require.True(t, publicKey(t, kp).Equal(key))
	})

	failures := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "down", http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"public_key":`))
			},
		},
		{
			name: "missing key",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"algorithm":"RS256"}`))
			},
		},
		{
			name: "unexpected algorithm",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(keys.PublicKeyResponse{PublicKey: pemText, Algorithm: "HS256"})
			},
		},
		{
			name: "garbage pem",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(keys.PublicKeyResponse{PublicKey: "not a key", Algorithm: keys.RS256})
			},
		},
		{
			name: "timeout",
			handler: func(_ http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			url := servePublicKey(t, tt.handler)

			key, err := verifier.NewHTTPKeyFetcher(url, 100*time.Millisecond).FetchKey(context.Background())
			require.Nil(t, key)
			require.ErrorIs(t, err, apperr.ErrKeyUnavailable)
			var fe *verifier.FetchError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, url+verifier.PublicKeyPath, fe.URL)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := verifier.NewHTTPKeyFetcher(url, time.Second).FetchKey(context.Background())
		require.ErrorIs(t, err, apperr.ErrKeyUnavailable)
	})
}
