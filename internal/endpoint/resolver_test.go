package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	localHost = "http://localhost:8000"
	prodHost  = "https://prod.example.com"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// fakeBackend answers per scheme+host; hosts listed in down refuse connections.
type fakeBackend struct {
	mu     sync.Mutex
	down   map[string]bool
	status map[string]int
	calls  []string
	bodies []string
}

func newFakeBackend(down ...string) *fakeBackend {
	b := &fakeBackend{down: map[string]bool{}, status: map[string]int{}}
	for _, h := range down {
		b.down[h] = true
	}
	return b
}

func (b *fakeBackend) client() *http.Client {
	return &http.Client{Transport: roundTripFunc(b.roundTrip)}
}

func (b *fakeBackend) roundTrip(r *http.Request) (*http.Response, error) {
	host := r.URL.Scheme + "://" + r.URL.Host
	var body string
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
	}

	b.mu.Lock()
	b.calls = append(b.calls, host+r.URL.Path)
	b.bodies = append(b.bodies, body)
	down := b.down[host]
	status := b.status[host]
	b.mu.Unlock()

	if down {
		return nil, errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")
	}
	if status == 0 {
		status = http.StatusOK
	}
	rec := httptest.NewRecorder()
	rec.WriteHeader(status)
	_ = json.NewEncoder(rec).Encode(map[string]any{"success": status < 400, "data": map[string]string{"host": host}})
	return rec.Result(), nil
}

func (b *fakeBackend) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func newResolver(t *testing.T, client *http.Client) *Resolver {
	t.Helper()
	r, err := NewResolver(localHost, prodHost, WithHTTPClient(client))
	require.NoError(t, err)
	return r
}

func TestNewResolverStartsOnPrimary(t *testing.T) {
	r, err := NewResolver("http://localhost:8000/", "https://prod.example.com")
	require.NoError(t, err)

	assert.Equal(t, localHost, r.Current())
	assert.Equal(t, localHost, r.Primary())
	assert.Equal(t, prodHost, r.Secondary())
	assert.False(t, r.FailedOver())
}

func TestNewResolverRejectsBadHosts(t *testing.T) {
	cases := []struct {
		name      string
		primary   string
		secondary string
	}{
		{"empty primary", "", prodHost},
		{"empty secondary", localHost, "  "},
		{"no scheme", "localhost:8000", prodHost},
		{"ftp scheme", localHost, "ftp://prod.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewResolver(tc.primary, tc.secondary)
			assert.Error(t, err)
		})
	}
}

func TestSendFailsOverOnceThenStaysOnSecondary(t *testing.T) {
	backend := newFakeBackend(localHost)
	r := newResolver(t, backend.client())
	ctx := context.Background()

	resp, err := r.Send(ctx, NewRequest(http.MethodGet, "/api/services", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got struct {
		Data struct {
			Host string `json:"host"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, prodHost, got.Data.Host)
	assert.Equal(t, prodHost, r.Current())
	assert.True(t, r.FailedOver())
	assert.Equal(t, []string{
		localHost + "/api/services",
		prodHost + "/api/services",
	}, backend.snapshot())

	resp2, err := r.Send(ctx, NewRequest(http.MethodGet, "/api/bookings", nil))
	require.NoError(t, err)
	resp2.Body.Close()

	calls := backend.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, prodHost+"/api/bookings", calls[2])
}

func TestSendRetryCarriesSameBodyAndRequestID(t *testing.T) {
	var ids []string
	var bodies []string
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(raw))
		ids = append(ids, req.Header.Get(HeaderRequestID))
		assert.Equal(t, "application/json", req.Header.Get(HeaderContentType))
		if strings.HasPrefix(req.URL.String(), localHost) {
			return nil, errors.New("connection refused")
		}
		return httptest.NewRecorder().Result(), nil
	})}
	r := newResolver(t, client)

	req := NewRequest(http.MethodPost, "/api/bookings", map[string]any{"serviceId": "svc_1"}).
		WithHeader("Authorization", "Bearer abc")
	resp, err := r.Send(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `{"serviceId":"svc_1"}`, bodies[1])
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Nil(t, req.Header.Values(HeaderRequestID), "caller's descriptor must stay untouched")
}

func TestSendDoesNotFailOverOnApplicationErrors(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			backend := newFakeBackend()
			backend.status[localHost] = status
			r := newResolver(t, backend.client())

			resp, err := r.Send(context.Background(), NewRequest(http.MethodGet, "/api/services/missing", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, localHost, r.Current())
			assert.Len(t, backend.snapshot(), 1)
		})
	}
}

func TestSendPassesSuccessFalseThrough(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		rec.WriteHeader(http.StatusOK)
		_, _ = rec.WriteString(`{"success":false,"message":"slot taken"}`)
		return rec.Result(), nil
	})}
	r := newResolver(t, client)

	resp, err := r.Send(context.Background(), NewRequest(http.MethodPost, "/api/bookings", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"message":"slot taken"}`, string(raw))
	assert.Equal(t, localHost, r.Current())
}

func TestSendNoDoubleFailover(t *testing.T) {
	backend := newFakeBackend(localHost, prodHost)
	r := newResolver(t, backend.client())
	ctx := context.Background()

	_, err := r.Send(ctx, NewRequest(http.MethodGet, "/api/services", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, prodHost, te.Host)
	assert.Equal(t, 2, te.Attempts)
	assert.Contains(t, te.Error(), "connection refused")
	assert.Len(t, backend.snapshot(), 2)

	_, err = r.Send(ctx, NewRequest(http.MethodGet, "/api/bookings", nil))
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Attempts)
	assert.Len(t, backend.snapshot(), 3)
	assert.Equal(t, prodHost, r.Current())
}

func TestSendCallerCancellationDoesNotFailOver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		cancel()
		<-req.Context().Done()
		return nil, req.Context().Err()
	})}
	r := newResolver(t, client)

	_, err := r.Send(ctx, NewRequest(http.MethodGet, "/api/services", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, localHost, r.Current())
}

func TestSendTimeoutCountsAsTransportFailure(t *testing.T) {
	client := &http.Client{
		Timeout: 50 * time.Millisecond,
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if strings.HasPrefix(req.URL.String(), localHost) {
				<-req.Context().Done()
				return nil, req.Context().Err()
			}
			return httptest.NewRecorder().Result(), nil
		}),
	}
	r := newResolver(t, client)

	resp, err := r.Send(context.Background(), NewRequest(http.MethodGet, "/api/services", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, prodHost, r.Current())
}

func TestSendConcurrentPrimaryFailuresEachRetryOnce(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	var mu sync.Mutex
	secondaryHits := 0

	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.String(), localHost) {
			arrived.Done()
			arrived.Wait()
			return nil, errors.New("connection refused")
		}
		mu.Lock()
		secondaryHits++
		mu.Unlock()
		return httptest.NewRecorder().Result(), nil
	})}
	r := newResolver(t, client)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := r.Send(context.Background(), NewRequest(http.MethodGet, "/api/notifications", nil))
			if err == nil {
				resp.Body.Close()
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 2, secondaryHits)
	assert.Equal(t, prodHost, r.Current())
}

func TestSendAgainstRealListeners(t *testing.T) {
	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"path":"` + req.URL.Path + `"}}`))
	}))
	defer secondary.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	r, err := NewResolver(deadURL, secondary.URL, WithTimeout(2*time.Second))
	require.NoError(t, err)

	resp, err := r.Send(context.Background(), NewRequest(http.MethodGet, "/api/services", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":true,"data":{"path":"/api/services"}}`, string(raw))
	assert.Equal(t, secondary.URL, r.Current())
}

func TestInjectedClientWithoutTimeoutGetsResolverTimeout(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.String(), localHost) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}
		return httptest.NewRecorder().Result(), nil
	})}

	r, err := NewResolver(localHost, prodHost, WithHTTPClient(client), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, r.client.Timeout)
	assert.Zero(t, client.Timeout, "caller's client is left untouched")

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := r.Send(context.Background(), NewRequest(http.MethodGet, "/api/services", nil))
		if assert.NoError(t, err) {
			resp.Body.Close()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hanging primary was never timed out")
	}
	assert.Equal(t, prodHost, r.Current())
}

func TestInjectedClientKeepsItsOwnTimeout(t *testing.T) {
	client := &http.Client{Timeout: 3 * time.Second}

	r, err := NewResolver(localHost, prodHost, WithHTTPClient(client), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Same(t, client, r.client)
	assert.Equal(t, 3*time.Second, r.client.Timeout)
}
