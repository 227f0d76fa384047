package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sealpost/core/pkg/blob"
	"github.com/sealpost/core/pkg/contracts"
)

type stubSender struct {
	method contracts.DeliveryMethod
	result Result
	err    error
	calls  int
}

func (s *stubSender) Method() contracts.DeliveryMethod { return s.method }

func (s *stubSender) Send(_ context.Context, _ Request) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestRegistryLookupUnknownMethod(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(contracts.DeliveryMail)
	require.Error(t, err)
	assert.True(t, contracts.IsTransportFailure(err))
}

func TestRegistrySendWrapsErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSender{method: contracts.DeliveryMail, err: errors.New("smtp down")})

	_, err := r.Send(context.Background(), contracts.DeliveryMail, Request{PackageID: "pkg-1"})
	require.Error(t, err)
	require.True(t, contracts.IsTransportFailure(err))
	var tf *contracts.TransportFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, contracts.DeliveryMail, tf.Method)
	assert.ErrorContains(t, errors.Unwrap(tf), "smtp down")
}

func TestRegistrySendReportsCollaboratorFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSender{
		method: contracts.DeliveryMail,
		result: Result{Success: false, Status: contracts.StatusFailed, Error: "mailbox full"},
	})

	result, err := r.Send(context.Background(), contracts.DeliveryMail, Request{})
	require.True(t, contracts.IsTransportFailure(err))
	assert.Equal(t, contracts.StatusFailed, result.Status)
}

func TestHTTPSenderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message_id": "msg-42"}`))
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPSender(contracts.DeliveryMail, srv.URL)
	result, err := s.Send(context.Background(), Request{PackageID: "pkg-1", Text: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, contracts.StatusSent, result.Status)
	assert.Equal(t, "msg-42", result.ArtifactRef)
}

func TestHTTPSenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	s := NewHTTPSender(contracts.DeliveryMessenger, srv.URL)
	result, err := s.Send(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, contracts.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "502")
}

func TestDownloadSenderProducesArtifact(t *testing.T) {
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)

	s := NewDownloadSender(blobs)
	result, err := s.Send(context.Background(), Request{PackageID: "pkg-1", Text: "bundle me"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, contracts.StatusPendingUserAction, result.Status)

	bundle, err := blobs.Get(context.Background(), result.ArtifactRef)
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "bundle me")
}

func TestChatSenderCompletesImmediately(t *testing.T) {
	result, err := ChatSender{}.Send(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusSentChat, result.Status)
}

func TestRateLimitedHonorsContext(t *testing.T) {
	inner := &stubSender{method: contracts.DeliveryMail, result: Result{Success: true, Status: contracts.StatusSent}}
	limited := NewRateLimited(inner, rate.Every(time.Hour), 1)

	// First send consumes the only token.
	_, err := limited.Send(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Send(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
