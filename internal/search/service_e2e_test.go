package search

import (
	"context"
	"github.com/skybi/impds-proxy/internal/beneficiary"
	"github.com/skybi/impds-proxy/internal/codec"
	"github.com/skybi/impds-proxy/internal/parser"
	"github.com/skybi/impds-proxy/internal/portal"
	"github.com/skybi/impds-proxy/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
)

const resultMarkup = `<html><body>
<table class="table table-striped table-bordered table-hover">
  <thead><tr><th>S.No</th><th>State</th><th>District</th><th>RC</th><th>Scheme</th><th>Member ID</th><th>Name</th><th>Remark</th></tr></thead>
  <tbody>
    <tr><td>1</td><td>UP</td><td>Lucknow</td><td>12345</td><td>X</td><td>M1</td><td>John</td><td></td></tr>
  </tbody>
</table>
<table class="table table-striped table-bordered table-hover">
  <tbody>
    <tr><td>FPS Category</td><td>Yes</td></tr>
  </tbody>
</table>
</body></html>`

// fakePortal decrypts incoming identifiers and only accepts a single session token
type fakePortal struct {
	codec    *codec.PassphraseCodec
	accepted atomic.Value
	requests atomic.Int64

	mtx         sync.Mutex
	identifiers []string
}

func (fake *fakePortal) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	fake.requests.Add(1)
	cookie, err := request.Cookie("JSESSIONID")
	if err != nil || cookie.Value != fake.accepted.Load().(string) {
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := request.ParseForm(); err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	identifier, err := fake.codec.Decrypt(request.PostForm.Get("aadhar"))
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	fake.mtx.Lock()
	fake.identifiers = append(fake.identifiers, identifier)
	fake.mtx.Unlock()
	writer.Write([]byte(resultMarkup))
}

func newEndToEnd(t *testing.T, acceptedToken string) (*Service, *session.StaticAcquirer, *fakePortal) {
	t.Helper()
	passphrase := codec.NewPassphrase("nic@impds#dedup05613")
	fake := &fakePortal{codec: passphrase}
	fake.accepted.Store(acceptedToken)

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	acquirer := session.NewStaticToken(testToken)
	manager := session.NewManager(acquirer, session.Options{Lifetime: session.DefaultLifetime})
	client := portal.New(portal.Options{BaseURL: server.URL})
	return NewService(manager, passphrase, client, parser.New(nil), Options{}), acquirer, fake
}

func TestEndToEndSearch(t *testing.T) {
	service, acquirer, fake := newEndToEnd(t, testToken)

	result, err := service.Search(context.Background(), "1234 5678 9012", "A")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	record := result.Records[0]
	assert.Equal(t, "12345", record.Details.CardNumber)
	assert.Equal(t, "UP", record.Details.StateName)
	require.Len(t, record.Members, 1)
	assert.Equal(t, "John", record.Members[0].MemberName)
	assert.Nil(t, record.Members[0].Remark)
	assert.Equal(t, beneficiary.FPSCategoryOnline, record.AdditionalInfo.FPSCategory)

	assert.Equal(t, []string{testIdentifier}, fake.identifiers)
	assert.EqualValues(t, 1, acquirer.Calls())

	_, err = service.Search(context.Background(), testIdentifier, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 1, acquirer.Calls(), "the session is reused")
}

func TestEndToEndRejectedSession(t *testing.T) {
	service, acquirer, fake := newEndToEnd(t, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")

	_, err := service.Search(context.Background(), testIdentifier, "A")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.EqualValues(t, 1, fake.requests.Load(), "rejections are not retried")

	fake.accepted.Store(testToken)
	_, err = service.Search(context.Background(), testIdentifier, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 2, acquirer.Calls(), "the rejected session was invalidated")
}

func TestEndToEndInvalidIdentifierNeverReachesThePortal(t *testing.T) {
	service, acquirer, fake := newEndToEnd(t, testToken)

	_, err := service.Search(context.Background(), "not a number", "A")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Zero(t, acquirer.Calls())
	assert.Zero(t, fake.requests.Load())
}

func TestEndToEndEncodesCiphertext(t *testing.T) {
	var body url.Values
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_ = request.ParseForm()
		body = request.PostForm
		writer.Write([]byte(resultMarkup))
	}))
	defer server.Close()

	passphrase := codec.NewPassphrase("key")
	manager := session.NewManager(session.NewStaticToken(testToken), session.Options{})
	service := NewService(manager, passphrase, portal.New(portal.Options{BaseURL: server.URL}), parser.New(nil), Options{})

	_, err := service.Search(context.Background(), testIdentifier, "B")
	require.NoError(t, err)
	assert.Equal(t, "B", body.Get("search"))

	decrypted, err := passphrase.Decrypt(body.Get("aadhar"))
	require.NoError(t, err)
	assert.Equal(t, testIdentifier, decrypted)
}
