package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"frost/pkg/requestcontext"
)

func TestWithClockPinsTruncatedUTC(t *testing.T) {
	local := time.FixedZone("CET", 3600)
	clock := time.Date(2026, 3, 1, 13, 0, 0, 123456789, local)

	var seen []time.Time
	h := WithClock(func() time.Time { return clock })(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, requestcontext.Now(r.Context()), requestcontext.Now(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	assert.Equal(t, []time.Time{want, want}, seen)
}
