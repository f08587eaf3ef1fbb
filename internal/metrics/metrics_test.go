package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.ObserveRequest("http://localhost:8000", OutcomeTransport)
	r.ObserveRequest("https://prod.example.com", OutcomeResponse)
	r.ObserveRequest("https://prod.example.com", OutcomeResponse)
	r.ObserveFailover()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("http://localhost:8000", OutcomeTransport)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("https://prod.example.com", OutcomeResponse)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failovers))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRequest("h", OutcomeResponse)
		r.ObserveFailover()
	})
}
