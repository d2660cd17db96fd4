package observability

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionCollector_Summary(t *testing.T) {
	c := NewSessionCollector()
	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/posts", StatusCode: 200, Duration: 50 * time.Millisecond})
	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/posts/9", Duration: 10 * time.Millisecond, Error: errors.New("boom")})
	c.RecordOperation(OperationMetrics{Service: "Posts", Operation: "Page"})
	c.RecordOperation(OperationMetrics{Service: "Posts", Operation: "Get", Error: errors.New("boom")})
	c.RecordRetry(RetryMetrics{Attempt: 2})

	s := c.Summary()
	assert.Equal(t, 2, s.TotalRequests)
	assert.Equal(t, 1, s.FailedRequests)
	assert.Equal(t, 2, s.TotalOperations)
	assert.Equal(t, 1, s.FailedOps)
	assert.Equal(t, 1, s.TotalRetries)
	assert.Equal(t, 60*time.Millisecond, s.TotalLatency)
	assert.Equal(t, 30*time.Millisecond, s.AverageLatency())
	assert.False(t, s.EndTime.Before(s.StartTime))
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()
	c.RecordRequest(RequestMetrics{Duration: time.Second})
	c.Reset()
	s := c.Summary()
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.TotalLatency)
	assert.Zero(t, s.AverageLatency())
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordRequest(RequestMetrics{})
			c.RecordRetry(RetryMetrics{})
		}()
	}
	wg.Wait()
	s := c.Summary()
	assert.Equal(t, 50, s.TotalRequests)
	assert.Equal(t, 50, s.TotalRetries)
}
