//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient/internal/domain"
)

func submit(svc *service, body string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, svc.server.URL+"/api/v1/jobs", strings.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// TestJobs_ConcurrentRequestsStayIsolated submits jobs from many clients at
// once. Each job must reach the downstream with the trace and tenant of the
// request that created it.
func TestJobs_ConcurrentRequestsStayIsolated(t *testing.T) {
	svc, err := startService()
	require.NoError(t, err)
	defer svc.close()

	const n = 24

	ids := make([]string, n)
	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			status, body, err := submit(svc,
				fmt.Sprintf(`{"name":"job-%d","target":"/items/%d"}`, i, i),
				map[string]string{
					"X-Trace-ID":  fmt.Sprintf("trace-%d", i),
					"X-Tenant-ID": fmt.Sprintf("tenant-%d", i%3),
				},
			)
			if !assert.NoError(t, err) || !assert.Equal(t, http.StatusAccepted, status, string(body)) {
				return
			}

			var job dto.JobResponse
			if assert.NoError(t, json.Unmarshal(body, &job)) {
				ids[i] = job.ID
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i, id := range ids {
		require.NotEmpty(t, id, "job %d was not accepted", i)

		job, err := svc.jobs.Wait(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobSucceeded, job.Status, job.Error)
		assert.Equal(t, domain.TraceID(fmt.Sprintf("trace-%d", i)), job.ObservedTraceID)

		sent := svc.downstream.headers(fmt.Sprintf("/items/%d", i))
		require.NotNil(t, sent)
		assert.Equal(t, fmt.Sprintf("trace-%d", i), sent.Get("X-Trace-ID"))
		assert.Equal(t, fmt.Sprintf("tenant-%d", i%3), sent.Get("X-Tenant-ID"))
	}

	assert.Zero(t, svc.driver.Active())
}

// TestJobs_FailingDownstream verifies a downstream error fails the job and
// the failure is reported under the job's own trace.
func TestJobs_FailingDownstream(t *testing.T) {
	svc, err := startService()
	require.NoError(t, err)
	defer svc.close()

	status, body, err := submit(svc, `{"name":"broken","target":"/fail"}`, map[string]string{"X-Trace-ID": "trace-fail"})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, status, string(body))

	var accepted dto.JobResponse
	require.NoError(t, json.Unmarshal(body, &accepted))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job, err := svc.jobs.Wait(ctx, accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.NotEmpty(t, job.Error)
	assert.Equal(t, domain.TraceID("trace-fail"), job.TraceID)

	sent := svc.downstream.headers("/fail")
	require.NotNil(t, sent)
	assert.Equal(t, "trace-fail", sent.Get("X-Trace-ID"))
}
