package ingestion

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/fsandov/ingestion-sdk/pkg/client"
)

// fakeDoer answers every request with 200 and counts calls.
type fakeDoer struct {
	calls atomic.Int32
}

func (f *fakeDoer) Do(_ context.Context, req *http.Request) (*http.Response, *client.Error) {
	f.calls.Add(1)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}
