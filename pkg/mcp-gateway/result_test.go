package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/metrics"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
	"github.com/vikashloomba/mcp-gateway-go/pkg/router"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		code   Code
		status int
	}{
		{nil, CodeOK, http.StatusOK},
		{fmt.Errorf("wrap: %w", registry.ErrDuplicateInstance), CodeDuplicateInstance, http.StatusConflict},
		{registry.ErrNotFound, CodeNotFound, http.StatusNotFound},
		{metrics.ErrNotFound, CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: weather", router.ErrServiceNotFound), CodeServiceNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: STDIO", mcpmgr.ErrUnsupportedTransport), CodeUnsupportedTransport, http.StatusBadRequest},
		{fmt.Errorf("%w: x", mcpmgr.ErrConnection), CodeConnectionError, http.StatusBadGateway},
		// A pending connect that failed surfaces as not connected.
		{fmt.Errorf("%w: id: %w", mcpmgr.ErrNotConnected, fmt.Errorf("%w: x", mcpmgr.ErrConnection)), CodeNotConnected, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: name is required", registry.ErrInvalidRecord), CodeInvalidArgument, http.StatusBadRequest},
		{ErrInvalidArgument, CodeInvalidArgument, http.StatusBadRequest},
		{fmt.Errorf("calling tools/call: %w", context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout},
		{errors.New("jsonrpc2: tool exploded"), CodeBackendError, http.StatusBadGateway},
	}
	for _, tc := range cases {
		code, status := classify(tc.err)
		if code != tc.code || status != tc.status {
			t.Fatalf("classify(%v) = %s %d, want %s %d", tc.err, code, status, tc.code, tc.status)
		}
	}
}
