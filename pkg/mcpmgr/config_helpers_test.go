package mcpmgr

import (
	"testing"
	"time"

	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
)

func TestSupported(t *testing.T) {
	t.Parallel()

	cases := map[registry.TransportKind]bool{
		registry.TransportStreamableHTTP: true,
		registry.TransportSSE:            false,
		registry.TransportStdio:          false,
		"":                               false,
	}
	for kind, want := range cases {
		if got := Supported(kind); got != want {
			t.Fatalf("Supported(%q) = %v, want %v", kind, got, want)
		}
	}
	got := SupportedTransports()
	if len(got) != 1 || got[0] != registry.TransportStreamableHTTP {
		t.Fatalf("SupportedTransports = %v", got)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	var nilOpts *Options
	opts := nilOpts.withDefaults()
	if opts.ClientName != "mcp-gateway" || opts.ClientVersion != "1.0.0" {
		t.Fatalf("client identity defaults = %q/%q", opts.ClientName, opts.ClientVersion)
	}
	if opts.ConnectTimeout != 30*time.Second || opts.CallTimeout != 30*time.Second {
		t.Fatalf("timeout defaults = %v/%v", opts.ConnectTimeout, opts.CallTimeout)
	}
	if opts.Logger == nil || opts.CloseConcurrency != 8 {
		t.Fatalf("logger/concurrency defaults not applied")
	}

	custom := (&Options{ClientName: "edge", CallTimeout: time.Second}).withDefaults()
	if custom.ClientName != "edge" || custom.CallTimeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", custom)
	}
}
