package rootctrl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helix-sdn/helix/internal/topology"
)

type stubProvider struct {
	seg Segment
}

func (s *stubProvider) LocalSegment(host topology.HostID, boundary topology.DPID, boundaryPort topology.PortNum, forward bool) (Segment, error) {
	return s.seg, nil
}

func TestHTTPRequesterRoundTrip(t *testing.T) {
	provider := &stubProvider{seg: Segment{Hops: 2, MaxUsage: 0.3}}
	handler := NewSegmentHandler(provider)
	mux := http.NewServeMux()
	handler.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req := NewHTTPRequester(map[AreaID]string{1: srv.URL})
	host := topology.HostID{MAC: "aa:bb", IP: "10.0.0.1"}
	seg, err := req.LocalSegment(context.Background(), 1, host, 10, 2, true)
	if err != nil {
		t.Fatalf("LocalSegment: %v", err)
	}
	if seg.Hops != 2 || seg.MaxUsage != 0.3 {
		t.Fatalf("expected {2 0.3}, got %+v", seg)
	}
}

func TestHTTPRequesterUnknownArea(t *testing.T) {
	req := NewHTTPRequester(map[AreaID]string{})
	host := topology.HostID{MAC: "aa:bb", IP: "10.0.0.1"}
	if _, err := req.LocalSegment(context.Background(), 9, host, 10, 2, true); err == nil {
		t.Fatalf("expected error for unknown area")
	}
}
