package rootctrl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/helix-sdn/helix/internal/topology"
)

// SegmentProvider is implemented by an area's local controller: it
// answers the LocalSegment sub-query the root asks of each side of a
// candidate inter-area link.
type SegmentProvider interface {
	LocalSegment(host topology.HostID, boundary topology.DPID, boundaryPort topology.PortNum, forward bool) (Segment, error)
}

// SegmentHandler exposes a SegmentProvider over HTTP so the root
// controller can reach it without sharing a process.
type SegmentHandler struct {
	provider SegmentProvider
}

// NewSegmentHandler builds a handler serving provider.
func NewSegmentHandler(provider SegmentProvider) *SegmentHandler {
	return &SegmentHandler{provider: provider}
}

// Routes registers the handler's single endpoint on mux.
func (h *SegmentHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/inter-area/segment", h.handle)
}

func (h *SegmentHandler) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	host := topology.HostID{MAC: q.Get("mac"), IP: q.Get("ip")}
	boundary, err := strconv.ParseUint(q.Get("boundary"), 10, 64)
	if err != nil {
		http.Error(w, "bad boundary", http.StatusBadRequest)
		return
	}
	boundaryPort, err := strconv.ParseUint(q.Get("boundary_port"), 10, 32)
	if err != nil {
		http.Error(w, "bad boundary_port", http.StatusBadRequest)
		return
	}
	forward := q.Get("forward") == "true"

	seg, err := h.provider.LocalSegment(host, topology.DPID(boundary), topology.PortNum(boundaryPort), forward)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(seg)
}

// HTTPRequester implements SegmentRequester over HTTP, one base URL per
// area, talking to each area's SegmentHandler.
type HTTPRequester struct {
	areaAddr map[AreaID]string
	hc       *http.Client
}

// NewHTTPRequester builds a requester keyed by area's bus base URL
// (e.g. {1: "http://10.0.0.1:7070"}).
func NewHTTPRequester(areaAddr map[AreaID]string) *HTTPRequester {
	return &HTTPRequester{areaAddr: areaAddr, hc: &http.Client{Timeout: 5 * time.Second}}
}

func (r *HTTPRequester) LocalSegment(ctx context.Context, area AreaID, host topology.HostID, boundary topology.DPID, boundaryPort topology.PortNum, forward bool) (Segment, error) {
	base, ok := r.areaAddr[area]
	if !ok {
		return Segment{}, fmt.Errorf("rootctrl: no bus address known for area %d", area)
	}

	q := url.Values{}
	q.Set("mac", host.MAC)
	q.Set("ip", host.IP)
	q.Set("boundary", fmt.Sprintf("%d", boundary))
	q.Set("boundary_port", fmt.Sprintf("%d", boundaryPort))
	if forward {
		q.Set("forward", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/inter-area/segment?"+q.Encode(), nil)
	if err != nil {
		return Segment{}, err
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return Segment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Segment{}, fmt.Errorf("rootctrl: segment query to area %d: status %d", area, resp.StatusCode)
	}
	var seg Segment
	if err := json.NewDecoder(resp.Body).Decode(&seg); err != nil {
		return Segment{}, err
	}
	return seg, nil
}

var _ SegmentRequester = (*HTTPRequester)(nil)
