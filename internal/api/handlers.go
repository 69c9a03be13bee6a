package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
	"github.com/DominicTanzillo/Panacea/internal/metrics"
	"github.com/DominicTanzillo/Panacea/internal/neighbors"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

const (
	maxBodyBytes = 16 << 20
	maxBatch     = 256
)

// screenRequest is the body of POST /api/v1/screen. The target is either
// given inline as a GP record or by catalog ID. Omitting neighbors selects
// them from the loaded catalog; an explicit empty list screens nothing.
type screenRequest struct {
	TargetID  int           `json:"target_id,omitempty"`
	Target    *tle.Record   `json:"target,omitempty"`
	Neighbors *[]tle.Record `json:"neighbors,omitempty"`
	Start     *time.Time    `json:"start,omitempty"`
}

type batchRequest struct {
	Requests []screenRequest `json:"requests"`
}

// requestError is a client error with its HTTP status and response body.
type requestError struct {
	status int
	body   map[string]any
}

func (e *requestError) Error() string { return fmt.Sprint(e.body["error"]) }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, body: map[string]any{"error": fmt.Sprintf(format, args...)}}
}

func errNoCatalog() *requestError {
	return &requestError{status: http.StatusServiceUnavailable, body: map[string]any{"error": "catalog not loaded"}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		writeJSON(w, re.status, re.body)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// resolve turns a request body into a screening request, selecting
// neighbours and enforcing the pair limit.
func (s *Server) resolve(req screenRequest) (conjunction.Request, error) {
	catalog := s.deps.Store.Get()

	var target tle.Record
	switch {
	case req.Target != nil:
		target = *req.Target
	case req.TargetID > 0:
		if catalog == nil {
			return conjunction.Request{}, errNoCatalog()
		}
		rec, ok := catalog.Find(req.TargetID)
		if !ok {
			return conjunction.Request{}, &requestError{
				status: http.StatusNotFound,
				body:   map[string]any{"error": fmt.Sprintf("object %d not in catalog", req.TargetID)},
			}
		}
		target = rec
	default:
		return conjunction.Request{}, badRequest("target or target_id is required")
	}

	var candidates []tle.Record
	if req.Neighbors != nil {
		candidates = *req.Neighbors
	} else {
		if catalog == nil {
			return conjunction.Request{}, errNoCatalog()
		}
		candidates = neighbors.Select(target, catalog.Records, s.deps.Screener.Config().Bands)
	}
	if candidates == nil {
		candidates = []tle.Record{}
	}

	var start time.Time
	if req.Start != nil {
		start = req.Start.UTC().Truncate(time.Second)
	}
	w := s.deps.Screener.Window(start)
	pairs := len(candidates) * w.Count()
	if pairs > s.config.MaxPairs {
		return conjunction.Request{}, &requestError{
			status: http.StatusBadRequest,
			body: map[string]any{
				"error":           "screening exceeds pair limit",
				"requested_pairs": pairs,
				"max_pairs":       s.config.MaxPairs,
			},
		}
	}

	return conjunction.Request{Target: target, Neighbors: candidates, Start: w.Start}, nil
}

func (s *Server) acquire(w http.ResponseWriter, r *http.Request) (string, bool) {
	ip := clientIP(r, s.config.TrustProxy)
	if !s.limiter.acquire(ip) {
		s.logger.Warn("screening rejected by limiter", "remote_ip", ip, "in_flight", s.limiter.count(ip))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many concurrent screenings"})
		return ip, false
	}
	return ip, true
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var body screenRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := s.resolve(body)
	if err != nil {
		writeError(w, err)
		return
	}

	ip, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer s.limiter.release(ip)

	writeJSON(w, http.StatusOK, s.deps.Screener.Screen(r.Context(), req))
}

type indexedResult struct {
	Index  int                `json:"index"`
	Result conjunction.Result `json:"result"`
}

// handleScreenBatch screens up to maxBatch requests. Clients accepting
// text/event-stream receive each result as it completes; others get every
// result at once in request order.
func (s *Server) handleScreenBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Requests) == 0 {
		writeError(w, badRequest("requests is empty"))
		return
	}
	if len(body.Requests) > maxBatch {
		writeError(w, badRequest("batch of %d exceeds limit %d", len(body.Requests), maxBatch))
		return
	}

	reqs := make([]conjunction.Request, len(body.Requests))
	for i, b := range body.Requests {
		req, err := s.resolve(b)
		if err != nil {
			var re *requestError
			if errors.As(err, &re) {
				re.body["index"] = i
			}
			writeError(w, err)
			return
		}
		reqs[i] = req
	}

	ip, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer s.limiter.release(ip)

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		writeJSON(w, http.StatusOK, map[string]any{"results": s.deps.Screener.ScreenBatch(r.Context(), reqs)})
		return
	}

	ew, ok := newEventWriter(w, s.logger)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	s.streamBatch(r.Context(), ew, reqs)
}

func (s *Server) streamBatch(ctx context.Context, ew *eventWriter, reqs []conjunction.Request) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := max(s.deps.Screener.Config().Concurrency, 1)
	sem := make(chan struct{}, limit)
	out := make(chan indexedResult)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			res := s.deps.Screener.Screen(ctx, req)
			<-sem
			out <- indexedResult{Index: i, Result: res}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	failed := false
	for item := range out {
		if failed {
			continue
		}
		if err := ew.send("result", item); err != nil {
			s.logger.Debug("batch stream closed by client", "sent", ew.sent, "error", err)
			failed = true
			cancel()
		}
	}
	if !failed {
		ew.send("done", map[string]int{"count": ew.sent})
	}
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("norad_id"))
	if err != nil || id <= 0 {
		writeError(w, badRequest("norad_id must be a positive integer"))
		return
	}
	catalog := s.deps.Store.Get()
	if catalog == nil {
		writeError(w, errNoCatalog())
		return
	}
	target, ok := catalog.Find(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("object %d not in catalog", id)})
		return
	}

	bands := s.deps.Screener.Config().Bands
	selected := neighbors.Select(target, catalog.Records, bands)
	ids := make([]int, len(selected))
	for i, rec := range selected {
		ids[i] = rec.CatalogID
	}

	resp := map[string]any{
		"norad_id":     id,
		"bands":        map[string]float64{"altitude_km": bands.AltitudeKm, "raan_deg": bands.RAANDeg},
		"count":        len(ids),
		"neighbor_ids": ids,
	}
	if fp, ok := neighbors.FingerprintOf(target); ok {
		resp["shell"] = map[string]float64{"altitude_km": fp.AltitudeKm, "raan_deg": fp.RAANDeg}
	}
	writeJSON(w, http.StatusOK, resp)
}

type catalogMetadata struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	AgeSeconds float64   `json:"age_seconds"`
	Count      int       `json:"count"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
}

func metadataOf(c *tle.Catalog) catalogMetadata {
	return catalogMetadata{
		Source:     c.Source,
		FetchedAt:  c.FetchedAt.UTC(),
		AgeSeconds: time.Since(c.FetchedAt).Seconds(),
		Count:      len(c.Records),
		EpochMin:   c.EpochRange.Min,
		EpochMax:   c.EpochRange.Max,
	}
}

func (s *Server) handleCatalogMetadata(w http.ResponseWriter, r *http.Request) {
	catalog := s.deps.Store.Get()
	if catalog == nil {
		writeError(w, errNoCatalog())
		return
	}
	writeJSON(w, http.StatusOK, metadataOf(catalog))
}

func (s *Server) handleCatalogFetch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Fetcher == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "catalog fetch not configured"})
		return
	}
	catalog, err := s.deps.Store.Refresh(r.Context(), s.deps.Fetcher)
	if err != nil {
		s.logger.Error("catalog refresh failed", "source", s.deps.Fetcher.SourceURL(), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	metrics.SetCatalogRecords(len(catalog.Records))
	s.logger.Info("catalog refreshed", "source", catalog.Source, "count", len(catalog.Records))
	writeJSON(w, http.StatusOK, metadataOf(catalog))
}

func (s *Server) handleCrossref(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		writeError(w, badRequest("norad_id must be a positive integer"))
		return
	}

	resp := map[string]any{"norad_id": id, "enabled": false, "cdms": []crossref.CDM{}}
	if s.deps.Crossref == nil || !s.deps.Crossref.Enabled() {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp["enabled"] = true

	found, err := s.deps.Crossref.Lookup(r.Context(), []int{id})
	cdms, ok := found[id]
	if err != nil && !ok {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if cdms != nil {
		resp["cdms"] = cdms
	}
	writeJSON(w, http.StatusOK, resp)
}
