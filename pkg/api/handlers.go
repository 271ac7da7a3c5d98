package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/freyja-vlog/pkg/catalog"
	"github.com/ssargent/freyja-vlog/pkg/scan"
	"github.com/ssargent/freyja-vlog/pkg/segment"
	"github.com/ssargent/freyja-vlog/pkg/store"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
	maxFlushBody       = 64 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, s.store.Stats())
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments := s.store.Segments()
	out := make([]SegmentResponse, len(segments))
	for i, d := range segments {
		out[i] = SegmentResponse{Descriptor: d}
	}
	sendSuccess(w, out)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	var req FlushRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFlushBody)).Decode(&req); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	entries := make([]store.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = store.Entry{Key: []byte(e.Key), Value: []byte(e.Value)}
	}

	desc, err := s.store.Flush(entries)
	switch {
	case errors.Is(err, store.ErrEmptyFlush), errors.Is(err, store.ErrInvalidKey), errors.Is(err, segment.ErrKeyTooLarge):
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("flush failed", "error", err)
		sendError(w, fmt.Sprintf("Failed to flush: %v", err), http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusCreated, SegmentResponse{Descriptor: *desc})
}

// segmentFromRequest resolves the {id} path parameter, writing the error
// response itself when it cannot.
func (s *Server) segmentFromRequest(w http.ResponseWriter, r *http.Request) (*catalog.Descriptor, *segment.Footer, bool) {
	id, err := segment.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	desc, footer, err := s.store.Segment(id)
	if errors.Is(err, catalog.ErrNotFound) {
		sendError(w, "Segment not found", http.StatusNotFound)
		return nil, nil, false
	}
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}
	return desc, footer, true
}

func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	desc, footer, ok := s.segmentFromRequest(w, r)
	if !ok {
		return
	}
	sendSuccess(w, SegmentResponse{Descriptor: *desc, Footer: footerResponse(footer)})
}

func (s *Server) handleRemoveSegment(w http.ResponseWriter, r *http.Request) {
	desc, _, ok := s.segmentFromRequest(w, r)
	if !ok {
		return
	}
	if err := s.store.Remove(desc.ID); err != nil {
		sendError(w, fmt.Sprintf("Failed to remove segment: %v", err), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, map[string]string{"message": "Segment removed"})
}

// handleRecords pages through a segment. offset must be a block boundary,
// normally a previous page's next_offset.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	desc, _, ok := s.segmentFromRequest(w, r)
	if !ok {
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		sendError(w, "Invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", defaultRecordLimit)
	if err != nil || limit <= 0 {
		sendError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	if limit > maxRecordLimit {
		limit = maxRecordLimit
	}

	reader, err := segment.NewReader(segment.ReaderConfig{
		FilePath:    desc.Path,
		SegmentID:   desc.ID,
		StartOffset: offset,
		BufferSize:  s.config.ReaderBufferSize,
	})
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to open segment: %v", err), http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	page := RecordsPage{Records: []RecordResponse{}}
	for int64(len(page.Records)) < limit {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, segment.ErrInvalidHeader) {
			sendError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err != nil {
			sendError(w, fmt.Sprintf("Failed to read segment: %v", err), http.StatusInternalServerError)
			return
		}
		page.Records = append(page.Records, RecordResponse{
			Offset:   rec.Offset,
			Key:      string(rec.Key),
			Value:    rec.Value,
			Checksum: rec.Checksum,
			Valid:    rec.Verify() == nil,
		})
	}
	page.NextOffset = reader.Offset()
	page.End = reader.EndReason().String()

	sendSuccess(w, page)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	desc, _, ok := s.segmentFromRequest(w, r)
	if !ok {
		return
	}

	result, err := scan.Scan(r.Context(), desc.Path, desc.ID, scan.Options{
		VerifyChecksums: true,
		Mmap:            s.config.Mmap,
		BufferSize:      s.config.ReaderBufferSize,
		Logger:          s.logger,
		Metrics:         s.metrics,
	})
	if result == nil {
		sendError(w, fmt.Sprintf("Failed to scan segment: %v", err), http.StatusInternalServerError)
		return
	}

	resp := VerifyResponse{
		Segment:          result.Segment,
		Records:          result.Records,
		EndOffset:        result.EndOffset,
		End:              result.End.String(),
		Corrupt:          result.Corrupt,
		ChecksumFailures: result.ChecksumFailures,
		Duration:         result.Duration.String(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	sendSuccess(w, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		sendError(w, "Invalid key", http.StatusBadRequest)
		return
	}

	value, err := s.store.Get([]byte(key))
	if errors.Is(err, store.ErrKeyNotFound) {
		sendError(w, "Key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("lookup failed", "key", key, "error", err)
		sendError(w, fmt.Sprintf("Failed to get value: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListKeys([]byte(r.URL.Query().Get("prefix")))
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to list keys: %v", err), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, keys)
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
