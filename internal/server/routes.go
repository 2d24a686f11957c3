package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nchat-dev/auditledger/internal/chain"
	"github.com/nchat-dev/auditledger/internal/export"
	"github.com/nchat-dev/auditledger/internal/ledger"
	"github.com/nchat-dev/auditledger/internal/search"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var in chain.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}

	entry, replayed, err := s.writer.Append(r.Context(), in)
	if err != nil {
		var verr *ledger.ValidationError
		var perr *ledger.PersistenceError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.As(err, &perr):
			writeError(w, http.StatusServiceUnavailable, perr.Error())
		default:
			s.log.Error("append failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// A replayed idempotency key returns the original entry, not a
	// new commit.
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, entry)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.index.Search(r.Context(), filter)
	if err != nil {
		var qerr *ledger.QueryError
		if errors.As(err, &qerr) {
			writeError(w, http.StatusBadRequest, qerr.Error())
			return
		}
		s.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	block, err := strconv.ParseInt(chi.URLParam(r, "block"), 10, 64)
	if err != nil || block < 0 {
		writeError(w, http.StatusBadRequest, "block must be a non-negative integer")
		return
	}

	entries, err := s.store.ReadRange(r.Context(), block, block)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("block %d not found", block))
		return
	}
	writeJSON(w, http.StatusOK, entries[0])
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	upto := int64(-1)
	if v := r.URL.Query().Get("upto"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "upto must be an integer")
			return
		}
		upto = n
	}

	rep, err := s.verifier.Verify(r.Context(), upto)
	if err != nil {
		s.log.Error("verification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Exports stream every match.
	filter.Limit = 0
	filter.Offset = 0

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	formatter, err := export.NewFormatter(format, s.cfg.Export)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", formatter.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "audit-export."+fileExtension(format)))
	// The warning count is only known after streaming, so it travels
	// as a trailer.
	w.Header().Set("Trailer", "X-Export-Warnings")
	w.WriteHeader(http.StatusOK)

	result, err := s.exporter.Export(r.Context(), filter, format, w)
	if err != nil {
		// Headers are gone; all we can do is cut the stream short.
		s.log.Error("export failed", zap.String("format", format), zap.Error(err))
		return
	}
	w.Header().Set("X-Export-Warnings", strconv.Itoa(len(result.Warnings)))
	s.log.Info("export served",
		zap.String("format", format),
		zap.Int("count", result.Count),
		zap.Int("warnings", len(result.Warnings)),
	)
}

func fileExtension(format string) string {
	switch format {
	case "csv":
		return "csv"
	case "syslog", "cef":
		return "log"
	default:
		return "json"
	}
}

// headResponse describes the chain tip. An empty ledger reports block
// -1 and the genesis hash.
type headResponse struct {
	BlockNumber int64      `json:"blockNumber"`
	EntryHash   string     `json:"entryHash"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	resp := headResponse{
		BlockNumber: s.writer.Head(),
		EntryHash:   s.writer.HeadHash(),
	}
	if resp.BlockNumber >= 0 {
		entries, err := s.store.ReadRange(r.Context(), resp.BlockNumber, resp.BlockNumber)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(entries) == 1 {
			ts := entries[0].Timestamp
			resp.Timestamp = &ts
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.index.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseFilter builds a search filter from query parameters. Malformed
// values error here; semantic problems surface as a QueryError from
// the index.
func parseFilter(q url.Values) (search.Filter, error) {
	filter := search.Filter{
		Categories: splitParams(q["category"]),
		Severities: splitParams(q["severity"]),
		ActorID:    q.Get("actor"),
		SearchText: q.Get("q"),
		ActionGlob: q.Get("action_glob"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("parsing success: %w", err)
		}
		filter.Success = &b
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("parsing from: %w", err)
		}
		filter.FromTime = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("parsing to: %w", err)
		}
		filter.ToTime = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("parsing limit: %w", err)
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("parsing offset: %w", err)
		}
		filter.Offset = n
	}

	return filter, nil
}

// splitParams accepts both repeated parameters and comma-joined lists.
func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
