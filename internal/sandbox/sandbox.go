// Package sandbox runs an in-process stand-in for the CardPointe Gateway
// REST API. It understands auth, capture, void and inquire well enough to
// drive the client end to end without network access.
//
// Amounts ending in ".01" are declined and amounts ending in ".02" get a
// retry status, so every respstat can be produced on demand.
package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is one call as the sandbox received it.
type Request struct {
	Method        string
	Path          string // escaped, exactly as sent
	Authorization string
	ContentType   string
	Body          string
}

type txn struct {
	amount      string
	account     string
	authcode    string
	captured    bool
	voided      bool
	captureDate string
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	merchantID string
	authHeader string

	mu       sync.Mutex
	nextRef  int64
	txns     map[string]*txn
	requests []Request
	failures []failure
}

// New starts a sandbox that accepts merchantID and the given Authorization
// header value. Callers must Close it.
func New(merchantID, authHeader string) *Server {
	s := &Server{
		merchantID: merchantID,
		authHeader: authHeader,
		nextRef:    100000000000,
		txns:       make(map[string]*txn),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logRequests, s.record, s.injectFailure, s.authenticate)

	r.Put("/auth", s.handleAuth)
	r.Put("/capture", s.handleCapture)
	r.Put("/void", s.handleVoid)
	r.Get("/inquire/{retref}/{merchid}", s.handleInquire)

	return r
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, if any.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// FailNext makes the next request answer with status and a raw body,
// bypassing normal handling. Calls queue up.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

// ----------------- Middleware -----------------

// responseRecorder lets us capture HTTP status codes
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests writes one debug line per request to zap's global logger.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		zap.L().Debug("Sandbox request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.EscapedPath()),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
		)
	})
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.EscapedPath(),
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var f *failure
		if len(s.failures) > 0 {
			f = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if f != nil {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != s.authHeader {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ----------------- Handlers -----------------

type authBody struct {
	MerchID  string `json:"merchid"`
	Amount   string `json:"amount"`
	Account  string `json:"account"`
	Capture  string `json:"capture"`
	PONumber string `json:"ponumber"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var in authBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if in.MerchID != s.merchantID {
		writeJSON(w, declined("", in.MerchID, "Invalid merchant"))
		return
	}
	if in.Amount == "" {
		writeJSON(w, declined("", in.MerchID, "Invalid amount"))
		return
	}

	s.mu.Lock()
	s.nextRef++
	retref := fmt.Sprintf("%012d", s.nextRef)
	s.mu.Unlock()

	res := map[string]string{
		"respstat": "A",
		"respcode": "00",
		"resptext": "Approval",
		"respproc": "RPCT",
		"retref":   retref,
		"account":  maskAccount(in.Account),
		"token":    "9" + strings.ReplaceAll(uuid.NewString(), "-", "")[:15],
		"amount":   in.Amount,
		"merchid":  in.MerchID,
		"cvvresp":  "M",
		"avsresp":  "Y",
		"commcard": "N",
	}
	if in.PONumber != "" {
		res["commcard"] = "Y"
	}

	switch {
	case strings.HasSuffix(in.Amount, ".01"):
		res["respstat"], res["respcode"], res["resptext"] = "C", "05", "Do not honor"
	case strings.HasSuffix(in.Amount, ".02"):
		res["respstat"], res["respcode"], res["resptext"] = "B", "62", "Timed out"
	default:
		t := &txn{amount: in.Amount, account: res["account"], authcode: "PPS" + retref[len(retref)-3:]}
		if in.Capture == "Y" {
			t.captured = true
			t.captureDate = time.Now().Format("20060102150405")
		}
		res["authcode"] = t.authcode

		s.mu.Lock()
		s.txns[retref] = t
		s.mu.Unlock()
	}

	writeJSON(w, res)
}

type refBody struct {
	MerchID string  `json:"merchid"`
	RetRef  string  `json:"retref"`
	Amount  *string `json:"amount"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var in refBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, msg := s.lookup(in.MerchID, in.RetRef)
	if t == nil {
		writeJSON(w, declined(in.RetRef, in.MerchID, msg))
		return
	}
	if t.voided {
		writeJSON(w, declined(in.RetRef, in.MerchID, "Txn voided"))
		return
	}

	amount := t.amount
	if in.Amount != nil {
		amount = *in.Amount
	}
	t.captured = true
	t.captureDate = time.Now().Format("20060102150405")

	writeJSON(w, map[string]string{
		"respstat": "A",
		"respcode": "00",
		"resptext": "Approval",
		"retref":   in.RetRef,
		"amount":   amount,
		"merchid":  in.MerchID,
		"setlstat": "Queued for Capture",
	})
}

func (s *Server) handleVoid(w http.ResponseWriter, r *http.Request) {
	var in refBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, msg := s.lookup(in.MerchID, in.RetRef)
	if t == nil {
		writeJSON(w, declined(in.RetRef, in.MerchID, msg))
		return
	}
	if t.voided {
		writeJSON(w, declined(in.RetRef, in.MerchID, "Txn already voided"))
		return
	}
	t.voided = true

	writeJSON(w, map[string]string{
		"respstat": "A",
		"respcode": "00",
		"resptext": "Approval",
		"retref":   in.RetRef,
		"amount":   "0.00",
		"merchid":  in.MerchID,
		"authcode": "REVERS",
	})
}

func (s *Server) handleInquire(w http.ResponseWriter, r *http.Request) {
	retref, err := pathParam(r, "retref")
	if err != nil {
		http.Error(w, "Invalid retref", http.StatusBadRequest)
		return
	}
	merchid, err := pathParam(r, "merchid")
	if err != nil {
		http.Error(w, "Invalid merchid", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, msg := s.lookup(merchid, retref)
	if t == nil {
		writeJSON(w, declined(retref, merchid, msg))
		return
	}

	res := map[string]string{
		"respstat":   "A",
		"respcode":   "00",
		"resptext":   "Approval",
		"retref":     retref,
		"account":    t.account,
		"amount":     t.amount,
		"merchid":    merchid,
		"setlstat":   "Authorized",
		"voidable":   "Y",
		"refundable": "N",
	}
	switch {
	case t.voided:
		res["setlstat"], res["voidable"] = "Voided", "N"
	case t.captured:
		res["setlstat"], res["refundable"] = "Queued for Capture", "Y"
		res["capturedate"] = t.captureDate
	}

	writeJSON(w, res)
}

// pathParam returns a decoded route parameter. chi matches on RawPath when
// the request carried escapes the default encoding would not produce.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

// lookup must be called with s.mu held.
func (s *Server) lookup(merchid, retref string) (*txn, string) {
	if merchid != s.merchantID {
		return nil, "Invalid merchant"
	}
	t, ok := s.txns[retref]
	if !ok {
		return nil, "Txn not found"
	}
	return t, ""
}

func declined(retref, merchid, text string) map[string]string {
	return map[string]string{
		"respstat": "C",
		"respcode": "PPS",
		"resptext": text,
		"retref":   retref,
		"merchid":  merchid,
	}
}

func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("X", len(account)-4) + account[len(account)-4:]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
