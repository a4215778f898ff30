package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/cakestore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cakestore-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 255

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// a crashed request holds its key no longer than this
	pendingIdempotencyTTL = time.Minute
)

// replayedHeaders are the response headers stored with a record and restored on replay.
var replayedHeaders = []string{"Content-Type", "Location"}

type idempotencyRule struct {
	method string
	match  func(pattern string) bool
	ttl    time.Duration
}

var idempotencyRules = []idempotencyRule{
	{http.MethodPost, func(p string) bool { return p == "/api/v1/orders" }, criticalIdempotencyTTL},
	{http.MethodPut, func(p string) bool { return strings.HasPrefix(p, "/api/admin/v1/capacity/") }, defaultIdempotencyTTL},
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.match(pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

// idempotencyRecord is the stored state of one key: a pending claim while the first request
// runs, then the response it produced.
type idempotencyRecord struct {
	Pending     bool              `json:"pending,omitempty"`
	RequestHash string            `json:"request_hash"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// Idempotency makes order placement and capacity updates safe to retry. The first request
// with a given Idempotency-Key claims it before the handler runs; a duplicate then gets the
// stored response, a 409 CONFLICT while the first is still running, or 409
// IDEMPOTENCY_KEY_REUSED when its body differs. 5xx responses and panics release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		g := &idempotencyGuard{store: store, logg: logg}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next, ttl)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case clientKey == "":
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	case len(clientKey) > maxIdempotencyKey:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := g.store.IdempotencyKey(r.Method+"|"+r.URL.Path, clientKey)
	hash := requestHash(r, body)

	claimed, err := g.claim(ctx, key, hash)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
		return
	}
	if !claimed {
		g.replay(ctx, w, key, hash)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	completed := false
	defer func() {
		if !completed {
			g.release(context.WithoutCancel(ctx), key)
		}
	}()
	next.ServeHTTP(capture, r)

	if defaultStatus(capture.status) >= http.StatusInternalServerError {
		return
	}
	completed = true
	g.complete(ctx, key, hash, capture, ttl)
}

func (g *idempotencyGuard) claim(ctx context.Context, key, hash string) (bool, error) {
	pending, err := json.Marshal(idempotencyRecord{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
}

func (g *idempotencyGuard) complete(ctx context.Context, key, hash string, capture *responseCapture, ttl time.Duration) {
	record := idempotencyRecord{
		RequestHash: hash,
		Status:      defaultStatus(capture.status),
		Body:        capture.body.Bytes(),
	}
	for _, name := range replayedHeaders {
		if v := capture.Header().Get(name); v != "" {
			if record.Headers == nil {
				record.Headers = map[string]string{}
			}
			record.Headers[name] = v
		}
	}
	payload, err := json.Marshal(record)
	if err == nil {
		err = g.store.Set(context.WithoutCancel(ctx), key, string(payload), ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "persist idempotency record", err)
	}
}

func (g *idempotencyGuard) release(ctx context.Context, key string) {
	if err := g.store.Del(ctx, key); err != nil && g.logg != nil {
		g.logg.Error(ctx, "release idempotency key", err)
	}
}

func (g *idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, hash string) {
	stored, err := g.store.Get(ctx, key)
	inFlight := pkgerrors.New(pkgerrors.CodeConflict, "idempotent request still in progress")
	switch {
	case errors.Is(err, redis.Nil):
		// released between our claim attempt and this read
		g.fail(ctx, w, inFlight)
		return
	case err != nil:
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	case record.Pending:
		g.fail(ctx, w, inFlight)
		return
	}

	for name, v := range record.Headers {
		w.Header().Set(name, v)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func (g *idempotencyGuard) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

// requestHash fingerprints what the key protects: method, path and body.
func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func defaultStatus(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

// routePattern is the matched chi pattern, falling back to the raw path outside a router.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// responseCapture tees the response body so it can be stored for replay.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
