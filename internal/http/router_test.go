package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/circleshare/go-share-backend/internal/config"
	"github.com/circleshare/go-share-backend/internal/domain"
	"github.com/circleshare/go-share-backend/internal/events"
	"github.com/circleshare/go-share-backend/internal/http/middleware"
	"github.com/circleshare/go-share-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	RegisterRoutes(r, db, bus, cfg)
	return r, db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	r, _ := newRouter(t, cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	// Security headers middleware ran
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers to be applied")
	}
}

// End-to-end flow over the wired routes: circle → resource → claim → conflict.
func TestRoutes_ClaimFlow(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	do := func(method, path, user string, body any) *httptest.ResponseRecorder {
		t.Helper()
		var rd io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			rd = bytes.NewReader(b)
		}
		req := httptest.NewRequest(method, path, rd)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.HeaderUserID, user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	decode := func(t *testing.T, w *httptest.ResponseRecorder, out any) {
		t.Helper()
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}

	// owner creates a circle
	w := do(http.MethodPost, "/api/v1/circles", "owner", gin.H{"name": "Tool Shed"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create circle: %d %s", w.Code, w.Body.String())
	}
	var circle struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	decode(t, w, &circle)
	if circle.ID == "" || circle.Slug == "" {
		t.Fatalf("bad circle payload: %s", w.Body.String())
	}

	// neighbor resolves the invite slug, then joins by id
	w = do(http.MethodGet, "/api/v1/circles/slug/"+circle.Slug, "neighbor", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve slug: %d %s", w.Code, w.Body.String())
	}
	w = do(http.MethodPost, "/api/v1/circles/"+circle.ID+"/members", "neighbor", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("join circle: %d %s", w.Code, w.Body.String())
	}

	// owner registers a resource
	w = do(http.MethodPost, "/api/v1/circles/"+circle.ID+"/resources", "owner",
		gin.H{"name": "Pressure Washer", "category": "Tools"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create resource: %d %s", w.Code, w.Body.String())
	}
	var res struct {
		ID string `json:"id"`
	}
	decode(t, w, &res)

	start := time.Date(2026, 9, 5, 9, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	// neighbor books the morning window
	w = do(http.MethodPost, "/api/v1/resources/"+res.ID+"/claims", "neighbor",
		gin.H{"start_time": start, "end_time": end})
	if w.Code != http.StatusCreated {
		t.Fatalf("request claim: %d %s", w.Code, w.Body.String())
	}
	var claim struct {
		ID string `json:"id"`
	}
	decode(t, w, &claim)

	// overlapping request from the owner is rejected with the blocking id
	w = do(http.MethodPost, "/api/v1/resources/"+res.ID+"/claims", "owner",
		gin.H{"start_time": start.Add(time.Hour), "end_time": end.Add(time.Hour)})
	if w.Code != http.StatusConflict {
		t.Fatalf("overlap should 409, got %d %s", w.Code, w.Body.String())
	}
	var conflict struct {
		Code                string   `json:"code"`
		ConflictingClaimIDs []string `json:"conflicting_claim_ids"`
	}
	decode(t, w, &conflict)
	if conflict.Code != "claim_conflict" || len(conflict.ConflictingClaimIDs) != 1 || conflict.ConflictingClaimIDs[0] != claim.ID {
		t.Fatalf("unexpected conflict payload: %s", w.Body.String())
	}

	// the adjacent afternoon window is available
	q := fmt.Sprintf("/api/v1/resources/%s/availability?start=%s&end=%s",
		res.ID, end.Format(time.RFC3339), end.Add(2*time.Hour).Format(time.RFC3339))
	w = do(http.MethodGet, q, "owner", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("availability: %d %s", w.Code, w.Body.String())
	}
	var avail struct {
		Available bool `json:"available"`
	}
	decode(t, w, &avail)
	if !avail.Available {
		t.Fatalf("adjacent window should be free: %s", w.Body.String())
	}

	// a stranger cannot even read the resource
	w = do(http.MethodGet, "/api/v1/resources/"+res.ID, "stranger", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger read should 403, got %d", w.Code)
	}

	// neighbor cancels; the owner can now book the same window
	w = do(http.MethodPost, "/api/v1/claims/"+claim.ID+"/cancel", "neighbor", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	w = do(http.MethodPost, "/api/v1/resources/"+res.ID+"/claims", "owner",
		gin.H{"start_time": start, "end_time": end})
	if w.Code != http.StatusCreated {
		t.Fatalf("rebook after cancel: %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_IdempotencyCallback_MissAndHit(t *testing.T) {
	cfg := baseConfig()
	cfg.APIBasePath = "/api/vX"
	r, db := newRouter(t, cfg)

	const userID = "u1"
	const key = "key-hit"
	const resourceID = "" // we’ll hit /health, so no path param

	// --- MISS: record does not exist (executes 'rec == nil' branch) ---
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set(middleware.HeaderUserID, userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// NoMethod is expected for POST /health, but middleware ran.

	// --- seed an idempotency record so the callback returns non-nil ---
	seed := &domain.Idempotency{
		ID:         "idem-seed-1",
		UserID:     userID,
		ResourceID: resourceID,
		Key:        key,
		ClaimID:    "cl-1",
		Status:     1,
		// ensure it's considered valid "now"
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	// --- HIT: record exists (executes 'return true, nil' branch) ---
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set(middleware.HeaderUserID, userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// again, 405 is fine; goal is to drive the middleware branch.
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	r, db := newRouter(t, baseConfig())

	// Force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Now any repo.GetIdempotency call should error → drives (err != nil) branch.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set(middleware.HeaderUserID, "u1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	r.ServeHTTP(w, req)

	// 405 is expected for POST /health; goal is to exercise the middleware branch.
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
