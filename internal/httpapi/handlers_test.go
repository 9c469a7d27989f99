package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/dispositions"
	"dialer-platform/internal/lists"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/records"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/sessions"
	"dialer-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

func newTestHandlers(t *testing.T) Handlers {
	t.Helper()
	repo := lists.NewMemoryRepo()
	store := records.NewMemoryStore()
	sessRepo := sessions.NewMemoryRepo()
	catalog := dispositions.DefaultCatalog()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store.Put(records.Record{ID: "r1", WorkspaceID: "w1", Type: records.RecordTypeLead, Phone: "+15551230001"})
	store.Put(records.Record{ID: "r2", WorkspaceID: "w1", Type: records.RecordTypeLead, Phone: "+15551230002"})

	// Sessions bind to an existing active list.
	err := repo.Create(context.Background(), lists.CallList{
		ID: "l1", WorkspaceID: "w1", Name: "l1",
		ListType: lists.ListTypeStatic, TargetObject: records.RecordTypeLead,
		CadenceType: lists.CadencePreview, CadenceHours: 24,
		MaxAttempts: 3, CooldownDays: 30, Priority: 50, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed list: %v", err)
	}

	return Handlers{
		Lists:        lists.NewService(repo, repo, store, lists.NewMemoryLocker()),
		Queue:        queue.NewService(repo, repo),
		Sessions:     sessions.NewService(sessRepo, repo),
		Dispositions: dispositions.NewProcessor(repo, repo, catalog, store, audit.NewService(audit.NewMemoryRepo()), log),
		Catalog:      catalog,
		Reporting:    reporting.NewService(repo, repo, sessRepo),
		Provider:     telephony.NewLogProvider(log),
	}
}

// asUser injects an authenticated identity the way the JWT middleware does.
func asUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, "w1", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newRouter(h Handlers, identity gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if identity != nil {
		r.Use(identity)
	}
	r.POST("/lists", h.CreateList)
	r.GET("/lists/:list_id/items", h.GetItems)
	r.POST("/lists/:list_id/items", h.AddItem)
	r.GET("/queue/next", h.NextItem)
	r.POST("/queue/items/:item_id/release", h.ReleaseItem)
	r.POST("/queue/dial", h.Dial)
	r.POST("/sessions", h.StartSession)
	r.GET("/sessions/current", h.CurrentSession)
	r.GET("/dispositions", h.GetDispositions)
	r.POST("/dispositions/apply", h.ApplyDisposition)
	r.GET("/dashboard/stats", h.GetDashboardStats)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestQueueLifecycle(t *testing.T) {
	h := newTestHandlers(t)
	mgr := newRouter(h, asUser("m1", rbac.RoleManager))
	agent := newRouter(h, asUser("a1", rbac.RoleAgent))

	w := do(t, mgr, http.MethodPost, "/lists", map[string]any{
		"name": "TX Leads", "list_type": "static", "target_object": "lead",
		"cadence_type": "preview", "cadence_hours": 24, "max_attempts": 3,
		"cooldown_days": 30, "priority": 50,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create list: %d %s", w.Code, w.Body.String())
	}
	var created lists.ListSummary
	decode(t, w, &created)
	listID := created.ID

	w = do(t, mgr, http.MethodPost, "/lists/"+listID+"/items", map[string]any{"target_id": "r1", "assigned_to": "a1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add item: %d %s", w.Code, w.Body.String())
	}

	// Agent pulls the next item and gets the claim.
	w = do(t, agent, http.MethodGet, "/queue/next?list_id="+listID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("next: %d %s", w.Code, w.Body.String())
	}
	var next struct {
		Empty bool       `json:"empty"`
		Item  lists.Item `json:"item"`
	}
	decode(t, w, &next)
	if next.Empty || next.Item.Status != lists.ItemStatusInProgress {
		t.Fatalf("expected claimed item, got %s", w.Body.String())
	}

	// Disposition the call; the item goes back on cadence, so the queue
	// immediately reads empty.
	w = do(t, agent, http.MethodPost, "/dispositions/apply", map[string]any{
		"list_id": listID, "item_id": next.Item.ID, "code": "NO_ANSWER",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("apply: %d %s", w.Code, w.Body.String())
	}
	var res dispositions.Result
	decode(t, w, &res)
	if res.Degraded || res.Item.AttemptCount != 1 {
		t.Fatalf("unexpected apply result: %s", w.Body.String())
	}

	w = do(t, agent, http.MethodGet, "/queue/next?list_id="+listID, nil)
	decode(t, w, &next)
	if w.Code != http.StatusOK || !next.Empty {
		t.Fatalf("queue should be drained: %d %s", w.Code, w.Body.String())
	}
}

func TestReleaseUnclaimedConflicts(t *testing.T) {
	h := newTestHandlers(t)
	mgr := newRouter(h, asUser("m1", rbac.RoleManager))

	w := do(t, mgr, http.MethodPost, "/lists", map[string]any{
		"name": "L", "list_type": "static", "target_object": "lead",
		"cadence_type": "preview", "cadence_hours": 24, "max_attempts": 3,
		"cooldown_days": 30, "priority": 50,
	})
	var created lists.ListSummary
	decode(t, w, &created)

	w = do(t, mgr, http.MethodPost, "/lists/"+created.ID+"/items", map[string]any{"target_id": "r1"})
	var it lists.Item
	decode(t, w, &it)

	w = do(t, mgr, http.MethodPost, "/queue/items/"+it.ID+"/release", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("releasing a pending item should conflict: %d %s", w.Code, w.Body.String())
	}
}

func TestSessionEndpoints(t *testing.T) {
	h := newTestHandlers(t)
	agent := newRouter(h, asUser("a1", rbac.RoleAgent))

	w := do(t, agent, http.MethodGet, "/sessions/current", nil)
	var cur struct {
		Open bool `json:"open"`
	}
	decode(t, w, &cur)
	if w.Code != http.StatusOK || cur.Open {
		t.Fatalf("expected no open session: %d %s", w.Code, w.Body.String())
	}

	w = do(t, agent, http.MethodPost, "/sessions", map[string]any{"list_id": "l1", "dialer_mode": "preview"})
	if w.Code != http.StatusCreated {
		t.Fatalf("start session: %d %s", w.Code, w.Body.String())
	}

	w = do(t, agent, http.MethodGet, "/sessions/current", nil)
	decode(t, w, &cur)
	if !cur.Open {
		t.Fatalf("expected open session: %s", w.Body.String())
	}

	// Second start for the same agent conflicts.
	w = do(t, agent, http.MethodPost, "/sessions", map[string]any{"list_id": "l1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate session should conflict: %d %s", w.Code, w.Body.String())
	}
}

func TestDialRejectsMissingNumber(t *testing.T) {
	h := newTestHandlers(t)
	agent := newRouter(h, asUser("a1", rbac.RoleAgent))

	w := do(t, agent, http.MethodPost, "/queue/dial", map[string]any{"item_id": "i1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}

	w = do(t, agent, http.MethodPost, "/queue/dial", map[string]any{"to": "+15551230001"})
	if w.Code != http.StatusOK {
		t.Fatalf("dial: %d %s", w.Code, w.Body.String())
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	h := newTestHandlers(t)
	r := newRouter(h, nil)

	for _, path := range []string{"/queue/next", "/sessions/current", "/dashboard/stats"} {
		w := do(t, r, http.MethodGet, path, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without identity: %d, want 401", path, w.Code)
		}
	}
}

func TestRespondErrMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{lists.ErrValidation, http.StatusBadRequest},
		{records.ErrFilter, http.StatusBadRequest},
		{queue.ErrInvalidRequest, http.StatusBadRequest},
		{telephony.ErrInvalidRequest, http.StatusBadRequest},
		{lists.ErrNotFound, http.StatusNotFound},
		{dispositions.ErrNotFound, http.StatusNotFound},
		{sessions.ErrNotOwner, http.StatusForbidden},
		{lists.ErrConflict, http.StatusConflict},
		{sessions.ErrSessionEnded, http.StatusConflict},
		{dispositions.ErrInvalidState, http.StatusConflict},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondErr(c, tc.err)
		if w.Code != tc.want {
			t.Fatalf("respondErr(%v) = %d, want %d", tc.err, w.Code, tc.want)
		}
		if tc.want == http.StatusInternalServerError && bytes.Contains(w.Body.Bytes(), []byte("database")) {
			t.Fatalf("internal error detail leaked: %s", w.Body.String())
		}
	}
}
