package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/notify"
	"gnarhub-backend/internal/repository/memory"
	"gnarhub-backend/internal/services"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	emitter := notify.Nop{}
	convs := services.NewConversationService(store)
	return &testServer{
		t: t,
		handler: NewRouter(Services{
			Users:         services.NewUserService(store, "test-secret", []string{"admin@example.com"}),
			Sessions:      services.NewSessionService(store, emitter),
			Bookings:      services.NewBookingService(store, convs, emitter),
			Conversations: convs,
			Reviews:       services.NewReviewService(store),
			Hub:           services.NewWSHub(),
		}),
	}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(email string) *models.User {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/users", "", map[string]string{"email": email, "display_name": email})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body)
	}
	var user models.User
	decode(s.t, rec, &user)
	return &user
}

func (s *testServer) createSession(token string) *models.Session {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/sessions", token, map[string]any{
		"mountain_id":  "loon",
		"date":         time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"start_time":   "09:00",
		"end_time":     "12:00",
		"terrain_tags": []string{"park"},
		"rate":         80,
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("create session: status %d body %s", rec.Code, rec.Body)
	}
	var session models.Session
	decode(s.t, rec, &session)
	return &session
}

func (s *testServer) createRequest(token, sessionID string) CreateRequestResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/requests", token, map[string]any{
		"message": "want to film some park laps",
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("create request: status %d body %s", rec.Code, rec.Body)
	}
	var resp CreateRequestResponse
	decode(s.t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body)
	}
	var body ErrorResponse
	decode(t, rec, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
}

func TestBookingFlow(t *testing.T) {
	srv := newTestServer(t)
	filmer := srv.register("filmer@example.com")
	riderA := srv.register("a@example.com")
	riderB := srv.register("b@example.com")

	session := srv.createSession(filmer.Token)
	reqA := srv.createRequest(riderA.Token, session.ID)
	reqB := srv.createRequest(riderB.Token, session.ID)
	if reqA.ConversationID == "" {
		t.Error("expected a linked conversation")
	}

	rec := srv.do(http.MethodPost, "/api/v1/requests/"+reqA.Request.ID+"/accept", filmer.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rec.Code, rec.Body)
	}

	// the session is gone for the second rider
	rec = srv.do(http.MethodPost, "/api/v1/requests/"+reqB.Request.ID+"/accept", filmer.Token, nil)
	expectError(t, rec, http.StatusConflict, "conflict")

	rec = srv.do(http.MethodGet, "/api/v1/sessions/"+session.ID, riderA.Token, nil)
	var booked models.Session
	decode(t, rec, &booked)
	if booked.Status != models.SessionBooked || booked.RiderID == nil || *booked.RiderID != riderA.ID {
		t.Fatalf("session = %+v, want booked by rider A", booked)
	}

	rec = srv.do(http.MethodGet, "/api/v1/requests/"+reqB.Request.ID, riderB.Token, nil)
	var declined models.SessionRequest
	decode(t, rec, &declined)
	if declined.Status != models.RequestDeclined {
		t.Errorf("competing request status = %s, want declined", declined.Status)
	}

	rec = srv.do(http.MethodGet, "/api/v1/conversations/"+reqA.ConversationID+"/messages", filmer.Token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("filmer reads conversation: status %d", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	filmer := srv.register("filmer@example.com")
	rider := srv.register("rider@example.com")
	session := srv.createSession(filmer.Token)
	req := srv.createRequest(rider.Token, session.ID)

	t.Run("validation", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/v1/sessions", filmer.Token, map[string]any{
			"mountain_id":  "loon",
			"date":         time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
			"start_time":   "12:00",
			"end_time":     "09:00",
			"terrain_tags": []string{"park"},
			"rate":         80,
		})
		expectError(t, rec, http.StatusBadRequest, "validation")
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{"))
		r.Header.Set("Authorization", "Bearer "+filmer.Token)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, r)
		expectError(t, rec, http.StatusBadRequest, "validation")
	})

	t.Run("forbidden", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/v1/requests/"+req.Request.ID+"/accept", rider.Token, nil)
		expectError(t, rec, http.StatusForbidden, "forbidden")
	})

	t.Run("not found", func(t *testing.T) {
		rec := srv.do(http.MethodGet, "/api/v1/sessions/missing", rider.Token, nil)
		expectError(t, rec, http.StatusNotFound, "not_found")
	})

	t.Run("conflict", func(t *testing.T) {
		rec := srv.do(http.MethodDelete, "/api/v1/sessions/"+session.ID, filmer.Token, nil)
		expectError(t, rec, http.StatusConflict, "conflict")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := srv.do(http.MethodGet, "/api/v1/sessions", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register("someone@example.com")
	admin := srv.register("admin@example.com")
	if !admin.IsAdmin {
		t.Fatal("admin email did not grant admin")
	}

	rec := srv.do(http.MethodDelete, "/api/v1/admin/reviews/r1?filmer_id=f1", user.Token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", rec.Code)
	}

	rec = srv.do(http.MethodDelete, "/api/v1/admin/reviews/r1?filmer_id=f1", admin.Token, nil)
	expectError(t, rec, http.StatusNotFound, "not_found")

	rec = srv.do(http.MethodDelete, "/api/v1/admin/reviews/r1", admin.Token, nil)
	expectError(t, rec, http.StatusBadRequest, "validation")
}

func TestGetUserHidesOtherEmails(t *testing.T) {
	srv := newTestServer(t)
	a := srv.register("a@example.com")
	b := srv.register("b@example.com")

	rec := srv.do(http.MethodGet, "/api/v1/users/"+b.ID, a.Token, nil)
	var other models.User
	decode(t, rec, &other)
	if other.Email != "" || other.Token != "" {
		t.Errorf("leaked private fields: %+v", other)
	}

	rec = srv.do(http.MethodGet, "/api/v1/users/me", a.Token, nil)
	var me models.User
	decode(t, rec, &me)
	if me.Email != "a@example.com" {
		t.Errorf("me.Email = %q", me.Email)
	}
}

func TestPublicEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/api/v1/mountains", "", nil)
	var mountains []models.Mountain
	decode(t, rec, &mountains)
	if len(mountains) != len(models.Mountains) {
		t.Errorf("got %d mountains, want %d", len(mountains), len(models.Mountains))
	}

	if rec := srv.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestListSessionsTerrainQuery(t *testing.T) {
	srv := newTestServer(t)
	filmer := srv.register("filmer@example.com")
	session := srv.createSession(filmer.Token)

	for _, query := range []string{"park", "park,", " park , ,"} {
		rec := srv.do(http.MethodGet, "/api/v1/sessions?terrain="+url.QueryEscape(query), filmer.Token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("terrain=%q: status %d body %s", query, rec.Code, rec.Body)
		}
		var sessions []models.Session
		decode(t, rec, &sessions)
		if len(sessions) != 1 || sessions[0].ID != session.ID {
			t.Errorf("terrain=%q: got %+v", query, sessions)
		}
	}

	rec := srv.do(http.MethodGet, "/api/v1/sessions?terrain=moguls", filmer.Token, nil)
	expectError(t, rec, http.StatusBadRequest, "validation")
}
