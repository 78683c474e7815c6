package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/registry"
)

func newTestRouter(t *testing.T, opts ...Option) *mux.Router {
	t.Helper()
	service := domain.NewService(registry.NewInMemoryRegistry(registry.DefaultCatalog()))
	router := mux.NewRouter()
	NewHandler(service, opts...).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func activityPath(name, action, email string) string {
	return "/activities/" + url.PathEscape(name) + "/" + action + "?email=" + url.QueryEscape(email)
}

func listActivities(t *testing.T, router http.Handler) domain.Catalog {
	t.Helper()
	rr := do(t, router, http.MethodGet, "/activities")
	require.Equal(t, http.StatusOK, rr.Code)

	var catalog domain.Catalog
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &catalog))
	return catalog
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRootRedirectsToStatic(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/")

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Contains(t, rr.Header().Get("Location"), "static/index.html")
}

func TestListActivitiesReturnsSeededCatalog(t *testing.T) {
	router := newTestRouter(t)

	catalog := listActivities(t, router)

	for _, name := range []string{"Chess Club", "Programming Class", "Basketball", "Tennis Club", "Drama Club", "Art Studio", "Math Club", "Science Club", "Gym Class"} {
		require.Contains(t, catalog, name)
	}
	require.Contains(t, catalog["Chess Club"].Participants, "michael@mergington.edu")
	require.Contains(t, catalog["Chess Club"].Participants, "daniel@mergington.edu")
	require.Contains(t, catalog["Programming Class"].Participants, "emma@mergington.edu")
}

func TestListActivitiesHasRequiredFields(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/activities")
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	for name, fields := range raw {
		for _, key := range []string{"description", "schedule", "max_participants", "participants"} {
			require.Contains(t, fields, key, "activity %s missing %s", name, key)
		}
		var participants []string
		require.NoError(t, json.Unmarshal(fields["participants"], &participants), "activity %s", name)
	}
}

func TestSignupNewParticipant(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, activityPath("Chess Club", "signup", "newstudent@mergington.edu"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Contains(t, body.Message, "signed up successfully")

	chess := listActivities(t, router)["Chess Club"]
	require.Len(t, chess.Participants, 3)
	require.Contains(t, chess.Participants, "newstudent@mergington.edu")
}

func TestSignupDuplicateIsRejected(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, activityPath("Chess Club", "signup", "michael@mergington.edu"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decodeError(t, rr).Detail, "already signed up")
	require.Len(t, listActivities(t, router)["Chess Club"].Participants, 2)
}

func TestSignupUnknownActivity(t *testing.T) {
	router := newTestRouter(t)
	before := listActivities(t, router)

	rr := do(t, router, http.MethodPost, activityPath("Nonexistent Activity", "signup", "test@mergington.edu"))

	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, "Activity not found", body.Detail)
	require.Equal(t, "not_found", body.Type)
	require.Equal(t, before, listActivities(t, router))
}

func TestSignupRequiresEmail(t *testing.T) {
	router := newTestRouter(t)

	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		action := "signup"
		if method == http.MethodDelete {
			action = "unregister"
		}
		rr := do(t, router, method, "/activities/Chess%20Club/"+action)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code, method)
		require.Equal(t, "validation_failed", decodeError(t, rr).Type)
	}
	require.Len(t, listActivities(t, router)["Chess Club"].Participants, 2)
}

func TestSignupKeepsEmailVerbatim(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=%20michael@mergington.edu")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t,
		[]string{"michael@mergington.edu", "daniel@mergington.edu", " michael@mergington.edu"},
		listActivities(t, router)["Chess Club"].Participants)
}

func TestSignupAcceptsEmptyEmail(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t,
		[]string{"michael@mergington.edu", "daniel@mergington.edu", ""},
		listActivities(t, router)["Chess Club"].Participants)

	rr = do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodDelete, "/activities/Chess%20Club/unregister?email=")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, listActivities(t, router)["Chess Club"].Participants, 2)
}

func TestUnregisterExistingParticipant(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodDelete, activityPath("Chess Club", "unregister", "michael@mergington.edu"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Contains(t, body.Message, "unregistered successfully")

	chess := listActivities(t, router)["Chess Club"]
	require.Len(t, chess.Participants, 1)
	require.NotContains(t, chess.Participants, "michael@mergington.edu")
}

func TestUnregisterAbsentParticipant(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodDelete, activityPath("Chess Club", "unregister", "nonexistent@mergington.edu"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decodeError(t, rr).Detail, "not registered")
	require.Len(t, listActivities(t, router)["Chess Club"].Participants, 2)
}

func TestUnregisterUnknownActivity(t *testing.T) {
	router := newTestRouter(t)

	before := listActivities(t, router)

	rr := do(t, router, http.MethodDelete, activityPath("Nonexistent Activity", "unregister", "test@mergington.edu"))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, decodeError(t, rr).Detail, "Activity not found")
	require.Equal(t, before, listActivities(t, router))
}

func TestChessClubWalkthrough(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, activityPath("Chess Club", "signup", "newstudent@mergington.edu"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, listActivities(t, router)["Chess Club"].Participants, 3)

	rr = do(t, router, http.MethodPost, activityPath("Chess Club", "signup", "michael@mergington.edu"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Len(t, listActivities(t, router)["Chess Club"].Participants, 3)

	rr = do(t, router, http.MethodDelete, activityPath("Chess Club", "unregister", "michael@mergington.edu"))
	require.Equal(t, http.StatusOK, rr.Code)
	chess := listActivities(t, router)["Chess Club"]
	require.Len(t, chess.Participants, 2)
	require.NotContains(t, chess.Participants, "michael@mergington.edu")
}

func TestMultipleSignupsThenUnregisterMiddle(t *testing.T) {
	router := newTestRouter(t)
	emails := []string{"test1@mergington.edu", "test2@mergington.edu", "test3@mergington.edu"}

	for _, email := range emails {
		rr := do(t, router, http.MethodPost, activityPath("Tennis Club", "signup", email))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	participants := listActivities(t, router)["Tennis Club"].Participants
	for _, email := range emails {
		require.Contains(t, participants, email)
	}

	rr := do(t, router, http.MethodDelete, activityPath("Tennis Club", "unregister", emails[1]))
	require.Equal(t, http.StatusOK, rr.Code)

	participants = listActivities(t, router)["Tennis Club"].Participants
	require.Contains(t, participants, emails[0])
	require.NotContains(t, participants, emails[1])
	require.Contains(t, participants, emails[2])
}

func TestWrongMethodIsRejected(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, activityPath("Chess Club", "signup", "x@mergington.edu"))

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, "method_not_allowed", decodeError(t, rr).Type)
}

func TestStaticFilesAreServed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Mergington</h1>"), 0o644))
	router := newTestRouter(t, WithStaticDir(dir))

	rr := do(t, router, http.MethodGet, LandingPath)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Mergington")
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
