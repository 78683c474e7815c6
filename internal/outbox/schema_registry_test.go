package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaRegistryReturnsExistingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/subjects/activity_roster_events-roster.participant_signed_up/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"subject":"x","version":3,"id":11}`))
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL+"/", nil)
	id, err := client.EnsureSchema(context.Background(), "activity_roster_events-roster.participant_signed_up", participantSignedUpSchema)
	require.NoError(t, err)
	require.Equal(t, 11, id)
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":40401,"message":"Subject not found"}`))
		case http.MethodPost:
			require.Equal(t, "/subjects/roster/versions", r.URL.Path)
			require.Equal(t, schemaRegistryContentType, r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
			_, _ = w.Write([]byte(`{"id":99}`))
		}
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL, server.Client())
	id, err := client.EnsureSchema(context.Background(), "roster", participantUnregisteredSchema)
	require.NoError(t, err)
	require.Equal(t, 99, id)
	require.Equal(t, "JSON", registered["schemaType"])
	require.Equal(t, participantUnregisteredSchema, registered["schema"])
}

func TestSchemaRegistrySurfacesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	}))
	defer server.Close()

	client := NewSchemaRegistryClient(server.URL, nil)
	_, err := client.EnsureSchema(context.Background(), "roster", participantSignedUpSchema)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
	require.Equal(t, 1, calls)
}
