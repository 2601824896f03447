package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chmura-plikow/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func linkRouter() *chi.Mux {
	router := chi.NewRouter()
	router.With(testServer.AuthMiddleware).Post("/api/v1/nodes/{nodeId}/link", testServer.CreateLinkHandler)
	router.With(testServer.AuthMiddleware).Get("/api/v1/nodes/{nodeId}/link", testServer.GetLinkHandler)
	router.With(testServer.AuthMiddleware).Delete("/api/v1/nodes/{nodeId}/link", testServer.DeleteLinkHandler)
	router.Get("/public/{linkId}", testServer.PublicDownloadHandler)
	return router
}

func TestPublicLinkLifecycle(t *testing.T) {
	fileNode := createTestNodeAPI(t, "udostepniony.txt", "file", nil, testUserClaims.UserID)
	fileContent := "publiczna zawartość"
	_, err := testServer.storage.Save(*fileNode.StorageKey, strings.NewReader(fileContent))
	require.NoError(t, err)

	router := linkRouter()

	// utworzenie linku
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/nodes/%s/link", fileNode.ID), nil)
	req.Header.Set("Authorization", "Bearer "+testUserToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var link models.PublicLink
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &link))
	require.Equal(t, fileNode.ID, link.NodeID)

	// drugi link dla tego samego pliku to konflikt
	req = httptest.NewRequest("POST", fmt.Sprintf("/api/v1/nodes/%s/link", fileNode.ID), nil)
	req.Header.Set("Authorization", "Bearer "+testUserToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)

	// pobranie bez uwierzytelnienia
	req = httptest.NewRequest("GET", fmt.Sprintf("/public/%s", link.ID), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, fileContent, rr.Body.String())

	// odwołanie linku
	req = httptest.NewRequest("DELETE", fmt.Sprintf("/api/v1/nodes/%s/link", fileNode.ID), nil)
	req.Header.Set("Authorization", "Bearer "+testUserToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// po odwołaniu link przestaje działać
	req = httptest.NewRequest("GET", fmt.Sprintf("/public/%s", link.ID), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateLinkHandler_Folder(t *testing.T) {
	folder := createTestNodeAPI(t, "Folder bez linku", "folder", nil, testUserClaims.UserID)

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/nodes/%s/link", folder.ID), nil)
	req.Header.Set("Authorization", "Bearer "+testUserToken)
	rr := httptest.NewRecorder()
	linkRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateLinkHandler_ForeignNode(t *testing.T) {
	foreign := createTestNodeAPI(t, "cudzy_plik.txt", "file", nil, otherUserClaims.UserID)

	req := httptest.NewRequest("POST", fmt.Sprintf("/api/v1/nodes/%s/link", foreign.ID), nil)
	req.Header.Set("Authorization", "Bearer "+testUserToken)
	rr := httptest.NewRecorder()
	linkRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPublicDownloadHandler_MalformedID(t *testing.T) {
	req := httptest.NewRequest("GET", "/public/nie-uuid", nil)
	rr := httptest.NewRecorder()
	linkRouter().ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetStorageUsageHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/users/me/storage", nil)
	rr := httptest.NewRecorder()

	req = req.WithContext(context.WithValue(req.Context(), userContextKey, testUserClaims))
	http.HandlerFunc(testServer.GetStorageUsageHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var usage StorageUsageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &usage))
	require.Positive(t, usage.QuotaBytes)
}
