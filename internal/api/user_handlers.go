package api

import (
	"encoding/json"
	"log"
	"net/http"

	"chmura-plikow/internal/database"
)

// @Summary      Get current user
// @Description  Returns the profile of the authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      404  {string}  string "User not found"
// @Router       /users/me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type StorageUsageResponse struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// @Summary      Get storage usage
// @Description  Returns the authenticated user's consumed bytes and quota.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StorageUsageResponse
// @Router       /users/me/storage [get]
func (s *Server) GetStorageUsageHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil || user == nil {
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StorageUsageResponse{
		UsedBytes:  user.StorageUsedBytes,
		QuotaBytes: user.StorageQuotaBytes,
	})
}

// @Summary      Delete account
// @Description  Permanently removes the authenticated user together with every node, session and public link they own. Blobs are released from storage after the database commit.
// @Tags         users
// @Security     BearerAuth
// @Success      204  {null}    nil "No Content"
// @Router       /users/me [delete]
func (s *Server) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var storageKeys []string
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		keys, err := q.DeleteUser(r.Context(), claims.UserID)
		if err != nil {
			return err
		}
		storageKeys = keys
		return nil
	})
	if txErr != nil {
		log.Printf("ERROR: failed to delete account %d: %v", claims.UserID, txErr)
		http.Error(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	for _, key := range storageKeys {
		if err := s.storage.Delete(key); err != nil {
			log.Printf("WARN: Failed to delete blob %s from storage: %v", key, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
