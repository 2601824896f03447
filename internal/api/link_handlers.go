package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"chmura-plikow/internal/database"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// @Summary      Create a public link
// @Description  Issues an unguessable link for a file. Anyone holding the link ID can download the file without authentication. Only one link per file exists at a time.
// @Tags         links
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId  path  string  true  "Node ID"
// @Success      201  {object}  models.PublicLink
// @Failure      400  {string}  string "Folders cannot be shared"
// @Failure      404  {string}  string "Not found"
// @Failure      409  {string}  string "Link already exists"
// @Router       /nodes/{nodeId}/link [post]
func (s *Server) CreateLinkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	node, err := s.store.GetNodeByID(r.Context(), nodeID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve node", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "Node not found or you do not have permission to access it", http.StatusNotFound)
		return
	}
	if node.NodeType != "file" {
		http.Error(w, "Public links can only be created for files", http.StatusBadRequest)
		return
	}

	link, err := s.store.CreatePublicLink(r.Context(), node.ID)
	if err != nil {
		if errors.Is(err, database.ErrLinkAlreadyExists) {
			http.Error(w, "A public link for this file already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create public link", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(link)
}

// @Summary      Get the public link for a file
// @Tags         links
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId  path  string  true  "Node ID"
// @Success      200  {object}  models.PublicLink
// @Failure      404  {string}  string "No link for this node"
// @Router       /nodes/{nodeId}/link [get]
func (s *Server) GetLinkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	node, err := s.store.GetNodeByID(r.Context(), nodeID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve node", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "Node not found or you do not have permission to access it", http.StatusNotFound)
		return
	}

	link, err := s.store.GetPublicLinkForNode(r.Context(), node.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve public link", http.StatusInternalServerError)
		return
	}
	if link == nil {
		http.Error(w, "No public link exists for this node", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link)
}

// @Summary      Revoke a public link
// @Tags         links
// @Security     BearerAuth
// @Param        nodeId  path  string  true  "Node ID"
// @Success      204  {null}    nil "No Content"
// @Failure      404  {string}  string "No link for this node"
// @Router       /nodes/{nodeId}/link [delete]
func (s *Server) DeleteLinkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	node, err := s.store.GetNodeByID(r.Context(), nodeID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve node", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "Node not found or you do not have permission to access it", http.StatusNotFound)
		return
	}

	deleted, err := s.store.DeletePublicLink(r.Context(), node.ID)
	if err != nil {
		http.Error(w, "Failed to revoke public link", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "No public link exists for this node", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Download a publicly shared file
// @Description  Streams a file addressed by its public link ID. No authentication required.
// @Tags         links
// @Produce      application/octet-stream
// @Param        linkId  path  string  true  "Public link ID"
// @Success      200  {file}    file
// @Failure      400  {string}  string "Malformed link ID"
// @Failure      404  {string}  string "Unknown link"
// @Router       /public/{linkId} [get]
func (s *Server) PublicDownloadHandler(w http.ResponseWriter, r *http.Request) {
	linkID, err := uuid.Parse(chi.URLParam(r, "linkId"))
	if err != nil {
		http.Error(w, "Invalid link ID", http.StatusBadRequest)
		return
	}

	node, err := s.store.GetNodeByLinkID(r.Context(), linkID)
	if err != nil {
		http.Error(w, "Failed to retrieve file metadata", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	}

	s.streamFile(w, node)
}
