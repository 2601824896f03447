package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"chmura-plikow/internal/database"
	"chmura-plikow/internal/models"
	"chmura-plikow/internal/paths"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
)

const nodeIDLength = 21

func (s *Server) generateUniqueID(ctx context.Context) (string, error) {
	maxRetries := 10

	generateID, err := nanoid.Standard(nodeIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		id := generateID()
		exists, err := s.store.NodeExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for node existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

func newStorageKey() (string, error) {
	generateKey, err := nanoid.Standard(nodeIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}
	return generateKey(), nil
}

// requireParentFolder loads the destination parent, confirms it belongs to
// the owner and is a folder, and locks its row for the rest of the
// transaction so concurrent siblings cannot race on the same name.
func requireParentFolder(ctx context.Context, q *database.Queries, parentID string, ownerID int64) (*models.Node, error) {
	parent, err := q.GetNodeByID(ctx, parentID, ownerID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, database.ErrNodeNotFound
	}
	if parent.NodeType != "folder" {
		return nil, database.ErrParentNotFolder
	}
	if _, err := q.LockNode(ctx, parentID, ownerID); err != nil {
		return nil, err
	}
	return parent, nil
}

func writeNodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paths.ErrInvalidName), errors.Is(err, paths.ErrPathTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrParentNotFolder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrNodeNotFound):
		http.Error(w, "Node not found or you do not have permission to access it", http.StatusNotFound)
	case errors.Is(err, database.ErrDuplicateNodeName):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrFolderCycle):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	default:
		log.Printf("ERROR: node operation failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

// @Summary      Create a folder
// @Description  Creates a folder under the given parent (or at the root when parent_id is omitted). Sibling names are unique.
// @Tags         nodes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        createFolderRequest  body      CreateFolderRequest  true  "Folder"
// @Success      201  {object}  models.Node
// @Failure      400  {string}  string "Invalid name or parent"
// @Failure      404  {string}  string "Parent not found"
// @Failure      409  {string}  string "Name conflict"
// @Router       /nodes/folder [post]
func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := paths.ValidateName(req.Name); err != nil {
		writeNodeError(w, err)
		return
	}

	if req.ParentID != nil && len(*req.ParentID) != nodeIDLength {
		http.Error(w, "Invalid ParentID format", http.StatusBadRequest)
		return
	}

	nodeID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var node *models.Node
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		if req.ParentID != nil {
			if _, err := requireParentFolder(r.Context(), q, *req.ParentID, claims.UserID); err != nil {
				return err
			}
		}

		var err error
		node, err = q.CreateNode(r.Context(), database.CreateNodeParams{
			ID:       nodeID,
			OwnerID:  claims.UserID,
			ParentID: req.ParentID,
			Name:     req.Name,
			NodeType: "folder",
		})
		if err != nil {
			return err
		}

		return q.LogEvent(r.Context(), claims.UserID, "node_created", node)
	})
	if txErr != nil {
		writeNodeError(w, txErr)
		return
	}

	s.notify(claims.UserID, "node_created", node)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(node)
}

// @Summary      List folder contents
// @Description  Lists the direct children of a folder (or of the root when parent_id is omitted), folders first.
// @Tags         nodes
// @Produce      json
// @Security     BearerAuth
// @Param        parent_id  query     string  false  "Parent folder ID"
// @Param        limit      query     int     false  "Page size"
// @Param        offset     query     int     false  "Page offset"
// @Success      200  {array}   models.Node
// @Router       /nodes [get]
func (s *Server) ListNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	parentIDStr := r.URL.Query().Get("parent_id")

	var parentID *string
	if parentIDStr != "" {
		parentID = &parentIDStr
	}

	nodes, err := s.store.GetNodesByParentID(r.Context(), claims.UserID, parentID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list nodes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nodes)
}

// @Summary      Upload a file
// @Description  Stores the uploaded content in the blob store under a fresh storage key and registers the file node. Rejects uploads that would exceed the owner's quota.
// @Tags         nodes
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file       formData  file    true   "File content"
// @Param        parent_id  formData  string  false  "Destination folder ID"
// @Success      201  {object}  models.Node
// @Failure      400  {string}  string "Invalid name or parent"
// @Failure      409  {string}  string "Name conflict"
// @Failure      413  {string}  string "Quota exceeded"
// @Router       /nodes/file [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := strings.TrimSpace(handler.Filename)
	if err := paths.ValidateName(name); err != nil {
		writeNodeError(w, err)
		return
	}

	parentIDStr := r.FormValue("parent_id")
	var parentID *string
	if parentIDStr != "" {
		if len(parentIDStr) != nodeIDLength {
			http.Error(w, "Invalid ParentID format", http.StatusBadRequest)
			return
		}
		parentID = &parentIDStr
	}

	nodeID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	storageKey, err := newStorageKey()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sizeBytes, err := s.storage.Save(storageKey, file)
	if err != nil {
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	mimeType := handler.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var node *models.Node
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		if parentID != nil {
			if _, err := requireParentFolder(r.Context(), q, *parentID, claims.UserID); err != nil {
				return err
			}
		}

		used, quota, err := q.LockUserStorage(r.Context(), claims.UserID)
		if err != nil {
			return err
		}
		if used+sizeBytes > quota {
			return database.ErrQuotaExceeded
		}

		node, err = q.CreateNode(r.Context(), database.CreateNodeParams{
			ID:         nodeID,
			OwnerID:    claims.UserID,
			ParentID:   parentID,
			Name:       name,
			NodeType:   "file",
			SizeBytes:  &sizeBytes,
			MimeType:   &mimeType,
			StorageKey: &storageKey,
		})
		if err != nil {
			return err
		}

		if err := q.UpdateUserStorage(r.Context(), claims.UserID, sizeBytes); err != nil {
			return err
		}

		return q.LogEvent(r.Context(), claims.UserID, "node_created", node)
	})
	if txErr != nil {
		// the blob is orphaned when the record never made it to the database
		if delErr := s.storage.Delete(storageKey); delErr != nil {
			log.Printf("WARN: Failed to clean up blob %s after aborted upload: %v", storageKey, delErr)
		}
		writeNodeError(w, txErr)
		return
	}

	s.notify(claims.UserID, "node_created", node)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(node)
}

// @Summary      Download a file
// @Description  Streams the file content from the blob store.
// @Tags         nodes
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        nodeId  path  string  true  "Node ID"
// @Success      200  {file}    file
// @Failure      400  {string}  string "Cannot download a folder"
// @Failure      404  {string}  string "Not found"
// @Router       /nodes/{nodeId}/download [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	nodeID := chi.URLParam(r, "nodeId")
	if nodeID == "" {
		http.Error(w, "Node ID is required", http.StatusBadRequest)
		return
	}

	node, err := s.store.GetNodeByID(r.Context(), nodeID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve file metadata", http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "File not found or you do not have permission to access it", http.StatusNotFound)
		return
	}
	if node.NodeType != "file" {
		http.Error(w, "Cannot download a folder", http.StatusBadRequest)
		return
	}

	s.streamFile(w, node)
}

func (s *Server) streamFile(w http.ResponseWriter, node *models.Node) {
	if node.StorageKey == nil {
		http.Error(w, "File has no content", http.StatusInternalServerError)
		return
	}

	fileStream, err := s.storage.Get(*node.StorageKey)
	if err != nil {
		http.Error(w, "File not found on storage", http.StatusInternalServerError)
		return
	}
	defer fileStream.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+node.Name+"\"")
	if node.MimeType != nil && *node.MimeType != "" {
		w.Header().Set("Content-Type", *node.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	if node.SizeBytes != nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", *node.SizeBytes))
	}

	io.Copy(w, fileStream)
}

type UpdateNodeRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

// @Summary      Rename and/or move a node
// @Description  Renames the node, moves it under a new parent, or both. An empty parent_id moves the node to the root. Moves refuse to create cycles and never cross owners.
// @Tags         nodes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        nodeId             path      string             true  "Node ID"
// @Param        updateNodeRequest  body      UpdateNodeRequest  true  "Update"
// @Success      200  {object}  models.Node
// @Failure      400  {string}  string "Invalid name or parent"
// @Failure      404  {string}  string "Not found"
// @Failure      409  {string}  string "Name conflict or cycle"
// @Router       /nodes/{nodeId} [patch]
func (s *Server) UpdateNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == nil && req.ParentID == nil {
		http.Error(w, "No update operation specified (provide 'name' or 'parent_id')", http.StatusBadRequest)
		return
	}

	var newName string
	if req.Name != nil {
		newName = strings.TrimSpace(*req.Name)
		if err := paths.ValidateName(newName); err != nil {
			writeNodeError(w, err)
			return
		}
	}
	if req.ParentID != nil && *req.ParentID != "" && len(*req.ParentID) != nodeIDLength {
		http.Error(w, "Invalid ParentID format", http.StatusBadRequest)
		return
	}

	var updatedNode *models.Node
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		node, err := q.GetNodeByID(r.Context(), nodeID, claims.UserID)
		if err != nil {
			return err
		}
		if node == nil {
			return database.ErrNodeNotFound
		}

		if req.ParentID != nil {
			var newParentID *string
			if *req.ParentID != "" {
				parent, err := requireParentFolder(r.Context(), q, *req.ParentID, claims.UserID)
				if err != nil {
					return err
				}
				if node.NodeType == "folder" {
					cycle, err := q.IsDescendantOf(r.Context(), node.ID, parent.ID)
					if err != nil {
						return err
					}
					if cycle {
						return database.ErrFolderCycle
					}
				}
				newParentID = &parent.ID
			}

			if _, err := q.MoveNode(r.Context(), node.ID, claims.UserID, newParentID); err != nil {
				return err
			}
		}

		if req.Name != nil {
			// lock the node's current parent to serialize sibling renames
			if node.ParentID != nil {
				if _, err := q.LockNode(r.Context(), *node.ParentID, claims.UserID); err != nil {
					return err
				}
			}
			if _, err := q.RenameNode(r.Context(), node.ID, claims.UserID, newName); err != nil {
				return err
			}
		}

		updatedNode, err = q.GetNodeByID(r.Context(), node.ID, claims.UserID)
		if err != nil {
			return err
		}

		return q.LogEvent(r.Context(), claims.UserID, "node_updated", updatedNode)
	})
	if txErr != nil {
		writeNodeError(w, txErr)
		return
	}

	s.notify(claims.UserID, "node_updated", updatedNode)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updatedNode)
}

// @Summary      Delete a node
// @Description  Permanently deletes a node. Folders are removed depth-first together with every descendant, and all released blobs are deleted from storage.
// @Tags         nodes
// @Security     BearerAuth
// @Param        nodeId  path  string  true  "Node ID"
// @Success      204  {null}    nil "No Content"
// @Failure      404  {string}  string "Not found"
// @Router       /nodes/{nodeId} [delete]
func (s *Server) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	if nodeID == "" {
		http.Error(w, "Node ID is required", http.StatusBadRequest)
		return
	}

	var storageKeys []string
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		keys, freedBytes, found, err := q.DeleteNodeTree(r.Context(), nodeID, claims.UserID)
		if err != nil {
			return err
		}
		if !found {
			return database.ErrNodeNotFound
		}
		storageKeys = keys

		if freedBytes > 0 {
			if err := q.UpdateUserStorage(r.Context(), claims.UserID, -freedBytes); err != nil {
				return err
			}
		}

		return q.LogEvent(r.Context(), claims.UserID, "node_deleted", map[string]string{"id": nodeID})
	})
	if txErr != nil {
		writeNodeError(w, txErr)
		return
	}

	for _, key := range storageKeys {
		if err := s.storage.Delete(key); err != nil {
			log.Printf("WARN: Failed to delete blob %s from storage: %v", key, err)
		}
	}

	s.notify(claims.UserID, "node_deleted", map[string]string{"id": nodeID})

	w.WriteHeader(http.StatusNoContent)
}

type ResolvePathResponse struct {
	Path string       `json:"path"`
	Node *models.Node `json:"node"`
}

// @Summary      Resolve a path
// @Description  Translates a slash-separated path into the node it addresses, scoped to the caller. The empty path resolves to the root (a null node).
// @Tags         nodes
// @Produce      json
// @Security     BearerAuth
// @Param        path  query     string  true  "Path, e.g. docs/reports/q1.txt"
// @Success      200   {object}  ResolvePathResponse
// @Failure      400   {string}  string "Invalid path"
// @Failure      404   {string}  string "No node at this path"
// @Router       /nodes/resolve [get]
func (s *Server) ResolvePathHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	rawPath := r.URL.Query().Get("path")

	node, err := s.store.ResolvePath(r.Context(), claims.UserID, rawPath)
	if err != nil {
		writeNodeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ResolvePathResponse{
		Path: paths.Normalize(rawPath),
		Node: node,
	})
}

// @Summary      Search nodes by name
// @Description  Case-insensitive substring match over the caller's node names. No ranking beyond name containment.
// @Tags         nodes
// @Produce      json
// @Security     BearerAuth
// @Param        query   query     string  true   "Substring to look for"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Page offset"
// @Success      200  {array}   models.Node
// @Failure      400  {string}  string "Missing query"
// @Router       /nodes/search [get]
func (s *Server) SearchNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	term := strings.TrimSpace(r.URL.Query().Get("query"))
	if term == "" {
		http.Error(w, "Search query cannot be empty", http.StatusBadRequest)
		return
	}

	nodes, err := s.store.SearchNodes(r.Context(), claims.UserID, term, limit, offset)
	if err != nil {
		http.Error(w, "Failed to search nodes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nodes)
}
