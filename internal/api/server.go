package api

import (
	"chmura-plikow/internal/config"
	"chmura-plikow/internal/database"
	"chmura-plikow/internal/storage"
	"chmura-plikow/internal/websocket"
)

type Server struct {
	config  *config.Config
	store   *database.Store
	storage storage.BlobStore
	wsHub   *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.Store, blobs storage.BlobStore, wsHub *websocket.Hub) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		storage: blobs,
		wsHub:   wsHub,
	}
}
