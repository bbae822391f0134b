package server

import (
	"context"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"basemusic/config"
	"basemusic/logger"
)

// MinioAudioPrefix is the object prefix audio files are stored under.
const MinioAudioPrefix = "audio"

// StaticHandler serves audio and image files.
type StaticHandler struct {
	audio  http.Handler
	images http.Handler
}

// NewStaticHandler serves /audio/ from the audio directory, or from MinIO
// when client is set, and /images/ from the images directory next to it.
func NewStaticHandler(cfg *config.Config, client *minio.Client) *StaticHandler {
	h := &StaticHandler{
		images: http.StripPrefix("/images/", http.FileServer(http.Dir(imagesDir(cfg)))),
	}
	if client != nil {
		h.audio = &minioObjectHandler{client: client, bucket: cfg.MinioBucket, prefix: MinioAudioPrefix}
	} else {
		h.audio = http.StripPrefix("/audio/", http.FileServer(http.Dir(cfg.AudioDir)))
	}
	return h
}

func imagesDir(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(filepath.Clean(cfg.AudioDir)), "images")
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/audio/"):
		h.audio.ServeHTTP(w, r)
	case strings.HasPrefix(r.URL.Path, "/images/"):
		h.images.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

type minioObjectHandler struct {
	client *minio.Client
	bucket string
	prefix string
}

func (h *minioObjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + strings.TrimPrefix(r.URL.Path, "/audio/"))
	objectPath := h.prefix + name

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := h.client.GetObject(ctx, h.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		logger.Debug("minio object unavailable", logger.String("object", objectPath), logger.ErrorField(err))
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Type", detectContentType(objectPath))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	// Range requests let the player seek.
	http.ServeContent(w, r, name, info.LastModified, object)
}

// detectContentType maps a file extension to its MIME type.
func detectContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".mp3":
		return "audio/mpeg"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
