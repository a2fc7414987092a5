package http

import (
	"database/sql"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/auth"
	"github.com/smarthub-edu/smarthub/internal/storage"
)

const maxResourceUpload = 32 << 20 // 32 MiB

type Resource struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	PublishedBy string `json:"published_by"`
	CreatedAt   int64  `json:"created_at"`
}

// POST /api/resources, multipart form: file, course_id, title, description.
func UploadResourceHandler(dbh *sql.DB, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if err := r.ParseMultipartForm(maxResourceUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		courseID := r.FormValue("course_id")
		title := strings.TrimSpace(r.FormValue("title"))
		if courseID == "" || title == "" {
			writeError(w, http.StatusBadRequest, "course_id and title required")
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file required")
			return
		}
		defer file.Close()

		id := "res-" + uuid.NewString()
		blobKey := courseID + "/" + id
		if _, err := blobs.Put(blobKey, io.LimitReader(file, maxResourceUpload)); err != nil {
			writeError(w, http.StatusInternalServerError, "store failed")
			return
		}

		res := Resource{
			ID:          id,
			CourseID:    courseID,
			Title:       title,
			Description: r.FormValue("description"),
			ContentType: hdr.Header.Get("Content-Type"),
			PublishedBy: sub,
			CreatedAt:   time.Now().Unix(),
		}
		_, err = dbh.ExecContext(r.Context(),
			`INSERT INTO resources (id, course_id, title, description, blob_key, content_type, published_by, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			res.ID, res.CourseID, res.Title, res.Description, blobKey, res.ContentType, res.PublishedBy, res.CreatedAt)
		if err != nil {
			_ = blobs.Delete(blobKey)
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ListResourcesHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := r.URL.Query().Get("courseId")
		if courseID == "" {
			writeError(w, http.StatusBadRequest, "courseId required")
			return
		}
		rows, err := dbh.QueryContext(r.Context(),
			`SELECT id, course_id, title, description, content_type, published_by, created_at
			   FROM resources WHERE course_id=$1 ORDER BY created_at DESC`, courseID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []Resource{}
		for rows.Next() {
			var res Resource
			if err := rows.Scan(&res.ID, &res.CourseID, &res.Title, &res.Description,
				&res.ContentType, &res.PublishedBy, &res.CreatedAt); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, res)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /api/resources/{resourceID}/download streams the stored blob.
func DownloadResourceHandler(dbh *sql.DB, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "resourceID")
		var blobKey, contentType, title string
		err := dbh.QueryRowContext(r.Context(),
			`SELECT blob_key, content_type, title FROM resources WHERE id=$1`, id).
			Scan(&blobKey, &contentType, &title)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		rc, err := blobs.Get(blobKey)
		if err != nil {
			writeError(w, http.StatusNotFound, "blob missing")
			return
		}
		defer rc.Close()
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+title+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	}
}
