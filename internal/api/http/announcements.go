package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/auth"
)

type Announcement struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt int64  `json:"created_at"`
}

func CreateAnnouncementHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			CourseID string `json:"course_id"`
			Title    string `json:"title"`
			Body     string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title required")
			return
		}
		a := Announcement{
			ID:        "ann-" + uuid.NewString(),
			CourseID:  req.CourseID,
			Title:     req.Title,
			Body:      req.Body,
			Author:    sub,
			CreatedAt: time.Now().Unix(),
		}
		_, err := dbh.ExecContext(r.Context(),
			`INSERT INTO announcements (id, course_id, title, body, created_by, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			a.ID, a.CourseID, a.Title, a.Body, a.Author, a.CreatedAt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /api/announcements?courseId=... returns the feed, newest first.
func ListAnnouncementsHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := r.URL.Query().Get("courseId")
		limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
		if limit > 100 {
			limit = 100
		}
		var (
			rows *sql.Rows
			err  error
		)
		if courseID != "" {
			rows, err = dbh.QueryContext(r.Context(),
				`SELECT id, course_id, title, body, created_by, created_at FROM announcements
				  WHERE course_id=$1 ORDER BY created_at DESC LIMIT $2`, courseID, limit)
		} else {
			rows, err = dbh.QueryContext(r.Context(),
				`SELECT id, course_id, title, body, created_by, created_at FROM announcements
				  ORDER BY created_at DESC LIMIT $1`, limit)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []Announcement{}
		for rows.Next() {
			var a Announcement
			if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.Body, &a.Author, &a.CreatedAt); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, a)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
