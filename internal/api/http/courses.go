package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/auth"
)

// Course is what list and create return to the client.
type Course struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func CreateCourseHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name required")
			return
		}
		courseID := "c-" + uuid.NewString()
		_, err := dbh.ExecContext(r.Context(),
			`INSERT INTO courses (id, name, description, created_by, created_at) VALUES ($1,$2,$3,$4,$5)`,
			courseID, req.Name, req.Description, sub, time.Now().Unix())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusOK, Course{ID: courseID, Name: req.Name, Description: req.Description})
	}
}

func ListCoursesHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		role := auth.RoleFromContext(r.Context())

		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		if limit > 200 {
			limit = 200
		}
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		var (
			sqlStr string
			args   []any
		)
		switch role {
		case "student":
			// enrolled courses only
			sqlStr = `SELECT c.id, c.name, c.description
			            FROM courses c
			            JOIN course_students s ON s.course_id=c.id
			           WHERE s.student_id=$1 AND s.status='active'`
			args = append(args, sub)
		case "teacher":
			sqlStr = `SELECT c.id, c.name, c.description FROM courses c WHERE c.created_by=$1`
			args = append(args, sub)
		default:
			sqlStr = `SELECT c.id, c.name, c.description FROM courses c WHERE 1=1`
		}
		if q != "" {
			args = append(args, "%"+q+"%")
			sqlStr += ` AND c.name LIKE $` + strconv.Itoa(len(args))
		}
		args = append(args, limit)
		sqlStr += ` ORDER BY c.created_at DESC LIMIT $` + strconv.Itoa(len(args))
		args = append(args, offset)
		sqlStr += ` OFFSET $` + strconv.Itoa(len(args))

		rows, err := dbh.QueryContext(r.Context(), sqlStr, args...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rows.Close()
		out := []Course{}
		for rows.Next() {
			var c Course
			if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, c)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /api/courses/{courseID}/enroll. A student enrolls themselves;
// a teacher or admin may enroll any student via body.
func EnrollHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := auth.SubjectFromContext(r.Context())
		role := auth.RoleFromContext(r.Context())

		studentID := sub
		if role != "student" {
			var req struct {
				StudentID string `json:"student_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.StudentID != "" {
				studentID = req.StudentID
			}
		}

		var exist int
		err := dbh.QueryRowContext(r.Context(), `SELECT 1 FROM courses WHERE id=$1`, courseID).Scan(&exist)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		_, err = dbh.ExecContext(r.Context(),
			`INSERT INTO course_students (course_id, student_id, status, enrolled_at) VALUES ($1,$2,'active',$3)
			 ON CONFLICT (course_id, student_id) DO UPDATE SET status='active'`,
			courseID, studentID, time.Now().Unix())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"course_id": courseID, "student_id": studentID, "status": "active"})
	}
}
