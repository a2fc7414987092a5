package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
}

func NewSQLStore(db *sql.DB, grader grading.Grader) *SQLStore {
	return &SQLStore{db: db, grader: grader}
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := q.MarshalQuestions()
	if err != nil {
		return err
	}
	created := q.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,course_id,title,time_limit_sec,source,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, time_limit_sec=EXCLUDED.time_limit_sec, questions_json=EXCLUDED.questions_json`,
		q.ID, q.CourseID, q.Title, q.TimeLimitSec, q.Source, qj, created)
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := s.GetQuizAdmin(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return q.Sanitized(), nil
}

func (s *SQLStore) GetQuizAdmin(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,course_id,title,time_limit_sec,source,questions_json,created_at FROM quizzes WHERE id=$1`, id)
	return scanQuiz(row)
}

func (s *SQLStore) LatestQuizForCourse(ctx context.Context, courseID string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,course_id,title,time_limit_sec,source,questions_json,created_at
		   FROM quizzes WHERE course_id=$1 AND source='' ORDER BY created_at DESC LIMIT 1`, courseID)
	return scanQuiz(row)
}

func scanQuiz(row *sql.Row) (Quiz, error) {
	var q Quiz
	var qjson string
	if err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.TimeLimitSec, &q.Source, &qjson, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) NewAttempt(ctx context.Context, q Quiz, userID string, now time.Time) (Attempt, error) {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, q.ID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrQuizNotFound
		}
		return Attempt{}, err
	}
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    q.ID,
		CourseID:  q.CourseID,
		UserID:    userID,
		Status:    StatusInProgress,
		MaxScore:  q.MaxPoints(),
		Responses: NewLedger(),
		StartedAt: now.Unix(),
		Deadline:  now.Unix() + int64(q.TimeLimitSec),
	}
	rj, _ := a.Responses.MarshalString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,quiz_id,course_id,user_id,status,score,max_score,responses_json,started_at,deadline)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7,$8,$9)`,
		a.ID, a.QuizID, a.CourseID, a.UserID, a.Status, a.MaxScore, rj, a.StartedAt, a.Deadline)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,course_id,user_id,status,score,max_score,responses_json,started_at,deadline,submitted_at,auto_submitted FROM attempts WHERE id=$1`, id)
	var a Attempt
	var rjson string
	var submitted sql.NullInt64
	var auto int64
	if err := row.Scan(&a.ID, &a.QuizID, &a.CourseID, &a.UserID, &a.Status, &a.Score, &a.MaxScore, &rjson, &a.StartedAt, &a.Deadline, &submitted, &auto); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.AutoSubmit = auto != 0
	if submitted.Valid {
		v := submitted.Int64
		a.SubmittedAt = &v
	}
	if err := json.Unmarshal([]byte(rjson), &a.Responses); err != nil {
		a.Responses = NewLedger()
	}
	return a, nil
}

func (s *SQLStore) SaveResponses(ctx context.Context, attemptID string, resp Ledger) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAlreadySubmitted
	}
	if a.Responses == nil {
		a.Responses = NewLedger()
	}
	for k, v := range resp {
		a.Responses[k] = v
	}
	buf, _ := a.Responses.MarshalString()
	if _, err := s.db.ExecContext(ctx, `UPDATE attempts SET responses_json=$1 WHERE id=$2`, buf, attemptID); err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) Submit(ctx context.Context, attemptID string, auto bool, now time.Time) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAlreadySubmitted
	}

	// load the quiz WITH keys for grading
	q, err := s.GetQuizAdmin(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	a.Score = gradeAttempt(ctx, s.grader, q, a)
	a.Status = StatusSubmitted
	a.AutoSubmit = auto
	ts := now.Unix()
	a.SubmittedAt = &ts

	buf, _ := a.Responses.MarshalString()
	autoFlag := 0
	if auto {
		autoFlag = 1
	}
	// the status guard makes a concurrent double submit a no-op
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status=$1, score=$2, responses_json=$3, submitted_at=$4, auto_submitted=$5 WHERE id=$6 AND status=$7`,
		StatusSubmitted, a.Score, buf, ts, autoFlag, attemptID, StatusInProgress)
	if err != nil {
		return Attempt{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Attempt{}, ErrAlreadySubmitted
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	sqlStr := `SELECT id FROM attempts WHERE 1=1`
	args := []any{}
	add := func(cond, val string) {
		if val != "" {
			args = append(args, val)
			sqlStr += " AND " + cond + "=$" + strconv.Itoa(len(args))
		}
	}
	add("quiz_id", opts.QuizID)
	add("course_id", opts.CourseID)
	add("user_id", opts.UserID)
	add("status", opts.Status)
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	sqlStr += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, opts.Offset)
	sqlStr += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		a, err := s.GetAttempt(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountAttemptsSince(ctx context.Context, userID, courseID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE user_id=$1 AND course_id=$2 AND started_at>=$3`,
		userID, courseID, since.Unix()).Scan(&n)
	return n, err
}

func (s *SQLStore) Stats(ctx context.Context, userID, courseID string) (Stats, error) {
	st := Stats{UserID: userID, CourseID: courseID}
	var avg, best sql.NullFloat64
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(score), MAX(score), MAX(submitted_at)
		   FROM attempts WHERE user_id=$1 AND course_id=$2 AND status=$3`,
		userID, courseID, StatusSubmitted).Scan(&st.Attempts, &avg, &best, &last)
	if err != nil {
		return Stats{}, err
	}
	st.AvgScore = avg.Float64
	st.BestScore = best.Float64
	st.LastSubmitted = last.Int64
	return st, nil
}
