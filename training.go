package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"yallafit/go-api/internal/fitness"
)

// validateTrainingSession checks the request shape before any DB work.
func validateTrainingSession(body saveTrainingSessionRequest) string {
	if body.ProgrammeID <= 0 || body.ProgrammeSessionID <= 0 {
		return "programme_id and programme_session_id are required"
	}
	if body.DurationMinutes < 0 || body.DurationMinutes > 24*60 {
		return "duration_minutes must be between 0 and 1440"
	}
	seen := map[int]bool{}
	for _, ex := range body.Exercises {
		if ex.ExerciseID <= 0 {
			return "exercise_id is required for every exercise"
		}
		if seen[ex.ExerciseID] {
			return "duplicate exercise_id in session"
		}
		seen[ex.ExerciseID] = true
		for _, s := range ex.Sets {
			if s.Reps < 0 {
				return "reps must not be negative"
			}
			if s.WeightKG != nil && *s.WeightKG < 0 {
				return "weight_kg must not be negative"
			}
		}
	}
	return ""
}

// saveTrainingSession stores a completed session with its exercises and sets.
// POST /api/training/sessions. Everything is written in one transaction so a
// failed set insert never leaves a half-logged session behind.
func (h *Handler) saveTrainingSession(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body saveTrainingSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateTrainingSession(body); msg != "" {
		apiError(c, http.StatusBadRequest, msg)
		return
	}
	if body.CompletedAt.IsZero() {
		body.CompletedAt = time.Now()
	}

	// The planned session must belong to the programme the athlete is enrolled in.
	var enrolled bool
	err := h.db.QueryRow(c,
		`SELECT EXISTS (
			SELECT 1 FROM programme_sessions ps
			JOIN programme_enrollments e ON e.programme_id = ps.programme_id
			WHERE ps.id = @sessionID AND ps.programme_id = @programmeID
			  AND e.athlete_id = @userID AND e.is_active
		)`,
		pgx.NamedArgs{"sessionID": body.ProgrammeSessionID, "programmeID": body.ProgrammeID, "userID": userID},
	).Scan(&enrolled)
	if err != nil {
		log.Printf("[saveTrainingSession] enrollment check: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to save session")
		return
	}
	if !enrolled {
		apiError(c, http.StatusForbidden, "not enrolled in this programme session")
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to save session")
		return
	}
	defer tx.Rollback(c)

	var sessionID int
	err = tx.QueryRow(c,
		`INSERT INTO training_sessions (athlete_id, programme_id, programme_session_id, completed_at, duration_minutes, notes)
		 VALUES (@userID, @programmeID, @sessionID, @completedAt, @duration, @notes)
		 RETURNING id`,
		pgx.NamedArgs{
			"userID":      userID,
			"programmeID": body.ProgrammeID,
			"sessionID":   body.ProgrammeSessionID,
			"completedAt": body.CompletedAt,
			"duration":    body.DurationMinutes,
			"notes":       body.Notes,
		}).Scan(&sessionID)
	if err != nil {
		log.Printf("[saveTrainingSession] insert session: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	for i, ex := range body.Exercises {
		order := ex.OrderIndex
		if order == 0 {
			order = i + 1
		}
		var trainingExerciseID int
		err := tx.QueryRow(c,
			`INSERT INTO training_exercises (training_session_id, exercise_id, order_index)
			 VALUES ($1, $2, $3) RETURNING id`,
			sessionID, ex.ExerciseID, order).Scan(&trainingExerciseID)
		if err != nil {
			log.Printf("[saveTrainingSession] insert exercise %d: %v", ex.ExerciseID, err)
			if pgErrorCode(err) == pgForeignKeyViolation {
				apiError(c, http.StatusBadRequest, "unknown exercise_id")
			} else {
				apiError(c, http.StatusInternalServerError, "failed to save session")
			}
			return
		}
		for j, s := range ex.Sets {
			setNumber := s.SetNumber
			if setNumber == 0 {
				setNumber = j + 1
			}
			if _, err := tx.Exec(c,
				`INSERT INTO training_sets (training_exercise_id, set_number, reps, weight_kg, completed, notes)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				trainingExerciseID, setNumber, s.Reps, s.WeightKG, s.Completed, s.Notes); err != nil {
				log.Printf("[saveTrainingSession] insert set: %v", err)
				apiError(c, http.StatusInternalServerError, "failed to save session")
				return
			}
		}
	}

	if err := tx.Commit(c); err != nil {
		log.Printf("[saveTrainingSession] commit: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": sessionID})
}

// optionalIntQuery parses an optional positive integer query param; 0 means absent.
func optionalIntQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

const trainingSessionSelect = `SELECT ts.id, ts.programme_id, p.title AS programme_title,
	ts.programme_session_id, ps.name AS session_name,
	ts.completed_at, ts.duration_minutes, ts.notes,
	COUNT(DISTINCT te.id)::int AS exercise_count,
	COUNT(st.id)::int AS total_sets
	FROM training_sessions ts
	JOIN programmes p ON p.id = ts.programme_id
	JOIN programme_sessions ps ON ps.id = ts.programme_session_id
	LEFT JOIN training_exercises te ON te.training_session_id = ts.id
	LEFT JOIN training_sets st ON st.training_exercise_id = te.id`

// getTrainingSessions lists the athlete's sessions, newest first.
// GET /api/training/sessions?programme_id=&limit= (limit default 20, max 200).
func (h *Handler) getTrainingSessions(c *gin.Context) {
	userID := c.GetInt("user_id")
	programmeID, ok := optionalIntQuery(c, "programme_id")
	if !ok {
		apiError(c, http.StatusBadRequest, "invalid programme_id")
		return
	}
	limit, err := parseLimit(c.Query("limit"), 20, 200)
	if err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := queryMany[trainingSessionRow](h.db, c,
		trainingSessionSelect+`
		 WHERE ts.athlete_id = @userID
		   AND (@programmeID = 0 OR ts.programme_id = @programmeID)
		 GROUP BY ts.id, p.title, ps.name
		 ORDER BY ts.completed_at DESC
		 LIMIT @limit`,
		pgx.NamedArgs{"userID": userID, "programmeID": programmeID, "limit": limit})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch sessions")
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// sessionRecordRow is the scan target for aggregate queries over training_sessions.
type sessionRecordRow struct {
	AthleteID       int       `db:"athlete_id"`
	CompletedAt     time.Time `db:"completed_at"`
	DurationMinutes int       `db:"duration_minutes"`
}

func toSessionRecords(rows []sessionRecordRow) []fitness.SessionRecord {
	out := make([]fitness.SessionRecord, len(rows))
	for i, r := range rows {
		out[i] = fitness.SessionRecord{AthleteID: r.AthleteID, CompletedAt: r.CompletedAt, DurationMinutes: r.DurationMinutes}
	}
	return out
}

// getTrainingStats returns totals over the athlete's sessions.
// GET /api/training/stats?programme_id=.
func (h *Handler) getTrainingStats(c *gin.Context) {
	userID := c.GetInt("user_id")
	programmeID, ok := optionalIntQuery(c, "programme_id")
	if !ok {
		apiError(c, http.StatusBadRequest, "invalid programme_id")
		return
	}

	rows, err := queryMany[sessionRecordRow](h.db, c,
		`SELECT athlete_id, completed_at, duration_minutes FROM training_sessions
		 WHERE athlete_id = @userID
		   AND (@programmeID = 0 OR programme_id = @programmeID)`,
		pgx.NamedArgs{"userID": userID, "programmeID": programmeID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch training stats")
		return
	}

	c.JSON(http.StatusOK, fitness.SummarizeSessions(toSessionRecords(rows)))
}

// progressSetRow is one set of the requested exercise, tagged with its session.
type progressSetRow struct {
	SessionID   int       `db:"session_id"`
	CompletedAt time.Time `db:"completed_at"`
	Reps        int       `db:"reps"`
	WeightKG    *float64  `db:"weight_kg"`
}

// groupProgress turns set rows (ordered by session date) into one progress
// point per session, preserving order.
func groupProgress(rows []progressSetRow) []fitness.ProgressPoint {
	points := []fitness.ProgressPoint{}
	var (
		sets    []fitness.SetRecord
		current = -1
		date    time.Time
	)
	flush := func() {
		if current >= 0 {
			points = append(points, fitness.BuildProgressPoint(current, date, sets))
		}
	}
	for _, r := range rows {
		if r.SessionID != current {
			flush()
			current, date, sets = r.SessionID, r.CompletedAt, nil
		}
		sets = append(sets, fitness.SetRecord{Reps: r.Reps, WeightKG: r.WeightKG})
	}
	flush()
	return points
}

// getExerciseProgress returns per-session performance for one exercise.
// GET /api/training/progress/:exerciseId. Only completed sets count.
func (h *Handler) getExerciseProgress(c *gin.Context) {
	userID := c.GetInt("user_id")
	exerciseID, err := strconv.Atoi(c.Param("exerciseId"))
	if err != nil || exerciseID <= 0 {
		apiError(c, http.StatusBadRequest, "invalid exerciseId")
		return
	}

	var name string
	err = h.db.QueryRow(c, "SELECT name FROM exercises WHERE id = $1", exerciseID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			apiError(c, http.StatusNotFound, "exercise not found")
		} else {
			apiError(c, http.StatusInternalServerError, "failed to fetch exercise")
		}
		return
	}

	rows, err := queryMany[progressSetRow](h.db, c,
		`SELECT ts.id AS session_id, ts.completed_at, st.reps, st.weight_kg
		 FROM training_sets st
		 JOIN training_exercises te ON te.id = st.training_exercise_id
		 JOIN training_sessions ts ON ts.id = te.training_session_id
		 WHERE ts.athlete_id = @userID AND te.exercise_id = @exerciseID AND st.completed
		 ORDER BY ts.completed_at, ts.id, st.set_number`,
		pgx.NamedArgs{"userID": userID, "exerciseID": exerciseID})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch progress")
		return
	}

	points := groupProgress(rows)
	c.JSON(http.StatusOK, gin.H{
		"exercise_id":   exerciseID,
		"exercise_name": name,
		"history":       points,
		"stats":         fitness.SummarizeProgress(points),
	})
}

/* ─── Session detail ─────────────────────────────────────────────────── */

// loggedSetRow is one set of a logged session, joined with its exercise.
// Set columns are NULL for an exercise logged without sets.
type loggedSetRow struct {
	TrainingExerciseID int      `db:"training_exercise_id"`
	ExerciseID         int      `db:"exercise_id"`
	ExerciseName       string   `db:"exercise_name"`
	TargetMuscle       *string  `db:"target_muscle"`
	OrderIndex         int      `db:"order_index"`
	SetNumber          *int     `db:"set_number"`
	Reps               *int     `db:"reps"`
	WeightKG           *float64 `db:"weight_kg"`
	Completed          *bool    `db:"completed"`
	Notes              *string  `db:"notes"`
}

type loggedSet struct {
	SetNumber int      `json:"set_number"`
	Reps      int      `json:"reps"`
	WeightKG  *float64 `json:"weight_kg"`
	Completed bool     `json:"completed"`
	Notes     *string  `json:"notes"`
}

type loggedExercise struct {
	ExerciseID   int         `json:"exercise_id"`
	ExerciseName string      `json:"exercise_name"`
	TargetMuscle *string     `json:"target_muscle"`
	OrderIndex   int         `json:"order_index"`
	Sets         []loggedSet `json:"sets"`
}

// groupLoggedExercises folds set rows (ordered by exercise then set) into one
// entry per logged exercise, preserving order.
func groupLoggedExercises(rows []loggedSetRow) []loggedExercise {
	out := []loggedExercise{}
	current := -1
	for _, r := range rows {
		if r.TrainingExerciseID != current {
			current = r.TrainingExerciseID
			out = append(out, loggedExercise{
				ExerciseID:   r.ExerciseID,
				ExerciseName: r.ExerciseName,
				TargetMuscle: r.TargetMuscle,
				OrderIndex:   r.OrderIndex,
				Sets:         []loggedSet{},
			})
		}
		if r.SetNumber == nil {
			continue
		}
		s := loggedSet{SetNumber: *r.SetNumber, WeightKG: r.WeightKG, Notes: r.Notes}
		if r.Reps != nil {
			s.Reps = *r.Reps
		}
		if r.Completed != nil {
			s.Completed = *r.Completed
		}
		last := &out[len(out)-1]
		last.Sets = append(last.Sets, s)
	}
	return out
}

// getTrainingSession returns one of the caller's sessions with every
// exercise and set.
// GET /api/training/sessions/:id
func (h *Handler) getTrainingSession(c *gin.Context) {
	id, ok := positiveParam(c, "id", "session id")
	if !ok {
		return
	}
	userID := c.GetInt("user_id")

	session, err := queryOne[trainingSessionRow](h.db, c,
		trainingSessionSelect+`
		 WHERE ts.id = @id AND ts.athlete_id = @userID
		 GROUP BY ts.id, p.title, ps.name`,
		pgx.NamedArgs{"id": id, "userID": userID})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch session")
		return
	}

	rows, err := queryMany[loggedSetRow](h.db, c,
		`SELECT te.id AS training_exercise_id, te.exercise_id, e.name AS exercise_name, e.target_muscle,
		        te.order_index, st.set_number, st.reps, st.weight_kg, st.completed, st.notes
		 FROM training_exercises te
		 JOIN exercises e ON e.id = te.exercise_id
		 LEFT JOIN training_sets st ON st.training_exercise_id = te.id
		 WHERE te.training_session_id = @id
		 ORDER BY te.order_index, te.id, st.set_number`,
		pgx.NamedArgs{"id": id})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":   session,
		"exercises": groupLoggedExercises(rows),
	})
}

// exerciseHistory is one exercise the athlete has logged at least once.
type exerciseHistory struct {
	ExerciseID    int       `json:"exercise_id"    db:"exercise_id"`
	ExerciseName  string    `json:"exercise_name"  db:"exercise_name"`
	TargetMuscle  *string   `json:"target_muscle"  db:"target_muscle"`
	SessionCount  int       `json:"session_count"  db:"session_count"`
	LastPerformed time.Time `json:"last_performed" db:"last_performed"`
}

// getExercisesWithHistory lists the exercises the caller has logged, most
// recently performed first. Feeds the progress picker.
// GET /api/training/exercises
func (h *Handler) getExercisesWithHistory(c *gin.Context) {
	history, err := queryMany[exerciseHistory](h.db, c,
		`SELECT e.id AS exercise_id, e.name AS exercise_name, e.target_muscle,
		        COUNT(DISTINCT ts.id)::int AS session_count,
		        MAX(ts.completed_at) AS last_performed
		 FROM training_exercises te
		 JOIN training_sessions ts ON ts.id = te.training_session_id
		 JOIN exercises e ON e.id = te.exercise_id
		 WHERE ts.athlete_id = @userID
		 GROUP BY e.id, e.name, e.target_muscle
		 ORDER BY last_performed DESC`,
		pgx.NamedArgs{"userID": c.GetInt("user_id")})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to fetch exercises")
		return
	}
	c.JSON(http.StatusOK, history)
}
