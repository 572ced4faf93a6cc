package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type userRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`               // "respondent" or "admin"
	Password string `json:"password,omitempty"` // plaintext optional, hashed on write
}

// POST /users/bulk: JSON array of users, upserted by id.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array", 400)
			return
		}
		if len(rows) == 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{"upserted": 0})
			return
		}
		n, err := upsertUsers(r.Context(), db, rows)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"upserted": n})
	}
}

// GET /users?role=
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(), `SELECT id,username,role FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(), `SELECT id,username,role FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			out = append(out, u)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func upsertUsers(ctx context.Context, db *sql.DB, rows []userRow) (int, error) {
	n := 0
	for _, u := range rows {
		u.ID = strings.TrimSpace(u.ID)
		u.Username = strings.TrimSpace(u.Username)
		if u.ID == "" || u.Username == "" {
			continue
		}
		if u.Role != "admin" {
			u.Role = "respondent"
		}
		hash := ""
		if u.Password != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return n, err
			}
			hash = string(h)
		}
		var err error
		if hash == "" {
			// keep the existing hash when no password was supplied
			_, err = db.ExecContext(ctx, `INSERT INTO users (id,username,role,pass_hash)
				VALUES ($1,$2,$3,'')
				ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, role=EXCLUDED.role`,
				u.ID, u.Username, u.Role)
		} else {
			_, err = db.ExecContext(ctx, `INSERT INTO users (id,username,role,pass_hash)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, role=EXCLUDED.role, pass_hash=EXCLUDED.pass_hash`,
				u.ID, u.Username, u.Role, hash)
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
