package dbgen

import "context"

const createUser = `
INSERT INTO users (email, name, password_hash, role)
VALUES (?, ?, ?, ?)
`

type CreateUserParams struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	result, err := q.db.ExecContext(ctx, createUser, arg.Email, arg.Name, arg.PasswordHash, arg.Role)
	if err != nil {
		return User{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

const getUserByEmail = `
SELECT id, email, name, password_hash, role, created_at
FROM users
WHERE email = ? COLLATE NOCASE
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.Name, &i.PasswordHash, &i.Role, &i.CreatedAt)
	return i, err
}

const getUserByID = `
SELECT id, email, name, password_hash, role, created_at
FROM users
WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(&i.ID, &i.Email, &i.Name, &i.PasswordHash, &i.Role, &i.CreatedAt)
	return i, err
}
