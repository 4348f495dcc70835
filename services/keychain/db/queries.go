package db

import (
	"context"
)

type Credential struct {
	Platform       string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      int64
	AdditionalData string
	UpdatedAt      int64
}

const getCredential = `
SELECT platform, access_token, refresh_token, expires_at, additional_data, updated_at
FROM credentials WHERE platform = ?
`

func (q *Queries) GetCredential(ctx context.Context, platform string) (Credential, error) {
	row := q.db.QueryRowContext(ctx, getCredential, platform)
	var c Credential
	err := row.Scan(
		&c.Platform,
		&c.AccessToken,
		&c.RefreshToken,
		&c.ExpiresAt,
		&c.AdditionalData,
		&c.UpdatedAt,
	)
	return c, err
}

const upsertCredential = `
INSERT INTO credentials (platform, access_token, refresh_token, expires_at, additional_data, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (platform) DO UPDATE SET
    access_token = excluded.access_token,
    refresh_token = excluded.refresh_token,
    expires_at = excluded.expires_at,
    additional_data = excluded.additional_data,
    updated_at = excluded.updated_at
`

type UpsertCredentialParams struct {
	Platform       string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      int64
	AdditionalData string
	UpdatedAt      int64
}

// full-row replace, credentials are never partially patched
func (q *Queries) UpsertCredential(ctx context.Context, arg UpsertCredentialParams) error {
	_, err := q.db.ExecContext(ctx, upsertCredential,
		arg.Platform,
		arg.AccessToken,
		arg.RefreshToken,
		arg.ExpiresAt,
		arg.AdditionalData,
		arg.UpdatedAt,
	)
	return err
}

const deleteCredential = `
DELETE FROM credentials WHERE platform = ?
`

func (q *Queries) DeleteCredential(ctx context.Context, platform string) error {
	_, err := q.db.ExecContext(ctx, deleteCredential, platform)
	return err
}

const getExpiringBefore = `
SELECT platform, access_token, refresh_token, expires_at, additional_data, updated_at
FROM credentials WHERE expires_at != 0 AND expires_at < ?
`

func (q *Queries) GetExpiringBefore(ctx context.Context, expiresAt int64) ([]Credential, error) {
	rows, err := q.db.QueryContext(ctx, getExpiringBefore, expiresAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Credential
	for rows.Next() {
		var c Credential
		err := rows.Scan(
			&c.Platform,
			&c.AccessToken,
			&c.RefreshToken,
			&c.ExpiresAt,
			&c.AdditionalData,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const listCredentials = `
SELECT platform, access_token, refresh_token, expires_at, additional_data, updated_at
FROM credentials
`

func (q *Queries) ListCredentials(ctx context.Context) ([]Credential, error) {
	rows, err := q.db.QueryContext(ctx, listCredentials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Credential
	for rows.Next() {
		var c Credential
		err := rows.Scan(
			&c.Platform,
			&c.AccessToken,
			&c.RefreshToken,
			&c.ExpiresAt,
			&c.AdditionalData,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
