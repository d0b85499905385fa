package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/mockapi/internal/apperror"
	"github.com/sakif/mockapi/internal/model"
	"github.com/sakif/mockapi/internal/repository"
)

var _ repository.EndpointRepository = (*DB)(nil)

const endpointColumns = `id, project_id, name, method, path, response_data, status_code, headers, created_at, updated_at`

// emptyResponse is served for rows whose response_data is NULL.
var emptyResponse = json.RawMessage(`{}`)

// scanEndpoint reads one endpoint row and decodes its JSON columns.
// A stored payload that is not valid JSON is reported as an error rather
// than handed to callers.
func scanEndpoint(row rowScanner) (*model.Endpoint, error) {
	var (
		e        model.Endpoint
		method   string
		response sql.NullString
		headers  sql.NullString
	)
	if err := row.Scan(
		&e.ID, &e.ProjectID, &e.Name, &method, &e.Path,
		&response, &e.StatusCode, &headers,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Method = model.Method(method)

	e.Response = emptyResponse
	if response.Valid {
		if !json.Valid([]byte(response.String)) {
			return nil, fmt.Errorf("endpoint %s: stored response_data is not valid JSON", e.ID)
		}
		e.Response = json.RawMessage(response.String)
	}

	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &e.Headers); err != nil {
			return nil, fmt.Errorf("endpoint %s: decoding stored headers: %w", e.ID, err)
		}
	}

	return &e, nil
}

func encodeResponse(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func encodeHeaders(h map[string]string) (sql.NullString, error) {
	if len(h) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding headers: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// translateWriteError maps constraint failures onto the error taxonomy.
func translateWriteError(err error, projectID string, method model.Method, path string) error {
	switch {
	case isUniqueViolation(err):
		return apperror.Conflict(fmt.Sprintf(
			"an endpoint for %s already exists in project %s", model.RouteName(method, path), projectID))
	case isForeignKeyViolation(err):
		return apperror.NotFound("project", projectID)
	}
	return nil
}

// CreateEndpoint inserts endpoint, filling in its ID and timestamps.
// A second endpoint for the same (project, method, path) fails with
// apperror.ErrConflict; an unknown project fails with apperror.ErrNotFound.
func (db *DB) CreateEndpoint(ctx context.Context, endpoint *model.Endpoint) error {
	headers, err := encodeHeaders(endpoint.Headers)
	if err != nil {
		return fmt.Errorf("sqlite: creating endpoint: %w", err)
	}

	endpoint.ID = xid.New().String()
	now := time.Now().UTC()
	endpoint.CreatedAt = now
	endpoint.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO endpoints (`+endpointColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		endpoint.ID,
		endpoint.ProjectID,
		endpoint.Name,
		string(endpoint.Method),
		endpoint.Path,
		encodeResponse(endpoint.Response),
		endpoint.StatusCode,
		headers,
		endpoint.CreatedAt,
		endpoint.UpdatedAt,
	)
	if err != nil {
		if appErr := translateWriteError(err, endpoint.ProjectID, endpoint.Method, endpoint.Path); appErr != nil {
			return appErr
		}
		return fmt.Errorf("sqlite: creating endpoint: %w", err)
	}

	return nil
}

// GetEndpoint returns apperror.ErrNotFound unless the endpoint exists and
// belongs to projectID.
func (db *DB) GetEndpoint(ctx context.Context, projectID, id string) (*model.Endpoint, error) {
	endpoint, err := scanEndpoint(db.conn.QueryRowContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE id = ? AND project_id = ?`,
		id, projectID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("endpoint", id)
		}
		return nil, fmt.Errorf("sqlite: getting endpoint %s: %w", id, err)
	}
	return endpoint, nil
}

// FindEndpointByRoute is the exact-match lookup behind every mock request.
// The unique index on (project_id, method, path) serves it directly.
func (db *DB) FindEndpointByRoute(ctx context.Context, projectID string, method model.Method, path string) (*model.Endpoint, error) {
	endpoint, err := scanEndpoint(db.conn.QueryRowContext(ctx,
		`SELECT `+endpointColumns+`
		 FROM endpoints
		 WHERE project_id = ? AND method = ? AND path = ?`,
		projectID, string(method), path,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("endpoint", model.RouteName(method, path))
		}
		return nil, fmt.Errorf("sqlite: finding endpoint %s in project %s: %w",
			model.RouteName(method, path), projectID, err)
	}
	return endpoint, nil
}

// ListEndpoints returns the project's endpoints newest first. An unknown
// project simply has no endpoints.
func (db *DB) ListEndpoints(ctx context.Context, projectID string) ([]model.Endpoint, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+endpointColumns+`
		 FROM endpoints
		 WHERE project_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := []model.Endpoint{}
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning endpoint row: %w", err)
		}
		endpoints = append(endpoints, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating endpoints: %w", err)
	}

	return endpoints, nil
}

// UpdateEndpoint applies patch in one UPDATE scoped to the owning project
// and returns the stored row. Zero affected rows means the endpoint does
// not exist there.
func (db *DB) UpdateEndpoint(ctx context.Context, projectID, id string, patch model.EndpointPatch) (*model.Endpoint, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 9)

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Method != nil {
		sets = append(sets, "method = ?")
		args = append(args, string(*patch.Method))
	}
	if patch.Path != nil {
		sets = append(sets, "path = ?")
		args = append(args, *patch.Path)
	}
	if patch.Response != nil {
		sets = append(sets, "response_data = ?")
		args = append(args, encodeResponse(*patch.Response))
	}
	if patch.StatusCode != nil {
		sets = append(sets, "status_code = ?")
		args = append(args, *patch.StatusCode)
	}
	if patch.Headers != nil {
		headers, err := encodeHeaders(*patch.Headers)
		if err != nil {
			return nil, fmt.Errorf("sqlite: updating endpoint %s: %w", id, err)
		}
		sets = append(sets, "headers = ?")
		args = append(args, headers)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, projectID)

	result, err := db.conn.ExecContext(ctx,
		`UPDATE endpoints SET `+strings.Join(sets, ", ")+` WHERE id = ? AND project_id = ?`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict(fmt.Sprintf(
				"another endpoint with this method and path already exists in project %s", projectID))
		}
		return nil, fmt.Errorf("sqlite: updating endpoint %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("endpoint", id)
	}

	return db.GetEndpoint(ctx, projectID, id)
}

// DeleteEndpoint removes the endpoint if it belongs to projectID.
func (db *DB) DeleteEndpoint(ctx context.Context, projectID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM endpoints WHERE id = ? AND project_id = ?`,
		id, projectID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting endpoint %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("endpoint", id)
	}

	return nil
}
