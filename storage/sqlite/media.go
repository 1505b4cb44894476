// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
)

// MediaRepository stores media items in the media table and their
// descriptions in the media_fts full-text table, keyed by the same media_id.
// Both tables are always written and deleted in one transaction.
type MediaRepository struct {
	backend *Backend
	media   *Table
	fts     *Table
	joined  *Table
}

var _ storage.MediaRepository = (*MediaRepository)(nil)

// NewMediaRepository creates a media repository over the backend.
func NewMediaRepository(backend *Backend) *MediaRepository {
	return &MediaRepository{
		backend: backend,
		media: NewTable(backend, TableDef{
			Name:    mediaTable,
			Columns: mediaColumns,
			Schema:  mediaSchema,
		}),
		fts: NewTable(backend, TableDef{
			Name:    mediaFTSTable,
			Columns: mediaFTSColumns,
			Schema:  mediaSchema,
		}),
		joined: NewTable(backend, TableDef{
			Name:       mediaTable,
			Columns:    joinedMediaColumns,
			Schema:     mediaSchema,
			Qualified:  joinedMediaQualified,
			SelectFrom: joinedMediaSelect,
		}),
	}
}

// Close is a no-op; the backend owns the connection.
func (r *MediaRepository) Close() error {
	return nil
}

// AddMedia stores the item and its description in one transaction.
// The primary row goes first so a duplicate FileID stops the write
// before any description is stored; that case reports inserted=false.
// On success item.MediaID is set.
func (r *MediaRepository) AddMedia(ctx context.Context, item *core.MediaItem) (bool, core.MediaID, error) {
	if err := core.ValidateMediaItem(item); err != nil {
		return false, 0, fmt.Errorf("%w: %w", storage.ErrValidation, err)
	}
	fields := storage.Fields{
		"user_id":    int64(item.UserID),
		"media_type": string(item.Type),
		"file_id":    item.FileID,
	}
	if item.Caption != nil {
		fields["caption"] = *item.Caption
	}
	stmt, args, err := r.media.insertStatement(fields, false)
	if err != nil {
		return false, 0, err
	}

	var (
		inserted bool
		id       int64
	)
	err = r.backend.withTx(ctx, mediaTable, mediaSchema, func(tx querier) error {
		var err error
		inserted, id, err = execInsert(ctx, tx, stmt, args)
		if err != nil || !inserted {
			return err
		}
		_, _, err = execInsert(ctx, tx,
			"INSERT INTO media_fts (media_id, description) VALUES (?, ?)",
			[]any{id, item.Description})
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			r.backend.logger.Debug("duplicate media", "file_id", item.FileID, "user_id", item.UserID)
			return false, 0, nil
		}
		return false, 0, err
	}

	item.MediaID = core.MediaID(id)
	return inserted, item.MediaID, nil
}

// GetMedia returns items matching the query with their descriptions attached.
func (r *MediaRepository) GetMedia(ctx context.Context, q storage.Query) ([]*core.MediaItem, error) {
	q.WithColumnNames = true
	result, err := r.joined.Get(ctx, q)
	if err != nil {
		return nil, err
	}
	return itemsFromResult(result)
}

// GetMediaByFileID retrieves the item with the given FileID.
func (r *MediaRepository) GetMediaByFileID(ctx context.Context, fileID string) (*core.MediaItem, error) {
	items, err := r.GetMedia(ctx, storage.Query{Conditions: storage.Fields{"file_id": fileID}})
	if err != nil {
		return nil, err
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("%w: file id %q", storage.ErrNotFound, fileID)
	}
	return items[0], nil
}

// DeleteMedia removes matching items and their descriptions in one transaction,
// descriptions first. Deleting by description is rejected: content matches
// are too ambiguous to serve as a delete key.
func (r *MediaRepository) DeleteMedia(ctx context.Context, conditions storage.Fields) (bool, error) {
	if len(conditions) == 0 {
		return false, fmt.Errorf("%w: no conditions provided for delete", storage.ErrValidation)
	}
	if _, ok := conditions["description"]; ok {
		return false, fmt.Errorf("%w: deleting by description is not supported", storage.ErrValidation)
	}
	if err := storage.ValidateColumns(mediaColumns, conditions); err != nil {
		return false, err
	}

	where, args := plainWhere(conditions)
	var deleted bool
	err := r.backend.withTx(ctx, mediaTable, mediaSchema, func(tx querier) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM media_fts WHERE media_id IN (SELECT media_id FROM media"+where+")",
			args...); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM media"+where, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

// CountMedia counts items matching the conditions; no conditions counts every item.
func (r *MediaRepository) CountMedia(ctx context.Context, conditions storage.Fields) (int, error) {
	if len(conditions) == 0 {
		return r.media.Count(ctx)
	}
	return r.media.CountWhere(ctx, conditions)
}

// SearchByDescription runs a ranked prefix search over one user's descriptions.
//
// Every whitespace-separated term becomes a prefix term and the terms are
// ORed together, so "red ca" matches "red dog" and "blue cat". Results are
// ordered by FTS5 rank, best first, with media_id breaking ties. Empty text
// returns all of the user's items in media_id order.
//
// total is counted over the same predicate and covers every match, so a
// caller can page with any offset up to it. An offset without a limit
// skips rows and returns the rest.
func (r *MediaRepository) SearchByDescription(ctx context.Context, userID core.UserID, text string, limit, offset int) ([]*core.MediaItem, int, error) {
	if limit < 0 || offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative limit or offset", storage.ErrValidation)
	}

	var (
		where   string
		args    []any
		orderBy string
	)
	expr := matchExpression(text)
	switch {
	case expr != "":
		where = " WHERE media_fts MATCH ? AND media.user_id = ?"
		args = []any{expr, int64(userID)}
		orderBy = " ORDER BY media_fts.rank, media.media_id"
	case strings.TrimSpace(text) != "":
		// Only punctuation: nothing can match.
		return nil, 0, nil
	default:
		where = " WHERE media.user_id = ?"
		args = []any{int64(userID)}
		orderBy = " ORDER BY media.media_id"
	}

	page := joinedMediaSelect + where + orderBy
	pageArgs := append([]any{}, args...)
	switch {
	case limit > 0:
		page += " LIMIT ? OFFSET ?"
		pageArgs = append(pageArgs, limit, offset)
	case offset > 0:
		page += " LIMIT -1 OFFSET ?"
		pageArgs = append(pageArgs, offset)
	}

	var (
		total  int
		result storage.Result
	)
	err := r.backend.withTx(ctx, mediaTable, mediaSchema, func(tx querier) error {
		if err := tx.QueryRowContext(ctx, countStatement(joinedMediaSelect)+where, args...).Scan(&total); err != nil {
			return err
		}
		var err error
		result, err = queryRows(ctx, tx, page, pageArgs, true)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	items, err := itemsFromResult(result)
	if err != nil {
		return nil, 0, err
	}
	r.backend.logger.Debug("searched media",
		"user_id", userID,
		"query", expr,
		"returned", len(items),
		"total", total)
	return items, total, nil
}

// matchExpression builds an FTS5 query from free text: each term is quoted,
// marked as a prefix and ORed with the others. Terms without a letter or
// digit are dropped since the tokenizer would discard them anyway.
func matchExpression(text string) string {
	var terms []string
	for _, term := range strings.Fields(text) {
		if !strings.ContainsFunc(term, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsNumber(r)
		}) {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " OR ")
}

func itemsFromResult(result storage.Result) ([]*core.MediaItem, error) {
	items := make([]*core.MediaItem, 0, result.Len())
	for _, row := range result.Rows {
		t, err := core.ParseMediaType(asString(row.Get("media_type")))
		if err != nil {
			return nil, fmt.Errorf("%w: stored media row: %w", storage.ErrFatalStorage, err)
		}
		items = append(items, &core.MediaItem{
			MediaID:     core.MediaID(asInt64(row.Get("media_id"))),
			UserID:      core.UserID(asInt64(row.Get("user_id"))),
			Type:        t,
			FileID:      asString(row.Get("file_id")),
			Caption:     asOptionalString(row.Get("caption")),
			Description: asString(row.Get("description")),
		})
	}
	return items, nil
}
