package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// CreateComment adds a comment to a ticket.
func (s *Store) CreateComment(ticketID string, author model.CommentAuthor, bodyMD string, metadataJSON *string) (*model.Comment, error) {
	if _, err := s.GetTicket(ticketID); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	var meta any
	if metadataJSON != nil {
		meta = *metadataJSON
	}
	_, err := s.db.Exec(
		`INSERT INTO comments (id, ticket_id, author_type, body_md, metadata_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ticketID, string(author), bodyMD, meta, now,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert comment", err)
	}
	return &model.Comment{ID: id, TicketID: ticketID, Author: author, BodyMD: bodyMD, MetadataJSON: metadataJSON, CreatedAt: now}, nil
}

// ListCommentsForTicket returns a ticket's comment log in creation order.
func (s *Store) ListCommentsForTicket(ticketID string) ([]model.Comment, error) {
	rows, err := s.db.Query(
		`SELECT id, ticket_id, author_type, body_md, metadata_json, created_at FROM comments WHERE ticket_id = ? ORDER BY created_at ASC`,
		ticketID,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list comments", err)
	}
	defer rows.Close()

	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		var meta sql.NullString
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Author, &c.BodyMD, &meta, &c.CreatedAt); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan comment", err)
		}
		if meta.Valid {
			c.MetadataJSON = &meta.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
