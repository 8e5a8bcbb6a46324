package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrOptionNotFound reports a vote against an option id the poll does
// not carry.
var ErrOptionNotFound = errors.New("poll option not found")

const pollColumns = `id, project_id, created_by, question, deadline, is_active, created_at`

func (s *PostgresStore) GetPoll(ctx context.Context, pollID string) (Poll, error) {
	var item Poll
	err := s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id=$1`, pollID).
		Scan(&item.ID, &item.ProjectID, &item.CreatedBy, &item.Question, &item.Deadline, &item.IsActive, &item.CreatedAt)
	if err != nil {
		return Poll{}, err
	}
	if err := s.attachPollDetails(ctx, []*Poll{&item}); err != nil {
		return Poll{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListPolls(ctx context.Context, projectID string) ([]Poll, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		WHERE project_id=$1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()

	items := make([]Poll, 0)
	for rows.Next() {
		var item Poll
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.CreatedBy, &item.Question, &item.Deadline, &item.IsActive, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate polls: %w", err)
	}

	refs := make([]*Poll, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := s.attachPollDetails(ctx, refs); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) attachPollDetails(ctx context.Context, polls []*Poll) error {
	if len(polls) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(polls))
	args := make([]any, 0, len(polls))
	byID := make(map[string]*Poll, len(polls))
	for i, p := range polls {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, p.ID)
		p.Options = []PollOption{}
		p.Voters = []string{}
		byID[p.ID] = p
	}
	in := strings.Join(placeholders, ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT poll_id, option_id, text, votes FROM poll_options
		WHERE poll_id IN (`+in+`)
		ORDER BY position
	`, args...)
	if err != nil {
		return fmt.Errorf("list poll options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pollID string
		var option PollOption
		if err := rows.Scan(&pollID, &option.OptionID, &option.Text, &option.Votes); err != nil {
			return fmt.Errorf("scan poll option: %w", err)
		}
		if p, ok := byID[pollID]; ok {
			p.Options = append(p.Options, option)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate poll options: %w", err)
	}

	voteRows, err := s.db.QueryContext(ctx, `
		SELECT poll_id, user_id FROM poll_votes
		WHERE poll_id IN (`+in+`)
		ORDER BY voted_at
	`, args...)
	if err != nil {
		return fmt.Errorf("list poll voters: %w", err)
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var pollID, userID string
		if err := voteRows.Scan(&pollID, &userID); err != nil {
			return fmt.Errorf("scan poll voter: %w", err)
		}
		if p, ok := byID[pollID]; ok {
			p.Voters = append(p.Voters, userID)
		}
	}
	if err := voteRows.Err(); err != nil {
		return fmt.Errorf("iterate poll voters: %w", err)
	}
	return nil
}

// InsertPoll writes the poll with its options plus the activity entry
// and the fan-out notifications in one transaction.
func (s *PostgresStore) InsertPoll(ctx context.Context, poll Poll, activity ActivityLogEntry, notifications []Notification) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO polls (id, project_id, created_by, question, deadline, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, poll.ID, poll.ProjectID, poll.CreatedBy, poll.Question, poll.Deadline, poll.IsActive)
		if err != nil {
			return fmt.Errorf("insert poll: %w", err)
		}
		for i, option := range poll.Options {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO poll_options (poll_id, option_id, text, position, votes)
				VALUES ($1, $2, $3, $4, 0)
			`, poll.ID, option.OptionID, option.Text, i)
			if err != nil {
				return fmt.Errorf("insert poll option: %w", err)
			}
		}
		if err := insertActivityTx(ctx, tx, activity); err != nil {
			return err
		}
		for _, n := range notifications {
			if err := insertNotificationTx(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordVote registers a single vote and bumps the option's tally in the
// same transaction. A second vote by the same user hits the uniqueness
// constraint and returns ErrDuplicate; an unknown option id returns
// ErrOptionNotFound.
func (s *PostgresStore) RecordVote(ctx context.Context, pollID, userID, optionID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO poll_votes (poll_id, user_id, option_id)
			VALUES ($1, $2, $3)
		`, pollID, userID, optionID)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE poll_options SET votes = votes + 1
			WHERE poll_id=$1 AND option_id=$2
		`, pollID, optionID)
		if err != nil {
			return fmt.Errorf("bump vote tally: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("bump vote tally rows: %w", err)
		}
		if affected == 0 {
			return ErrOptionNotFound
		}
		return nil
	})
}

func (s *PostgresStore) ClosePoll(ctx context.Context, pollID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE polls SET is_active=FALSE WHERE id=$1`, pollID)
	if err != nil {
		return fmt.Errorf("close poll: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close poll rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
