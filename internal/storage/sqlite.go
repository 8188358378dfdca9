// ABOUTME: SQLite storage implementation using modernc.org/sqlite (pure Go)
// ABOUTME: Provides podcast, episode, action queue, and sync-state persistence

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castsync/castsync/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite storage instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists. 0700: listening history is personal data.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS podcasts (
			id TEXT PRIMARY KEY,
			feed_url TEXT UNIQUE NOT NULL,
			title TEXT,
			author TEXT,
			description TEXT,
			image_url TEXT,
			categories TEXT NOT NULL DEFAULT '[]',
			subscribed INTEGER NOT NULL DEFAULT 1,
			needs_sync INTEGER NOT NULL DEFAULT 0,
			last_synced_at TIMESTAMP,
			last_updated TIMESTAMP,
			etag TEXT,
			last_modified TEXT,
			last_error TEXT,
			error_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_podcasts_feed_url ON podcasts(feed_url);

		CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			podcast_id TEXT NOT NULL REFERENCES podcasts(id) ON DELETE CASCADE,
			guid TEXT NOT NULL,
			title TEXT,
			description TEXT,
			summary TEXT,
			audio_url TEXT NOT NULL,
			audio_size INTEGER NOT NULL DEFAULT 0,
			duration INTEGER,
			published_at TIMESTAMP,
			image_url TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			played INTEGER NOT NULL DEFAULT 0,
			played_at TIMESTAMP,
			download_state TEXT NOT NULL DEFAULT 'none',
			created_at TIMESTAMP NOT NULL,
			UNIQUE(podcast_id, guid)
		);

		CREATE INDEX IF NOT EXISTS idx_episodes_podcast_id ON episodes(podcast_id);
		CREATE INDEX IF NOT EXISTS idx_episodes_played ON episodes(played);
		CREATE INDEX IF NOT EXISTS idx_episodes_published_at ON episodes(published_at);

		CREATE TABLE IF NOT EXISTS episode_actions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			podcast_id TEXT NOT NULL REFERENCES podcasts(id) ON DELETE CASCADE,
			episode_id TEXT REFERENCES episodes(id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			duration INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			timestamp TIMESTAMP NOT NULL,
			sync_attempts INTEGER NOT NULL DEFAULT 0,
			last_sync_error TEXT,
			synced INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_actions_synced ON episode_actions(synced);
		CREATE INDEX IF NOT EXISTS idx_actions_episode_id ON episode_actions(episode_id);

		CREATE TABLE IF NOT EXISTS sync_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			is_syncing INTEGER NOT NULL DEFAULT 0,
			last_subscription_sync TIMESTAMP,
			last_progress_sync TIMESTAMP,
			last_full_sync TIMESTAMP,
			sync_attempts INTEGER NOT NULL DEFAULT 0,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			last_result TEXT NOT NULL DEFAULT '',
			last_error TEXT
		);

		CREATE TABLE IF NOT EXISTS server_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			server_url TEXT NOT NULL,
			username TEXT NOT NULL,
			password TEXT NOT NULL,
			device_id TEXT NOT NULL,
			session_token TEXT,
			created_at TIMESTAMP NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Podcast operations

const podcastColumns = `id, feed_url, title, author, description, image_url, categories,
	subscribed, needs_sync, last_synced_at, last_updated, etag, last_modified,
	last_error, error_count, created_at`

// CreatePodcast stores a new podcast.
func (s *SQLiteStore) CreatePodcast(p *models.Podcast) error {
	cats, err := marshalCategories(p.Categories)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO podcasts (` + podcastColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		p.ID, p.FeedURL, p.Title, p.Author, p.Description, p.ImageURL, cats,
		boolToInt(p.Subscribed), boolToInt(p.NeedsSync),
		timeToSQL(p.LastSyncedAt), timeToSQL(p.LastUpdated),
		p.ETag, p.LastModified, p.LastError, p.ErrorCount, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert podcast: %w", err)
	}
	return nil
}

// GetPodcast retrieves a podcast by ID.
func (s *SQLiteStore) GetPodcast(id string) (*models.Podcast, error) {
	query := `SELECT ` + podcastColumns + ` FROM podcasts WHERE id = ?`
	return scanPodcast(s.db.QueryRow(query, id))
}

// GetPodcastByFeedURL finds a podcast by its feed URL.
func (s *SQLiteStore) GetPodcastByFeedURL(feedURL string) (*models.Podcast, error) {
	query := `SELECT ` + podcastColumns + ` FROM podcasts WHERE feed_url = ?`
	return scanPodcast(s.db.QueryRow(query, feedURL))
}

// ListPodcasts returns podcasts sorted by creation date (newest first).
func (s *SQLiteStore) ListPodcasts(subscribedOnly bool) ([]*models.Podcast, error) {
	query := `SELECT ` + podcastColumns + ` FROM podcasts`
	if subscribedOnly {
		query += ` WHERE subscribed = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []*models.Podcast
	for rows.Next() {
		p, err := scanPodcastFromRows(rows)
		if err != nil {
			return nil, err
		}
		podcasts = append(podcasts, p)
	}
	return podcasts, rows.Err()
}

// UpdatePodcast updates an existing podcast.
func (s *SQLiteStore) UpdatePodcast(p *models.Podcast) error {
	cats, err := marshalCategories(p.Categories)
	if err != nil {
		return err
	}
	query := `
		UPDATE podcasts SET
			feed_url = ?, title = ?, author = ?, description = ?, image_url = ?,
			categories = ?, subscribed = ?, needs_sync = ?, last_synced_at = ?,
			last_updated = ?, etag = ?, last_modified = ?, last_error = ?, error_count = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		p.FeedURL, p.Title, p.Author, p.Description, p.ImageURL, cats,
		boolToInt(p.Subscribed), boolToInt(p.NeedsSync),
		timeToSQL(p.LastSyncedAt), timeToSQL(p.LastUpdated),
		p.ETag, p.LastModified, p.LastError, p.ErrorCount,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update podcast: %w", err)
	}
	return requireRow(result, "podcast", p.ID)
}

// DeletePodcast removes a podcast and all its episodes and actions (cascade).
func (s *SQLiteStore) DeletePodcast(id string) error {
	result, err := s.db.Exec("DELETE FROM podcasts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete podcast: %w", err)
	}
	return requireRow(result, "podcast", id)
}

// UpdatePodcastFetchState records a successful fetch and clears errors.
func (s *SQLiteStore) UpdatePodcastFetchState(id string, etag, lastModified *string, updatedAt time.Time) error {
	query := `
		UPDATE podcasts SET
			etag = ?, last_modified = ?, last_updated = ?,
			last_error = NULL, error_count = 0
		WHERE id = ?
	`
	result, err := s.db.Exec(query, etag, lastModified, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update podcast fetch state: %w", err)
	}
	return requireRow(result, "podcast", id)
}

// UpdatePodcastError records a fetch/merge error for a podcast.
func (s *SQLiteStore) UpdatePodcastError(id string, errMsg string) error {
	query := `UPDATE podcasts SET last_error = ?, error_count = error_count + 1 WHERE id = ?`
	result, err := s.db.Exec(query, errMsg, id)
	if err != nil {
		return fmt.Errorf("update podcast error: %w", err)
	}
	return requireRow(result, "podcast", id)
}

// MarkPodcastSynced clears needs_sync after a server acknowledgment.
func (s *SQLiteStore) MarkPodcastSynced(id string, at time.Time) error {
	query := `UPDATE podcasts SET needs_sync = 0, last_synced_at = ? WHERE id = ?`
	result, err := s.db.Exec(query, at, id)
	if err != nil {
		return fmt.Errorf("mark podcast synced: %w", err)
	}
	return requireRow(result, "podcast", id)
}

// Episode operations

const episodeColumns = `id, podcast_id, guid, title, description, summary, audio_url,
	audio_size, duration, published_at, image_url, position, played, played_at,
	download_state, created_at`

// CreateEpisode stores a new episode.
func (s *SQLiteStore) CreateEpisode(e *models.Episode) error {
	query := `
		INSERT INTO episodes (` + episodeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		e.ID, e.PodcastID, e.GUID, e.Title, e.Description, e.Summary, e.AudioURL,
		e.AudioSize, e.Duration, timeToSQL(e.PublishedAt), e.ImageURL,
		e.Position, boolToInt(e.Played), timeToSQL(e.PlayedAt),
		e.DownloadState, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// GetEpisode retrieves an episode by ID.
func (s *SQLiteStore) GetEpisode(id string) (*models.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE id = ?`
	return scanEpisode(s.db.QueryRow(query, id))
}

// GetEpisodeByKey looks up an episode by its (podcast, guid) identity,
// returning nil when no such episode exists.
func (s *SQLiteStore) GetEpisodeByKey(podcastID, guid string) (*models.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE podcast_id = ? AND guid = ?`
	var e models.Episode
	var played int
	var publishedAt, playedAt sql.NullTime
	err := s.db.QueryRow(query, podcastID, guid).Scan(
		&e.ID, &e.PodcastID, &e.GUID, &e.Title, &e.Description, &e.Summary,
		&e.AudioURL, &e.AudioSize, &e.Duration, &publishedAt, &e.ImageURL,
		&e.Position, &played, &playedAt, &e.DownloadState, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	e.Played = played == 1
	if publishedAt.Valid {
		e.PublishedAt = &publishedAt.Time
	}
	if playedAt.Valid {
		e.PlayedAt = &playedAt.Time
	}
	return &e, nil
}

// ListEpisodes returns episodes matching the filter, newest first.
func (s *SQLiteStore) ListEpisodes(filter *EpisodeFilter) ([]*models.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`

	var conditions []string
	var args []interface{}

	if filter != nil {
		if filter.PodcastID != nil {
			conditions = append(conditions, "podcast_id = ?")
			args = append(args, *filter.PodcastID)
		}
		if filter.UnplayedOnly != nil && *filter.UnplayedOnly {
			conditions = append(conditions, "played = 0")
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY published_at DESC, created_at DESC"

	if filter != nil && filter.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*models.Episode
	for rows.Next() {
		e, err := scanEpisodeFromRows(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// UpdateEpisodeRemote overwrites remote-derived fields only. Playback
// position, played flag, and download state are deliberately not in the
// SET list.
func (s *SQLiteStore) UpdateEpisodeRemote(e *models.Episode) error {
	query := `
		UPDATE episodes SET
			title = ?, description = ?, summary = ?, audio_url = ?,
			audio_size = ?, duration = ?, published_at = ?, image_url = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		e.Title, e.Description, e.Summary, e.AudioURL,
		e.AudioSize, e.Duration, timeToSQL(e.PublishedAt), e.ImageURL,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return requireRow(result, "episode", e.ID)
}

// UpdateEpisodeProgress overwrites local-only playback fields only.
func (s *SQLiteStore) UpdateEpisodeProgress(id string, position int, played bool, playedAt *time.Time) error {
	query := `UPDATE episodes SET position = ?, played = ?, played_at = ? WHERE id = ?`
	result, err := s.db.Exec(query, position, boolToInt(played), timeToSQL(playedAt), id)
	if err != nil {
		return fmt.Errorf("update episode progress: %w", err)
	}
	return requireRow(result, "episode", id)
}

// SetEpisodeDownloadState updates the download state field.
func (s *SQLiteStore) SetEpisodeDownloadState(id, state string) error {
	result, err := s.db.Exec(`UPDATE episodes SET download_state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("set download state: %w", err)
	}
	return requireRow(result, "episode", id)
}

// CountUnplayed counts unplayed episodes, optionally filtered by podcast.
func (s *SQLiteStore) CountUnplayed(podcastID *string) (int, error) {
	var count int
	var err error
	if podcastID != nil {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM episodes WHERE played = 0 AND podcast_id = ?`, *podcastID).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM episodes WHERE played = 0`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count unplayed episodes: %w", err)
	}
	return count, nil
}

// Action queue operations

const actionColumns = `id, type, podcast_id, episode_id, position, duration, completed,
	timestamp, sync_attempts, last_sync_error, synced, created_at`

// CreateAction stores a new pending action.
func (s *SQLiteStore) CreateAction(a *models.EpisodeAction) error {
	query := `
		INSERT INTO episode_actions (` + actionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		a.ID, a.Type, a.PodcastID, a.EpisodeID, a.Position, a.Duration,
		boolToInt(a.Completed), a.Timestamp, a.SyncAttempts, a.LastSyncError,
		boolToInt(a.Synced), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// GetPendingActionForEpisode returns the unsynced play action for an
// episode, or nil when none is queued.
func (s *SQLiteStore) GetPendingActionForEpisode(episodeID string) (*models.EpisodeAction, error) {
	query := `SELECT ` + actionColumns + ` FROM episode_actions
		WHERE episode_id = ? AND type = ? AND synced = 0`
	a, err := scanAction(s.db.QueryRow(query, episodeID, models.ActionPlay))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAction rewrites a queued action's mutable fields in place.
func (s *SQLiteStore) UpdateAction(a *models.EpisodeAction) error {
	query := `
		UPDATE episode_actions SET
			position = ?, duration = ?, completed = ?, timestamp = ?,
			sync_attempts = ?, last_sync_error = ?, synced = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		a.Position, a.Duration, boolToInt(a.Completed), a.Timestamp,
		a.SyncAttempts, a.LastSyncError, boolToInt(a.Synced),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	return requireRow(result, "action", a.ID)
}

// ListPendingActions returns unsynced actions in creation order.
func (s *SQLiteStore) ListPendingActions(limit int) ([]*models.EpisodeAction, error) {
	query := `SELECT ` + actionColumns + ` FROM episode_actions
		WHERE synced = 0 ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query pending actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.EpisodeAction
	for rows.Next() {
		a, err := scanActionFromRows(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// MarkActionsSynced flags the given actions as acknowledged.
func (s *SQLiteStore) MarkActionsSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE episode_actions SET synced = 1, last_sync_error = NULL
		WHERE id IN (` + placeholders(len(ids)) + `)`
	_, err := s.db.Exec(query, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("mark actions synced: %w", err)
	}
	return nil
}

// RecordActionFailure bumps sync_attempts and stores the error; the actions
// stay pending for the next cycle.
func (s *SQLiteStore) RecordActionFailure(ids []string, errMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE episode_actions SET sync_attempts = sync_attempts + 1, last_sync_error = ?
		WHERE id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{errMsg}, stringArgs(ids)...)
	_, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("record action failure: %w", err)
	}
	return nil
}

// DeleteSyncedActions prunes acknowledged actions.
func (s *SQLiteStore) DeleteSyncedActions() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM episode_actions WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("delete synced actions: %w", err)
	}
	return result.RowsAffected()
}

// GetQueueStats summarizes the action queue.
func (s *SQLiteStore) GetQueueStats() (*QueueStats, error) {
	var stats QueueStats
	query := `
		SELECT
			SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN synced = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN synced = 0 AND sync_attempts > 0 THEN 1 ELSE 0 END)
		FROM episode_actions
	`
	var pending, synced, failing sql.NullInt64
	if err := s.db.QueryRow(query).Scan(&pending, &synced, &failing); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	stats.Pending = int(pending.Int64)
	stats.Synced = int(synced.Int64)
	stats.Failing = int(failing.Int64)
	return &stats, nil
}

// Singleton rows

// GetSyncState returns the singleton sync state, creating the default row
// on first access.
func (s *SQLiteStore) GetSyncState() (*models.SyncState, error) {
	query := `
		SELECT is_syncing, last_subscription_sync, last_progress_sync, last_full_sync,
			sync_attempts, consecutive_failures, last_result, last_error
		FROM sync_state WHERE id = 1
	`
	var st models.SyncState
	var isSyncing int
	var subSync, progSync, fullSync sql.NullTime
	err := s.db.QueryRow(query).Scan(
		&isSyncing, &subSync, &progSync, &fullSync,
		&st.SyncAttempts, &st.ConsecutiveFailures, &st.LastResult, &st.LastError,
	)
	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(`INSERT INTO sync_state (id) VALUES (1)`); err != nil {
			return nil, fmt.Errorf("create sync state: %w", err)
		}
		return &models.SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sync state: %w", err)
	}
	st.IsSyncing = isSyncing == 1
	if subSync.Valid {
		st.LastSubscriptionSync = &subSync.Time
	}
	if progSync.Valid {
		st.LastProgressSync = &progSync.Time
	}
	if fullSync.Valid {
		st.LastFullSync = &fullSync.Time
	}
	return &st, nil
}

// UpdateSyncState writes the singleton sync state row.
func (s *SQLiteStore) UpdateSyncState(st *models.SyncState) error {
	query := `
		INSERT INTO sync_state (id, is_syncing, last_subscription_sync, last_progress_sync,
			last_full_sync, sync_attempts, consecutive_failures, last_result, last_error)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_syncing = excluded.is_syncing,
			last_subscription_sync = excluded.last_subscription_sync,
			last_progress_sync = excluded.last_progress_sync,
			last_full_sync = excluded.last_full_sync,
			sync_attempts = excluded.sync_attempts,
			consecutive_failures = excluded.consecutive_failures,
			last_result = excluded.last_result,
			last_error = excluded.last_error
	`
	_, err := s.db.Exec(query,
		boolToInt(st.IsSyncing),
		timeToSQL(st.LastSubscriptionSync), timeToSQL(st.LastProgressSync),
		timeToSQL(st.LastFullSync), st.SyncAttempts, st.ConsecutiveFailures,
		st.LastResult, st.LastError,
	)
	if err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	return nil
}

// GetServerConfig returns the server configuration, or nil when the user
// has not logged in yet.
func (s *SQLiteStore) GetServerConfig() (*models.ServerConfig, error) {
	query := `SELECT server_url, username, password, device_id, session_token, created_at
		FROM server_config WHERE id = 1`
	var c models.ServerConfig
	err := s.db.QueryRow(query).Scan(
		&c.ServerURL, &c.Username, &c.Password, &c.DeviceID, &c.SessionToken, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan server config: %w", err)
	}
	return &c, nil
}

// SaveServerConfig writes the singleton server configuration row.
func (s *SQLiteStore) SaveServerConfig(c *models.ServerConfig) error {
	query := `
		INSERT INTO server_config (id, server_url, username, password, device_id, session_token, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_url = excluded.server_url,
			username = excluded.username,
			password = excluded.password,
			device_id = excluded.device_id,
			session_token = excluded.session_token
	`
	_, err := s.db.Exec(query,
		c.ServerURL, c.Username, c.Password, c.DeviceID, c.SessionToken, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save server config: %w", err)
	}
	return nil
}

// Statistics

// GetPodcastStats retrieves per-podcast library statistics.
func (s *SQLiteStore) GetPodcastStats() ([]PodcastStatsRow, error) {
	query := `
		SELECT p.id, p.feed_url, p.title, p.last_updated, p.error_count, p.last_error,
			   COUNT(e.id) as episode_count,
			   SUM(CASE WHEN e.played = 0 THEN 1 ELSE 0 END) as unplayed_count
		FROM podcasts p
		LEFT JOIN episodes e ON p.id = e.podcast_id
		WHERE p.subscribed = 1
		GROUP BY p.id
		ORDER BY p.created_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query podcast stats: %w", err)
	}
	defer rows.Close()

	var stats []PodcastStatsRow
	for rows.Next() {
		var row PodcastStatsRow
		var lastUpdated sql.NullTime
		var unplayed sql.NullInt64
		if err := rows.Scan(
			&row.PodcastID, &row.FeedURL, &row.Title, &lastUpdated,
			&row.ErrorCount, &row.LastError, &row.EpisodeCount, &unplayed,
		); err != nil {
			return nil, fmt.Errorf("scan podcast stats: %w", err)
		}
		if lastUpdated.Valid {
			row.LastUpdated = &lastUpdated.Time
		}
		if unplayed.Valid {
			row.UnplayedCount = int(unplayed.Int64)
		}
		stats = append(stats, row)
	}
	return stats, rows.Err()
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPodcastFrom(r rowScanner) (*models.Podcast, error) {
	var p models.Podcast
	var cats string
	var subscribed, needsSync int
	var lastSynced, lastUpdated sql.NullTime
	if err := r.Scan(
		&p.ID, &p.FeedURL, &p.Title, &p.Author, &p.Description, &p.ImageURL, &cats,
		&subscribed, &needsSync, &lastSynced, &lastUpdated,
		&p.ETag, &p.LastModified, &p.LastError, &p.ErrorCount, &p.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("podcast not found")
		}
		return nil, fmt.Errorf("scan podcast: %w", err)
	}
	p.Subscribed = subscribed == 1
	p.NeedsSync = needsSync == 1
	if lastSynced.Valid {
		p.LastSyncedAt = &lastSynced.Time
	}
	if lastUpdated.Valid {
		p.LastUpdated = &lastUpdated.Time
	}
	if err := json.Unmarshal([]byte(cats), &p.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	return &p, nil
}

func scanPodcast(row *sql.Row) (*models.Podcast, error) { return scanPodcastFrom(row) }

func scanPodcastFromRows(rows *sql.Rows) (*models.Podcast, error) { return scanPodcastFrom(rows) }

func scanEpisodeFrom(r rowScanner) (*models.Episode, error) {
	var e models.Episode
	var played int
	var publishedAt, playedAt sql.NullTime
	if err := r.Scan(
		&e.ID, &e.PodcastID, &e.GUID, &e.Title, &e.Description, &e.Summary,
		&e.AudioURL, &e.AudioSize, &e.Duration, &publishedAt, &e.ImageURL,
		&e.Position, &played, &playedAt, &e.DownloadState, &e.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("episode not found")
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	e.Played = played == 1
	if publishedAt.Valid {
		e.PublishedAt = &publishedAt.Time
	}
	if playedAt.Valid {
		e.PlayedAt = &playedAt.Time
	}
	return &e, nil
}

func scanEpisode(row *sql.Row) (*models.Episode, error) { return scanEpisodeFrom(row) }

func scanEpisodeFromRows(rows *sql.Rows) (*models.Episode, error) { return scanEpisodeFrom(rows) }

func scanActionFrom(r rowScanner) (*models.EpisodeAction, error) {
	var a models.EpisodeAction
	var completed, synced int
	if err := r.Scan(
		&a.ID, &a.Type, &a.PodcastID, &a.EpisodeID, &a.Position, &a.Duration,
		&completed, &a.Timestamp, &a.SyncAttempts, &a.LastSyncError, &synced,
		&a.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan action: %w", err)
	}
	a.Completed = completed == 1
	a.Synced = synced == 1
	return &a, nil
}

func scanAction(row *sql.Row) (*models.EpisodeAction, error) { return scanActionFrom(row) }

func scanActionFromRows(rows *sql.Rows) (*models.EpisodeAction, error) { return scanActionFrom(rows) }

func marshalCategories(cats []string) (string, error) {
	if cats == nil {
		cats = []string{}
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return "", fmt.Errorf("marshal categories: %w", err)
	}
	return string(b), nil
}

func requireRow(result sql.Result, kind, id string) error {
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func timeToSQL(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetDefaultDBPath returns the default database path.
func GetDefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "./castsync.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "castsync", "castsync.db")
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
