package store

import (
	"context"
	"database/sql"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/media-luna/sonora/internal/models"
)

const (
	mysqlCreateSongsTable = `
		CREATE TABLE IF NOT EXISTS songs (
			song_id CHAR(36) NOT NULL,
			name VARCHAR(250) NOT NULL,
			fingerprinted TINYINT UNSIGNED NOT NULL DEFAULT 0,
			file_sha1 BINARY(20) NOT NULL,
			total_hashes INT UNSIGNED NOT NULL DEFAULT 0,
			date_created DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
			date_modified DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
			PRIMARY KEY (song_id),
			INDEX idx_sha1 (file_sha1)
		) ENGINE=InnoDB;`

	mysqlCreateFingerprintsTable = `
		CREATE TABLE IF NOT EXISTS fingerprints (
			hash BIGINT UNSIGNED NOT NULL,
			song_id CHAR(36) NOT NULL,
			offset INT UNSIGNED NOT NULL,
			date_created DATETIME(3) DEFAULT CURRENT_TIMESTAMP(3),
			UNIQUE KEY uq_fingerprint (song_id, offset, hash),
			INDEX idx_hash (hash),
			INDEX idx_song_hash (song_id, hash),
			CONSTRAINT fk_song FOREIGN KEY (song_id)
				REFERENCES songs (song_id) ON DELETE CASCADE
		) ENGINE=InnoDB;`

	mysqlInsertFingerprint = "INSERT IGNORE INTO fingerprints (hash, song_id, offset) VALUES (?, ?, ?);"
	mysqlInsertSong        = "INSERT INTO songs (song_id, name, file_sha1, total_hashes) VALUES (?, ?, ?, ?);"
	mysqlSelectSongBySHA1  = "SELECT song_id FROM songs WHERE file_sha1 = ?;"
	mysqlSelectSong        = "SELECT song_id, name, file_sha1, total_hashes, fingerprinted, date_created, date_modified FROM songs WHERE song_id = ?;"
	mysqlSelectSongs       = "SELECT song_id, name, file_sha1, total_hashes, fingerprinted, date_created, date_modified FROM songs WHERE fingerprinted = 1;"
	mysqlSelectAll         = "SELECT song_id, offset FROM fingerprints;"
	mysqlSelectNumFp       = "SELECT COUNT(*) FROM fingerprints;"
	mysqlSelectNumSongs    = "SELECT COUNT(song_id) FROM songs WHERE fingerprinted = 1;"
	mysqlUpdateFingerpt    = "UPDATE songs SET fingerprinted = 1 WHERE song_id = ?;"
	mysqlDeleteUnfingerpt  = "DELETE FROM songs WHERE fingerprinted = 0;"
)

// MySQL is the go-sql-driver/mysql backed Store, schema mirrored verbatim
// from the dejavu-derived reference implementation's MySQLDatabase.
type MySQL struct {
	pool *Pool
}

// NewMySQL opens dsn and bootstraps the songs/fingerprints schema, pruning
// any unfingerprinted rows left over from a crashed ingest.
func NewMySQL(ctx context.Context, dsn string, poolSize int) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}

	m := &MySQL{pool: NewPool(db, poolSize)}
	if err := m.setup(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MySQL) setup(ctx context.Context) error {
	return m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mysqlCreateSongsTable); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, mysqlCreateFingerprintsTable); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, mysqlDeleteUnfingerpt)
		return err
	})
}

func (m *MySQL) Close() error { return m.pool.db.Close() }

func (m *MySQL) InsertSong(ctx context.Context, name string, sha1 [20]byte, totalHashes uint32) (uuid.UUID, error) {
	var id uuid.UUID
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		var existing string
		row := tx.QueryRowContext(ctx, mysqlSelectSongBySHA1, sha1[:])
		if scanErr := row.Scan(&existing); scanErr == nil {
			parsed, parseErr := uuid.Parse(existing)
			if parseErr != nil {
				return parseErr
			}
			id = parsed
			return nil
		} else if scanErr != sql.ErrNoRows {
			return scanErr
		}

		newID := uuid.New()
		if _, err := tx.ExecContext(ctx, mysqlInsertSong, newID.String(), name, sha1[:], totalHashes); err != nil {
			return err
		}
		id = newID
		return nil
	})
	if err != nil {
		return uuid.Nil, classifyMySQLErr(err)
	}
	return id, nil
}

func (m *MySQL) InsertHashes(ctx context.Context, songID uuid.UUID, pairs []HashOffset, batchSize int, progress IngestProgress) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, mysqlInsertFingerprint)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for start := 0; start < len(pairs); start += batchSize {
			end := start + batchSize
			if end > len(pairs) {
				end = len(pairs)
			}
			for _, p := range pairs[start:end] {
				if _, err := stmt.ExecContext(ctx, p.Hash, songID.String(), p.Offset); err != nil {
					return err
				}
			}
			if progress != nil {
				progress.Add(end - start)
			}
		}
		return nil
	})
}

func (m *MySQL) SetSongFingerprinted(ctx context.Context, songID uuid.UUID) error {
	return m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, mysqlUpdateFingerpt, songID.String())
		return err
	})
}

func (m *MySQL) DeleteUnfingerprinted(ctx context.Context) error {
	return m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, mysqlDeleteUnfingerpt)
		return err
	})
}

func (m *MySQL) DeleteSongs(ctx context.Context, ids []uuid.UUID, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(ids); start += batchSize {
			end := start + batchSize
			if end > len(ids) {
				end = len(ids)
			}
			batch := ids[start:end]
			query, args := inClauseQuery("DELETE FROM songs WHERE song_id IN", batch)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *MySQL) SelectMatches(ctx context.Context, hashes []uint64) ([]MatchRow, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var rows []MatchRow
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		args := make([]any, len(hashes))
		for i, h := range hashes {
			args[i] = h
		}
		query := "SELECT hash, song_id, offset FROM fingerprints WHERE hash IN (" + placeholders(len(hashes)) + ");"
		res, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer res.Close()

		for res.Next() {
			var r MatchRow
			var sidStr string
			if err := res.Scan(&r.Hash, &sidStr, &r.Offset); err != nil {
				return err
			}
			sid, err := uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			r.SongID = sid
			rows = append(rows, r)
		}
		return res.Err()
	})
	if err != nil {
		return nil, classifyMySQLErr(err)
	}
	return rows, nil
}

func (m *MySQL) SelectAll(ctx context.Context) ([]MatchRow, error) {
	var rows []MatchRow
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		res, err := tx.QueryContext(ctx, mysqlSelectAll)
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var r MatchRow
			var sidStr string
			if err := res.Scan(&sidStr, &r.Offset); err != nil {
				return err
			}
			sid, err := uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			r.SongID = sid
			rows = append(rows, r)
		}
		return res.Err()
	})
	return rows, classifyMySQLErr(err)
}

func (m *MySQL) CountSongs(ctx context.Context) (int, error) {
	var n int
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, mysqlSelectNumSongs).Scan(&n)
	})
	return n, classifyMySQLErr(err)
}

func (m *MySQL) CountFingerprints(ctx context.Context) (int, error) {
	var n int
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, mysqlSelectNumFp).Scan(&n)
	})
	return n, classifyMySQLErr(err)
}

func (m *MySQL) GetSongByID(ctx context.Context, songID uuid.UUID) (models.Song, error) {
	var s models.Song
	var sidStr string
	var sha1 []byte
	var fingerprinted bool
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, mysqlSelectSong, songID.String())
		return row.Scan(&sidStr, &s.Name, &sha1, &s.TotalHashes, &fingerprinted, &s.CreatedAt, &s.ModifiedAt)
	})
	if err == sql.ErrNoRows {
		return models.Song{}, ErrNotFound
	}
	if err != nil {
		return models.Song{}, classifyMySQLErr(err)
	}
	s.SongID = songID
	s.Fingerprinted = fingerprinted
	copy(s.FileSHA1[:], sha1)
	return s, nil
}

func (m *MySQL) ListFingerprintedSongs(ctx context.Context) ([]models.Song, error) {
	var out []models.Song
	err := m.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		res, err := tx.QueryContext(ctx, mysqlSelectSongs)
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var s models.Song
			var sidStr string
			var sha1 []byte
			var fingerprinted bool
			if err := res.Scan(&sidStr, &s.Name, &sha1, &s.TotalHashes, &fingerprinted, &s.CreatedAt, &s.ModifiedAt); err != nil {
				return err
			}
			sid, err := uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			s.SongID = sid
			s.Fingerprinted = fingerprinted
			copy(s.FileSHA1[:], sha1)
			out = append(out, s)
		}
		return res.Err()
	})
	return out, classifyMySQLErr(err)
}

// classifyMySQLErr maps a driver error to the store's error kinds: a
// *mysql.MySQLError is treated as transient (rolled back already by
// WithCursor, safe to retry at the caller's discretion); anything else
// (dial failure, context cancellation) is unavailable.
func classifyMySQLErr(err error) error {
	if err == nil {
		return nil
	}
	var merr *mysqldriver.MySQLError
	if errors.As(err, &merr) {
		return errors.Wrap(ErrStoreTransient, err.Error())
	}
	return errors.Wrap(ErrStoreUnavailable, err.Error())
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func inClauseQuery(prefix string, ids []uuid.UUID) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return prefix + " (" + placeholders(len(ids)) + ");", args
}
