package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/media-luna/sonora/internal/models"
)

const (
	pgCreateSongsTable = `
		CREATE TABLE IF NOT EXISTS songs (
			song_id CHAR(36) PRIMARY KEY,
			name VARCHAR(250) NOT NULL,
			fingerprinted SMALLINT NOT NULL DEFAULT 0,
			file_sha1 BYTEA NOT NULL,
			total_hashes INTEGER NOT NULL DEFAULT 0,
			date_created TIMESTAMP NOT NULL DEFAULT now(),
			date_modified TIMESTAMP NOT NULL DEFAULT now()
		);`

	pgCreateSha1Index = `CREATE INDEX IF NOT EXISTS idx_sha1 ON songs (file_sha1);`

	pgCreateFingerprintsTable = `
		CREATE TABLE IF NOT EXISTS fingerprints (
			hash BIGINT NOT NULL,
			song_id CHAR(36) NOT NULL REFERENCES songs (song_id) ON DELETE CASCADE,
			"offset" INTEGER NOT NULL,
			date_created TIMESTAMP DEFAULT now(),
			UNIQUE (song_id, "offset", hash)
		);`

	pgCreateHashIndex     = `CREATE INDEX IF NOT EXISTS idx_hash ON fingerprints (hash);`
	pgCreateSongHashIndex = `CREATE INDEX IF NOT EXISTS idx_song_hash ON fingerprints (song_id, hash);`

	pgInsertSong       = `INSERT INTO songs (song_id, name, file_sha1, total_hashes) VALUES ($1, $2, $3, $4);`
	pgSelectSongBySHA1 = `SELECT song_id FROM songs WHERE file_sha1 = $1;`
	pgSelectSong       = `SELECT song_id, name, file_sha1, total_hashes, fingerprinted, date_created, date_modified FROM songs WHERE song_id = $1;`
	pgSelectSongs      = `SELECT song_id, name, file_sha1, total_hashes, fingerprinted, date_created, date_modified FROM songs WHERE fingerprinted = 1;`
	pgSelectAll        = `SELECT song_id, "offset" FROM fingerprints;`
	pgSelectNumFp      = `SELECT COUNT(*) FROM fingerprints;`
	pgSelectNumSongs   = `SELECT COUNT(song_id) FROM songs WHERE fingerprinted = 1;`
	pgUpdateFingerpt   = `UPDATE songs SET fingerprinted = 1 WHERE song_id = $1;`
	pgDeleteUnfingerpt = `DELETE FROM songs WHERE fingerprinted = 0;`
)

// Postgres is the lib/pq backed Store. Batched writes use multi-row
// VALUES (...),(...) with ON CONFLICT DO NOTHING, the idiom used by
// Prayush09-MusicRecognition's postgres backend, standing in for MySQL's
// INSERT IGNORE.
type Postgres struct {
	pool *Pool
}

// NewPostgres opens dsn and bootstraps the songs/fingerprints schema,
// pruning any unfingerprinted rows left over from a crashed ingest.
func NewPostgres(ctx context.Context, dsn string, poolSize int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(ErrStoreUnavailable, err.Error())
	}

	p := &Postgres{pool: NewPool(db, poolSize)}
	if err := p.setup(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) setup(ctx context.Context) error {
	stmts := []string{
		pgCreateSongsTable, pgCreateSha1Index,
		pgCreateFingerprintsTable, pgCreateHashIndex, pgCreateSongHashIndex,
		pgDeleteUnfingerpt,
	}
	return p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Close() error { return p.pool.db.Close() }

func (p *Postgres) InsertSong(ctx context.Context, name string, sha1 [20]byte, totalHashes uint32) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		var existing string
		row := tx.QueryRowContext(ctx, pgSelectSongBySHA1, sha1[:])
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
		if _, err := tx.ExecContext(ctx, pgInsertSong, newID.String(), name, sha1[:], totalHashes); err != nil {
			return err
		}
		id = newID
		return nil
	})
	if err != nil {
		return uuid.Nil, classifyPostgresErr(err)
	}
	return id, nil
}

func (p *Postgres) InsertHashes(ctx context.Context, songID uuid.UUID, pairs []HashOffset, batchSize int, progress IngestProgress) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(pairs); start += batchSize {
			end := start + batchSize
			if end > len(pairs) {
				end = len(pairs)
			}
			batch := pairs[start:end]

			var sb strings.Builder
			sb.WriteString(`INSERT INTO fingerprints (hash, song_id, "offset") VALUES `)
			args := make([]any, 0, len(batch)*3)
			for i, pair := range batch {
				if i > 0 {
					sb.WriteString(",")
				}
				base := i * 3
				sb.WriteString("($" + strconv.Itoa(base+1) + ",$" + strconv.Itoa(base+2) + ",$" + strconv.Itoa(base+3) + ")")
				args = append(args, int64(pair.Hash), songID.String(), int64(pair.Offset))
			}
			sb.WriteString(" ON CONFLICT DO NOTHING;")

			if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
				return err
			}
			if progress != nil {
				progress.Add(end - start)
			}
		}
		return nil
	})
}

func (p *Postgres) SetSongFingerprinted(ctx context.Context, songID uuid.UUID) error {
	return p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, pgUpdateFingerpt, songID.String())
		return err
	})
}

func (p *Postgres) DeleteUnfingerprinted(ctx context.Context) error {
	return p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, pgDeleteUnfingerpt)
		return err
	})
}

func (p *Postgres) DeleteSongs(ctx context.Context, ids []uuid.UUID, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(ids); start += batchSize {
			end := start + batchSize
			if end > len(ids) {
				end = len(ids)
			}
			strs := make([]string, end-start)
			for i, id := range ids[start:end] {
				strs[i] = id.String()
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE song_id = ANY($1);`, pq.Array(strs))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) SelectMatches(ctx context.Context, hashes []uint64) ([]MatchRow, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	var rows []MatchRow
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		asInt64 := make([]int64, len(hashes))
		for i, h := range hashes {
			asInt64[i] = int64(h)
		}
		res, err := tx.QueryContext(ctx, `SELECT hash, song_id, "offset" FROM fingerprints WHERE hash = ANY($1);`, pq.Array(asInt64))
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var r MatchRow
			var hash int64
			var sidStr string
			var offset int64
			if err := res.Scan(&hash, &sidStr, &offset); err != nil {
				return err
			}
			sid, err := uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			r.Hash = uint64(hash)
			r.SongID = sid
			r.Offset = uint32(offset)
			rows = append(rows, r)
		}
		return res.Err()
	})
	if err != nil {
		return nil, classifyPostgresErr(err)
	}
	return rows, nil
}

func (p *Postgres) SelectAll(ctx context.Context) ([]MatchRow, error) {
	var rows []MatchRow
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		res, err := tx.QueryContext(ctx, pgSelectAll)
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var r MatchRow
			var sidStr string
			var offset int64
			if err := res.Scan(&sidStr, &offset); err != nil {
				return err
			}
			sid, err := uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			r.SongID = sid
			r.Offset = uint32(offset)
			rows = append(rows, r)
		}
		return res.Err()
	})
	return rows, classifyPostgresErr(err)
}

func (p *Postgres) CountSongs(ctx context.Context) (int, error) {
	var n int
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, pgSelectNumSongs).Scan(&n)
	})
	return n, classifyPostgresErr(err)
}

func (p *Postgres) CountFingerprints(ctx context.Context) (int, error) {
	var n int
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, pgSelectNumFp).Scan(&n)
	})
	return n, classifyPostgresErr(err)
}

func (p *Postgres) GetSongByID(ctx context.Context, songID uuid.UUID) (models.Song, error) {
	var s models.Song
	var sha1 []byte
	var fingerprinted int
	var sidStr string
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, pgSelectSong, songID.String())
		return row.Scan(&sidStr, &s.Name, &sha1, &s.TotalHashes, &fingerprinted, &s.CreatedAt, &s.ModifiedAt)
	})
	if err == sql.ErrNoRows {
		return models.Song{}, ErrNotFound
	}
	if err != nil {
		return models.Song{}, classifyPostgresErr(err)
	}
	s.SongID = songID
	s.Fingerprinted = fingerprinted != 0
	copy(s.FileSHA1[:], sha1)
	return s, nil
}

func (p *Postgres) ListFingerprintedSongs(ctx context.Context) ([]models.Song, error) {
	var out []models.Song
	err := p.pool.WithCursor(ctx, func(tx *sql.Tx) error {
		res, err := tx.QueryContext(ctx, pgSelectSongs)
		if err != nil {
			return err
		}
		defer res.Close()
		for res.Next() {
			var s models.Song
			var sidStr string
			var sha1 []byte
			var fingerprinted int
			if err := res.Scan(&sidStr, &s.Name, &sha1, &s.TotalHashes, &fingerprinted, &s.CreatedAt, &s.ModifiedAt); err != nil {
				return err
			}
			sid, err := uuid.Parse(sidStr)
			if err != nil {
				return err
			}
			s.SongID = sid
			s.Fingerprinted = fingerprinted != 0
			copy(s.FileSHA1[:], sha1)
			out = append(out, s)
		}
		return res.Err()
	})
	return out, classifyPostgresErr(err)
}

// classifyPostgresErr maps a driver error to the store's error kinds: a
// *pq.Error is treated as transient (rolled back already by WithCursor);
// anything else (dial failure, context cancellation) is unavailable.
func classifyPostgresErr(err error) error {
	if err == nil {
		return nil
	}
	var perr *pq.Error
	if errors.As(err, &perr) {
		return errors.Wrap(ErrStoreTransient, err.Error())
	}
	return errors.Wrap(ErrStoreUnavailable, err.Error())
}
