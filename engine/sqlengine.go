package engine

import (
	"context"
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bicycledb/bicycledb/bicerr"
)

// kvRow is the single table SQLEngine keeps its entire keyspace in: one row
// per Engine key, value stored as a blob. Range scans simulate the LSM
// engine's native ordered iteration via ORDER BY on the primary key.
type kvRow struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value []byte `gorm:"column:value"`
}

func (kvRow) TableName() string { return "bicycledb_kv" }

// SQLEngine is the embedded-SQL Engine variant, per the original design's
// note that the KV engine choice is a runtime one. Range scans use
// `key >= ? ORDER BY key ASC` (and its DESC mirror for reverse), since
// sqlite's TEXT collation on raw bytes-as-text matches Go's byte-lexical
// ordering for the ASCII-safe keys the model keyspace produces.
type SQLEngine struct {
	db *gorm.DB
}

var _ Engine = (*SQLEngine)(nil)

// SQLOptions configures OpenSQL.
type SQLOptions struct {
	// Path is the sqlite file path, or ":memory:" for an ephemeral engine.
	Path string
}

// OpenSQL opens (migrating if needed) a sqlite-backed Engine.
func OpenSQL(opt SQLOptions) (*SQLEngine, error) {
	db, err := gorm.Open(sqlite.Open(opt.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, ErrEngine(err, "open sqlite")
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, ErrEngine(err, "migrate kv table")
	}
	return &SQLEngine{db: db}, nil
}

func (e *SQLEngine) Put(ctx context.Context, key, value []byte) error {
	row := kvRow{Key: string(key), Value: value}
	err := e.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return ErrEngine(err, "put")
	}
	return nil
}

func (e *SQLEngine) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var row kvRow
	err := e.db.WithContext(ctx).Where("key = ?", string(key)).Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrEngine(err, "get")
	}
	return row.Value, true, nil
}

func (e *SQLEngine) Delete(ctx context.Context, key []byte) error {
	err := e.db.WithContext(ctx).Where("key = ?", string(key)).Delete(&kvRow{}).Error
	if err != nil {
		return ErrEngine(err, "delete")
	}
	return nil
}

func (e *SQLEngine) WriteBatch(ctx context.Context, ops []WriteOp) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if op.Delete {
				if err := tx.Where("key = ?", string(op.Key)).Delete(&kvRow{}).Error; err != nil {
					return err
				}
				continue
			}
			row := kvRow{Key: string(op.Key), Value: op.Value}
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ErrEngine(err, "write batch")
	}
	return nil
}

func (e *SQLEngine) IterFrom(ctx context.Context, key []byte, dir Direction) (Iterator, error) {
	var rows []kvRow
	q := e.db.WithContext(ctx)
	if dir == Forward {
		q = q.Where("key >= ?", string(key)).Order("key ASC")
	} else {
		q = q.Where("key <= ?", string(key)).Order("key DESC")
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, ErrEngine(err, "iterate")
	}
	// sqlite's default BINARY collation already orders TEXT byte-lexically,
	// but re-sort defensively so engine swaps never change observable order.
	sort.SliceStable(rows, func(i, j int) bool {
		if dir == Forward {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Key > rows[j].Key
	})
	return &sqlIterator{rows: rows, idx: -1}, nil
}

func (e *SQLEngine) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return bicerr.Wrap(bicerr.EngineError, err, "get underlying sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return bicerr.Wrap(bicerr.EngineError, err, "close sqlite")
	}
	return nil
}

type sqlIterator struct {
	rows []kvRow
	idx  int
}

func (it *sqlIterator) Next() bool {
	it.idx++
	return it.idx < len(it.rows)
}

func (it *sqlIterator) Item() KV {
	row := it.rows[it.idx]
	return KV{Key: []byte(row.Key), Value: row.Value}
}

func (it *sqlIterator) Err() error   { return nil }
func (it *sqlIterator) Close() error { return nil }
