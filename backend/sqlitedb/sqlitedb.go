// Package sqlitedb implements the SQLite database backend.
//
// Spectra live in a single table: one typed column per core spectra
// variable, a JSON column for arbitrary extra variables and a BLOB
// column holding the snappy-compressed peak data. Metadata is loaded
// into memory at Open; peak blobs are fetched per request, so large
// collections stay on disk.
//
// The backend is fully writable. Writes go straight to the database,
// so Reset cannot undo them. Concurrent writers from different
// collections on the same database file are NOT safe; callers must
// serialize them. Concurrent reads are safe.
package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/codec"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

// DBFileExt is the default database file extension.
const DBFileExt = ".sqlite"

// coreColumns lists the core spectra variables persisted as typed
// columns, in schema order. dataStorage is intentionally absent: it is
// rewritten to the database path on load.
var coreColumns = []string{
	metadata.FieldMsLevel,
	metadata.FieldRtime,
	metadata.FieldAcquisitionNum,
	metadata.FieldScanIndex,
	metadata.FieldDataOrigin,
	metadata.FieldCentroided,
	metadata.FieldSmoothed,
	metadata.FieldPolarity,
	metadata.FieldPrecScanNum,
	metadata.FieldPrecursorMz,
	metadata.FieldPrecursorIntensity,
	metadata.FieldPrecursorCharge,
	metadata.FieldCollisionEnergy,
	metadata.FieldIsolationWindowLowerMz,
	metadata.FieldIsolationWindowTargetMz,
	metadata.FieldIsolationWindowUpperMz,
}

const schema = `
CREATE TABLE IF NOT EXISTS spectra (
	idx                     INTEGER PRIMARY KEY,
	msLevel                 INTEGER,
	rtime                   REAL,
	acquisitionNum          INTEGER,
	scanIndex               INTEGER,
	dataOrigin              TEXT,
	centroided              INTEGER,
	smoothed                INTEGER,
	polarity                INTEGER,
	precScanNum             INTEGER,
	precursorMz             REAL,
	precursorIntensity      REAL,
	precursorCharge         INTEGER,
	collisionEnergy         REAL,
	isolationWindowLowerMz  REAL,
	isolationWindowTargetMz REAL,
	isolationWindowUpperMz  REAL,
	extra                   TEXT,
	peaks                   BLOB NOT NULL
)`

// Backend serves spectra from a SQLite database file.
type Backend struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	owned  bool // transient database, removed on Close
	table  *metadata.Table
	count  int
	closed bool
}

var (
	_ backend.Backend  = (*Backend)(nil)
	_ backend.Exporter = (*Backend)(nil)
)

// Open binds a backend to an existing database file. It fails with
// backend.ErrSourceUnavailable when the file does not exist or does not
// hold a spectra table.
func Open(ctx context.Context, dbPath string) (*Backend, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open %q: %w: %w", dbPath, backend.ErrSourceUnavailable, err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w: %w", dbPath, backend.ErrSourceUnavailable, err)
	}

	b := &Backend{db: db, path: dbPath}
	if err := b.load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load %q: %w: %w", dbPath, backend.ErrSourceUnavailable, err)
	}
	return b, nil
}

// Create writes a new database at dbPath holding the given spectra and
// opens a backend on it. The file is kept on Close. An existing file at
// dbPath is replaced.
func Create(ctx context.Context, dbPath string, t *metadata.Table, pk []peaks.Matrix) (*Backend, error) {
	return create(ctx, dbPath, false, t, pk)
}

// CreateTemp writes a database with a generated name under dir (the
// default temp directory when dir is empty) and opens a backend that
// owns it exclusively: the file is removed on Close.
func CreateTemp(ctx context.Context, dir string, t *metadata.Table, pk []peaks.Matrix) (*Backend, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	dbPath := filepath.Join(dir, "spectra-"+uuid.NewString()+DBFileExt)
	return create(ctx, dbPath, true, t, pk)
}

// Factory returns a backend.Factory that materializes collections into
// transient databases under dir, for use with backend migration.
func Factory(dir string) backend.Factory {
	return func(ctx context.Context, t *metadata.Table, pk []peaks.Matrix) (backend.Backend, error) {
		return CreateTemp(ctx, dir, t, pk)
	}
}

func create(ctx context.Context, dbPath string, owned bool, t *metadata.Table, pk []peaks.Matrix) (*Backend, error) {
	if t == nil {
		t = metadata.NewTable(len(pk))
	}
	if t.Len() != len(pk) {
		return nil, backend.ErrLengthMismatch
	}
	for _, m := range pk {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}

	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w: %w", dbPath, backend.ErrSourceUnavailable, err)
	}
	if err := insertAll(ctx, db, t, pk); err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, err
	}

	b := &Backend{db: db, path: dbPath, owned: owned}
	if err := b.load(ctx); err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, err
	}
	return b, nil
}

func insertAll(ctx context.Context, db *sql.DB, t *metadata.Table, pk []peaks.Matrix) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cols := append([]string{"idx"}, coreColumns...)
	cols = append(cols, "extra", "peaks")
	q := "INSERT INTO spectra (" + strings.Join(cols, ", ") + ") VALUES (?" +
		strings.Repeat(", ?", len(cols)-1) + ")"
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < t.Len(); i++ {
		args, err := rowArgs(i, t, pk[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("spectrum %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// rowArgs builds the INSERT arguments for one spectrum: idx, the core
// columns, the extra JSON and the peak blob.
func rowArgs(i int, t *metadata.Table, m peaks.Matrix) ([]any, error) {
	args := make([]any, 0, len(coreColumns)+3)
	args = append(args, i)
	for _, name := range coreColumns {
		args = append(args, columnArg(t.Get(i, name)))
	}

	extra, err := encodeExtra(t.Row(i))
	if err != nil {
		return nil, err
	}
	args = append(args, extra, encodePeaks(m))
	return args, nil
}

func columnArg(v metadata.Value) any {
	switch v.Kind {
	case metadata.KindInt:
		return v.I64
	case metadata.KindFloat:
		if math.IsNaN(v.F64) {
			return nil
		}
		return v.F64
	case metadata.KindString:
		return v.StringValue()
	case metadata.KindBool:
		return v.B
	default:
		return nil
	}
}

// encodeExtra serializes the non-core fields of a row as JSON, or
// returns nil when the row has none.
func encodeExtra(doc metadata.Document) (any, error) {
	extra := make(metadata.Document)
	for name, v := range doc {
		if metadata.IsCoreField(name) {
			continue
		}
		extra[name] = v
	}
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := codec.Default.Marshal(extra)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// load reads every row's metadata into the in-memory table.
func (b *Backend) load(ctx context.Context) error {
	cols := append([]string{"idx"}, coreColumns...)
	cols = append(cols, "extra")
	rows, err := b.db.QueryContext(ctx,
		"SELECT "+strings.Join(cols, ", ")+" FROM spectra ORDER BY idx")
	if err != nil {
		return err
	}
	defer rows.Close()

	var docs []metadata.Document
	for rows.Next() {
		doc, err := scanRow(rows)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	t := metadata.NewTable(len(docs))
	storage := metadata.String(b.path)
	for i, doc := range docs {
		doc[metadata.FieldDataStorage] = storage
		if err := t.SetRow(i, doc); err != nil {
			return err
		}
	}
	b.table = t
	b.count = len(docs)
	return nil
}

func scanRow(rows *sql.Rows) (metadata.Document, error) {
	var (
		idx int
		msLevel, acquisitionNum, scanIndex, polarity,
		precScanNum, precursorCharge sql.NullInt64
		rtime, precursorMz, precursorIntensity, collisionEnergy,
		isoLower, isoTarget, isoUpper sql.NullFloat64
		dataOrigin           sql.NullString
		centroided, smoothed sql.NullBool
		extra                sql.NullString
	)
	err := rows.Scan(&idx, &msLevel, &rtime, &acquisitionNum, &scanIndex,
		&dataOrigin, &centroided, &smoothed, &polarity, &precScanNum,
		&precursorMz, &precursorIntensity, &precursorCharge, &collisionEnergy,
		&isoLower, &isoTarget, &isoUpper, &extra)
	if err != nil {
		return nil, err
	}

	doc := make(metadata.Document)
	if extra.Valid && extra.String != "" {
		if err := codec.Default.Unmarshal([]byte(extra.String), &doc); err != nil {
			return nil, fmt.Errorf("row %d extra: %w", idx, err)
		}
	}

	setInt := func(name string, v sql.NullInt64) {
		if v.Valid {
			doc[name] = metadata.Int(v.Int64)
		}
	}
	setFloat := func(name string, v sql.NullFloat64) {
		if v.Valid {
			doc[name] = metadata.Float(v.Float64)
		}
	}
	setBool := func(name string, v sql.NullBool) {
		if v.Valid {
			doc[name] = metadata.Bool(v.Bool)
		}
	}

	setInt(metadata.FieldMsLevel, msLevel)
	setFloat(metadata.FieldRtime, rtime)
	setInt(metadata.FieldAcquisitionNum, acquisitionNum)
	setInt(metadata.FieldScanIndex, scanIndex)
	if dataOrigin.Valid && dataOrigin.String != "" {
		doc[metadata.FieldDataOrigin] = metadata.String(dataOrigin.String)
	}
	setBool(metadata.FieldCentroided, centroided)
	setBool(metadata.FieldSmoothed, smoothed)
	setInt(metadata.FieldPolarity, polarity)
	setInt(metadata.FieldPrecScanNum, precScanNum)
	setFloat(metadata.FieldPrecursorMz, precursorMz)
	setFloat(metadata.FieldPrecursorIntensity, precursorIntensity)
	setInt(metadata.FieldPrecursorCharge, precursorCharge)
	setFloat(metadata.FieldCollisionEnergy, collisionEnergy)
	setFloat(metadata.FieldIsolationWindowLowerMz, isoLower)
	setFloat(metadata.FieldIsolationWindowTargetMz, isoTarget)
	setFloat(metadata.FieldIsolationWindowUpperMz, isoUpper)

	return doc, nil
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

// SpectrumCount returns the number of spectra.
func (b *Backend) SpectrumCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Metadata returns a copy of the loaded table, projected to the
// requested fields when fields is non-nil.
func (b *Backend) Metadata(_ context.Context, fields []string) (*metadata.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if fields == nil {
		return b.table.Clone(), nil
	}
	return b.table.Project(fields), nil
}

// Peaks fetches and decodes the peak blobs for the given indices, in
// request order.
func (b *Backend) Peaks(ctx context.Context, indices []int) ([]peaks.Matrix, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}
	if err := backend.CheckIndices(indices, b.count); err != nil {
		return nil, err
	}

	stmt, err := b.db.PrepareContext(ctx, "SELECT peaks FROM spectra WHERE idx = ?")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := make([]peaks.Matrix, len(indices))
	for i, idx := range indices {
		var blob []byte
		if err := stmt.QueryRowContext(ctx, idx).Scan(&blob); err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", idx, err)
		}
		m, err := decodePeaks(blob)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", idx, err)
		}
		out[i] = m
	}
	return out, nil
}

// SupportsWrite reports true: every field and the peak data are
// writable.
func (b *Backend) SupportsWrite() bool { return true }

// Write overwrites peak data and/or metadata for the given indices.
// The write goes to the database immediately and is final.
func (b *Backend) Write(ctx context.Context, indices []int, u backend.Update) error {
	if err := u.Validate(len(indices)); err != nil {
		return err
	}
	for _, m := range u.Peaks {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for field, vals := range u.Metadata {
		for _, v := range vals {
			if err := metadata.CheckField(field, v); err != nil {
				return err
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if err := backend.CheckIndices(indices, b.count); err != nil {
		return err
	}

	// Stage onto a copy so a mid-write failure cannot leave the cached
	// table out of sync with the database.
	staged := b.table.Clone()
	for i, idx := range indices {
		for field, vals := range u.Metadata {
			if err := staged.Set(idx, field, vals[i]); err != nil {
				return err
			}
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, idx := range indices {
		if u.Peaks != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE spectra SET peaks = ? WHERE idx = ?",
				encodePeaks(u.Peaks[i]), idx); err != nil {
				return fmt.Errorf("spectrum %d: %w", idx, err)
			}
		}
		if len(u.Metadata) == 0 {
			continue
		}

		extra, err := encodeExtra(staged.Row(idx))
		if err != nil {
			return err
		}
		args := make([]any, 0, len(coreColumns)+2)
		var sets []string
		for _, name := range coreColumns {
			sets = append(sets, name+" = ?")
			args = append(args, columnArg(staged.Get(idx, name)))
		}
		sets = append(sets, "extra = ?")
		args = append(args, extra, idx)
		if _, err := tx.ExecContext(ctx,
			"UPDATE spectra SET "+strings.Join(sets, ", ")+" WHERE idx = ?",
			args...); err != nil {
			return fmt.Errorf("spectrum %d: %w", idx, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	b.table = staged
	return nil
}

// Reset is a no-op: writes go straight to the database, so there is no
// cached transformation to discard.
func (b *Backend) Reset(context.Context) error { return nil }

// Close closes the database handle. A transient database created by
// CreateTemp is removed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := b.db.Close()
	if b.owned {
		if rmErr := os.Remove(b.path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// Export writes the given view as a new SQLite database at destination.
// Supported destination formats are ".sqlite" and ".db". The full table
// is representable, so round trips lose no fields.
func (b *Backend) Export(ctx context.Context, t *metadata.Table, pk []peaks.Matrix, destination string, opts backend.ExportOptions) error {
	switch strings.ToLower(path.Ext(destination)) {
	case ".sqlite", ".db":
	default:
		return fmt.Errorf("destination %q: %w", destination, backend.ErrUnsupportedFormat)
	}
	if t.Len() != len(pk) {
		return backend.ErrLengthMismatch
	}
	if !opts.Overwrite {
		if _, err := os.Stat(destination); err == nil {
			return fmt.Errorf("destination %q exists", destination)
		}
	}
	if opts.Fields != nil {
		t = t.Project(opts.Fields)
	}

	out, err := Create(ctx, destination, t, pk)
	if err != nil {
		return err
	}
	return out.Close()
}

// encodePeaks serializes a matrix as a snappy-compressed blob: a peak
// count followed by the m/z column and the intensity column, all
// little-endian.
func encodePeaks(m peaks.Matrix) []byte {
	raw := make([]byte, 4+16*m.Len())
	binary.LittleEndian.PutUint32(raw, uint32(m.Len()))
	off := 4
	for _, v := range m.Mz {
		binary.LittleEndian.PutUint64(raw[off:], math.Float64bits(v))
		off += 8
	}
	for _, v := range m.Intensity {
		binary.LittleEndian.PutUint64(raw[off:], math.Float64bits(v))
		off += 8
	}
	return snappy.Encode(nil, raw)
}

func decodePeaks(blob []byte) (peaks.Matrix, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return peaks.Matrix{}, err
	}
	if len(raw) < 4 {
		return peaks.Matrix{}, errors.New("sqlitedb: truncated peak blob")
	}
	n := int(binary.LittleEndian.Uint32(raw))
	if len(raw) != 4+16*n {
		return peaks.Matrix{}, fmt.Errorf("sqlitedb: peak blob holds %d bytes for %d peaks", len(raw), n)
	}

	m := peaks.Matrix{
		Mz:        make([]float64, n),
		Intensity: make([]float64, n),
	}
	off := 4
	for i := range m.Mz {
		m.Mz[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		off += 8
	}
	for i := range m.Intensity {
		m.Intensity[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		off += 8
	}
	return m, nil
}

func errClosed() error {
	return errors.New("sqlitedb: backend is closed")
}
