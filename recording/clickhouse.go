package recording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/dplink/dp"
)

// ClickHouseOptions locates a ClickHouse server.
type ClickHouseOptions struct {
	Host      string
	Port      int
	Database  string
	Username  string
	Password  string
	BatchSize int
}

type clickHouseTable struct {
	structType reflect.Type
	rows       [][]any
}

// clickHouseRecorder sends batches over the native protocol.
type clickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*clickHouseTable
	entryCount int
}

// NewClickHouseRecorder connects to a ClickHouse server.
func NewClickHouseRecorder(opts ClickHouseOptions) (DataRecorder, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultBatchSize
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	r := &clickHouseRecorder{
		conn:      conn,
		batchSize: opts.BatchSize,
		tables:    make(map[string]*clickHouseTable),
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

// ClickHouseColumnType maps a Go kind to the ClickHouse column type used to
// store it.
func ClickHouseColumnType(kind reflect.Kind) (string, error) {
	switch kind {
	case reflect.Bool:
		return "Bool", nil
	case reflect.Int, reflect.Int64:
		return "Int64", nil
	case reflect.Int8:
		return "Int8", nil
	case reflect.Int16:
		return "Int16", nil
	case reflect.Int32:
		return "Int32", nil
	case reflect.Uint, reflect.Uint64:
		return "UInt64", nil
	case reflect.Uint8:
		return "UInt8", nil
	case reflect.Uint16:
		return "UInt16", nil
	case reflect.Uint32:
		return "UInt32", nil
	case reflect.Float32:
		return "Float32", nil
	case reflect.Float64:
		return "Float64", nil
	case reflect.String:
		return "String", nil
	default:
		return "", fmt.Errorf("%w: no ClickHouse column for kind %s",
			dp.ErrInvalidArgument, kind)
	}
}

// ClickHouseCreateSQL returns the statement that creates a table for
// entries shaped like sample, ordered by its first column.
func ClickHouseCreateSQL(tableName string, sample any) (string, error) {
	if err := checkStructFields(sample); err != nil {
		return "", err
	}

	t := reflect.TypeOf(sample)
	columns := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		colType, err := ClickHouseColumnType(t.Field(i).Type.Kind())
		if err != nil {
			return "", err
		}

		columns = append(columns, t.Field(i).Name+" "+colType)
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = MergeTree()\nORDER BY %s",
		tableName, strings.Join(columns, ",\n\t"), t.Field(0).Name), nil
}

func (r *clickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	createSQL, err := ClickHouseCreateSQL(tableName, sampleEntry)
	if err != nil {
		panic(err)
	}

	if err := r.conn.Exec(context.Background(), createSQL); err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &clickHouseTable{
		structType: reflect.TypeOf(sampleEntry),
	}
}

func (r *clickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	t, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.rows = append(t.rows, structs.Values(entry))
	r.entryCount++
	full := r.entryCount >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *clickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

func (r *clickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for name, t := range r.tables {
		if len(t.rows) > 0 {
			r.flushTable(ctx, name, t)
		}
	}

	r.entryCount = 0
}

func (r *clickHouseRecorder) flushTable(
	ctx context.Context,
	name string,
	t *clickHouseTable,
) {
	batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", name))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", name, err))
	}

	for _, row := range t.rows {
		if err := batch.Append(row...); err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	t.rows = t.rows[:0]
}

func (r *clickHouseRecorder) Close() error {
	r.Flush()

	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
