// Package snapshot reads and writes candle series as Arrow IPC streams so a
// dataset can be replayed without a database.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/storage"
)

// DefaultBatchSize is the number of rows per record batch.
const DefaultBatchSize = 65536

// ErrSchemaMismatch is returned when a stream does not carry the candle schema.
var ErrSchemaMismatch = errors.New("snapshot schema mismatch")

// Schema is the column layout of a candle snapshot.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "token", Type: arrow.BinaryTypes.String},
	{Name: "chain", Type: arrow.BinaryTypes.String},
	{Name: "timestamp_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "open", Type: arrow.PrimitiveTypes.Float64},
	{Name: "high", Type: arrow.PrimitiveTypes.Float64},
	{Name: "low", Type: arrow.PrimitiveTypes.Float64},
	{Name: "close", Type: arrow.PrimitiveTypes.Float64},
	{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
	{Name: "interval_seconds", Type: arrow.PrimitiveTypes.Int32},
}, nil)

// Codec encodes and decodes candle snapshots.
type Codec struct {
	mem       memory.Allocator
	batchSize int
}

// NewCodec creates a codec using the Go allocator.
// batchSize <= 0 uses DefaultBatchSize.
func NewCodec(batchSize int) *Codec {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Codec{mem: memory.NewGoAllocator(), batchSize: batchSize}
}

// Write serializes candles to w as an Arrow IPC stream.
func (c *Codec) Write(w io.Writer, candles []*domain.Candle) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(c.mem))

	for start := 0; start < len(candles); start += c.batchSize {
		end := start + c.batchSize
		if end > len(candles) {
			end = len(candles)
		}

		record := c.buildRecord(candles[start:end])
		err := writer.Write(record)
		record.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("write arrow record: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

func (c *Codec) buildRecord(candles []*domain.Candle) arrow.Record {
	b := array.NewRecordBuilder(c.mem, Schema)
	defer b.Release()

	tokens := b.Field(0).(*array.StringBuilder)
	chains := b.Field(1).(*array.StringBuilder)
	timestamps := b.Field(2).(*array.Int64Builder)
	opens := b.Field(3).(*array.Float64Builder)
	highs := b.Field(4).(*array.Float64Builder)
	lows := b.Field(5).(*array.Float64Builder)
	closes := b.Field(6).(*array.Float64Builder)
	volumes := b.Field(7).(*array.Float64Builder)
	intervals := b.Field(8).(*array.Int32Builder)

	for _, candle := range candles {
		tokens.Append(candle.Token)
		chains.Append(candle.Chain)
		timestamps.Append(candle.TimestampMs)
		opens.Append(candle.Open)
		highs.Append(candle.High)
		lows.Append(candle.Low)
		closes.Append(candle.Close)
		volumes.Append(candle.Volume)
		intervals.Append(int32(candle.IntervalSeconds))
	}

	return b.NewRecord()
}

// Read decodes every record batch of an Arrow IPC stream into candles.
func (c *Codec) Read(r io.Reader) ([]*domain.Candle, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(c.mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow reader: %w", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(Schema) {
		return nil, fmt.Errorf("%w: got %s", ErrSchemaMismatch, reader.Schema())
	}

	var candles []*domain.Candle
	for reader.Next() {
		candles = appendRecord(candles, reader.Record())
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read arrow record: %w", err)
	}

	return candles, nil
}

func appendRecord(dst []*domain.Candle, rec arrow.Record) []*domain.Candle {
	tokens := rec.Column(0).(*array.String)
	chains := rec.Column(1).(*array.String)
	timestamps := rec.Column(2).(*array.Int64)
	opens := rec.Column(3).(*array.Float64)
	highs := rec.Column(4).(*array.Float64)
	lows := rec.Column(5).(*array.Float64)
	closes := rec.Column(6).(*array.Float64)
	volumes := rec.Column(7).(*array.Float64)
	intervals := rec.Column(8).(*array.Int32)

	for i := 0; i < int(rec.NumRows()); i++ {
		dst = append(dst, &domain.Candle{
			Token:           tokens.Value(i),
			Chain:           chains.Value(i),
			TimestampMs:     timestamps.Value(i),
			Open:            opens.Value(i),
			High:            highs.Value(i),
			Low:             lows.Value(i),
			Close:           closes.Value(i),
			Volume:          volumes.Value(i),
			IntervalSeconds: int(intervals.Value(i)),
		})
	}
	return dst
}

// WriteFile writes candles to path, replacing any existing file.
func (c *Codec) WriteFile(path string, candles []*domain.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := c.Write(f, candles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads all candles from path.
func (c *Codec) ReadFile(path string) ([]*domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return c.Read(f)
}

// LoadInto reads a snapshot file into store and returns the number of candles loaded.
func (c *Codec) LoadInto(ctx context.Context, path string, store storage.CandleStore) (int, error) {
	candles, err := c.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if err := store.InsertBulk(ctx, candles); err != nil {
		return 0, fmt.Errorf("load snapshot into store: %w", err)
	}
	return len(candles), nil
}
