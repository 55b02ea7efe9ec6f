package tables

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	kzstd "github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// DefaultCompressionLevel is the zstd level used for artifacts.
const DefaultCompressionLevel = "default"

// wideRecord is the on-disk row layout of a wide table.
type wideRecord struct {
	TaxiType    string `parquet:"taxi_type"`
	Date        string `parquet:"date"`
	PickupPlace string `parquet:"pickup_place"`
	Hour0       int64  `parquet:"hour_0"`
	Hour1       int64  `parquet:"hour_1"`
	Hour2       int64  `parquet:"hour_2"`
	Hour3       int64  `parquet:"hour_3"`
	Hour4       int64  `parquet:"hour_4"`
	Hour5       int64  `parquet:"hour_5"`
	Hour6       int64  `parquet:"hour_6"`
	Hour7       int64  `parquet:"hour_7"`
	Hour8       int64  `parquet:"hour_8"`
	Hour9       int64  `parquet:"hour_9"`
	Hour10      int64  `parquet:"hour_10"`
	Hour11      int64  `parquet:"hour_11"`
	Hour12      int64  `parquet:"hour_12"`
	Hour13      int64  `parquet:"hour_13"`
	Hour14      int64  `parquet:"hour_14"`
	Hour15      int64  `parquet:"hour_15"`
	Hour16      int64  `parquet:"hour_16"`
	Hour17      int64  `parquet:"hour_17"`
	Hour18      int64  `parquet:"hour_18"`
	Hour19      int64  `parquet:"hour_19"`
	Hour20      int64  `parquet:"hour_20"`
	Hour21      int64  `parquet:"hour_21"`
	Hour22      int64  `parquet:"hour_22"`
	Hour23      int64  `parquet:"hour_23"`
}

func toRecord(r WideRow) wideRecord {
	h := r.Hours
	return wideRecord{
		TaxiType: r.Category, Date: r.Date, PickupPlace: r.Place,
		Hour0: h[0], Hour1: h[1], Hour2: h[2], Hour3: h[3], Hour4: h[4], Hour5: h[5],
		Hour6: h[6], Hour7: h[7], Hour8: h[8], Hour9: h[9], Hour10: h[10], Hour11: h[11],
		Hour12: h[12], Hour13: h[13], Hour14: h[14], Hour15: h[15], Hour16: h[16], Hour17: h[17],
		Hour18: h[18], Hour19: h[19], Hour20: h[20], Hour21: h[21], Hour22: h[22], Hour23: h[23],
	}
}

// WriterConfig configures artifact encoding.
type WriterConfig struct {
	CompressionLevel string // zstd level name: fastest, default, better, best
}

// Codec returns the zstd codec for the configured level.
func (c WriterConfig) Codec() (*zstd.Codec, error) {
	name := c.CompressionLevel
	if name == "" {
		name = DefaultCompressionLevel
	}
	ok, level := kzstd.EncoderLevelFromString(name)
	if !ok {
		return nil, fmt.Errorf("unknown zstd level %q", name)
	}
	return &zstd.Codec{Level: level}, nil
}

// WriteParquet writes rows as a wide table. The header is written even
// when rows is empty.
func WriteParquet(w io.Writer, rows []WideRow, cfg WriterConfig) error {
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}

	pw := parquet.NewGenericWriter[wideRecord](w, parquet.Compression(codec))
	const chunk = 4096
	buf := make([]wideRecord, 0, chunk)
	for i, r := range rows {
		buf = append(buf, toRecord(r))
		if len(buf) == chunk || i == len(rows)-1 {
			if _, err := pw.Write(buf); err != nil {
				pw.Close()
				return fmt.Errorf("write rows: %w", err)
			}
			buf = buf[:0]
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// EncodeParquet returns the encoded wide table.
func EncodeParquet(rows []WideRow, cfg WriterConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteParquet(&buf, rows, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadParquet decodes a wide table. Hour columns absent from the file read
// as zero, and the group columns may have any scalar physical type.
func ReadParquet(r io.ReaderAt, size int64) ([]WideRow, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer reader.Close()

	var out []WideRow
	buf := make([]map[string]any, 1024)
	for {
		for i := range buf {
			buf[i] = make(map[string]any, Hours+3)
		}
		n, err := reader.Read(buf)
		for _, row := range buf[:n] {
			wr, convErr := fromMap(row)
			if convErr != nil {
				return nil, convErr
			}
			out = append(out, wr)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			return out, nil
		}
	}
}

// DecodeParquet decodes an in-memory wide table.
func DecodeParquet(data []byte) ([]WideRow, error) {
	return ReadParquet(bytes.NewReader(data), int64(len(data)))
}

func fromMap(row map[string]any) (WideRow, error) {
	wr := WideRow{
		Category: stringValue(row[ColumnCategory]),
		Date:     stringValue(row[ColumnDate]),
		Place:    stringValue(row[ColumnPlace]),
	}
	for h := 0; h < Hours; h++ {
		v, ok := row[HourColumn(h)]
		if !ok || v == nil {
			continue
		}
		n, err := countValue(v)
		if err != nil {
			return WideRow{}, fmt.Errorf("column %s: %w", HourColumn(h), err)
		}
		wr.Hours[h] = n
	}
	return wr, nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func countValue(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float64:
		if math.IsNaN(x) {
			return 0, nil
		}
		return int64(x), nil
	case float32:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("unsupported count type %T", v)
	}
}
