package terms

import (
	"bytes"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// parquetEntry is the expected row shape of a Parquet dictionary:
// two string columns, source and target term.
type parquetEntry struct {
	Source string `parquet:"source"`
	Target string `parquet:"target"`
}

// LoadParquet reads a dictionary from a Parquet file with "source" and
// "target" string columns. The file is memory-mapped, so large dictionaries
// are read without copying them onto the heap first.
func LoadParquet(path string) (Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dictionary %q", path)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap dictionary %q", path)
	}
	defer func() { _ = m.Unmap() }()

	rows, err := parquet.Read[parquetEntry](bytes.NewReader(m), int64(len(m)))
	if err != nil {
		return nil, &FormatError{Path: path, Line: 0, Msg: err.Error()}
	}

	d := make(Dictionary, len(rows))
	for _, row := range rows {
		d[row.Source] = row.Target
	}
	return d, nil
}
