// Package staging holds the one-to-one normalizers that turn landed raw
// rows into canonical typed rows, one normalizer per source table. Cast
// failures null the affected field and keep the row; a missing natural key
// drops the row. Both are reported, neither aborts the table.
package staging

import (
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/stream"
)

// Model binds a staging table name to its column order and normalizer.
type Model struct {
	Table     string
	Columns   []string
	Normalize func(rec stream.Record) (stream.Record, []*stream.CastError, error)
}

// builder accumulates one normalized output row and its soft cast errors.
type builder struct {
	in   stream.Record
	out  stream.Record
	errs []*stream.CastError
}

func newBuilder(in stream.Record) *builder {
	return &builder{in: in, out: stream.NewRecord()}
}

// keyId fetches a required natural key as an opaque string. Source systems
// key rows with UUIDs or serial integers, so ids are never parsed as numbers.
// ok=false means the row must be dropped.
func (b *builder) keyId(src string) (string, bool) {
	v, ok, err := b.in.GetIdString(src)
	if err != nil || !ok {
		return "", false
	}
	return v, true
}

func (b *builder) putString(src, dst string) {
	v, ok, err := b.in.GetString(src)
	b.put(dst, v, ok, err)
}

// putId stages a foreign key as an opaque string, matching keyId.
func (b *builder) putId(src, dst string) {
	v, ok, err := b.in.GetIdString(src)
	b.put(dst, v, ok, err)
}

func (b *builder) putInt64(src, dst string) {
	v, ok, err := b.in.GetInt64(src)
	b.put(dst, v, ok, err)
}

func (b *builder) putFloat64(src, dst string) {
	v, ok, err := b.in.GetFloat64(src)
	b.put(dst, v, ok, err)
}

func (b *builder) putTime(src, dst string) {
	v, ok, err := b.in.GetTime(src)
	b.put(dst, v, ok, err)
}

func (b *builder) putDate(src, dst string) {
	v, ok, err := b.in.GetDate(src)
	b.put(dst, v, ok, err)
}

// putTimeWithFallback tries src first and falls back to alt when src is
// absent. Absent in both yields null, never an error.
func (b *builder) putTimeWithFallback(src, alt, dst string) {
	v, ok, err := b.in.GetTime(src)
	if err == nil && !ok {
		v, ok, err = b.in.GetTime(alt)
	}
	b.put(dst, v, ok, err)
}

func (b *builder) put(dst string, v interface{}, ok bool, err error) {
	if err != nil { // cast failure: null the field, keep the row...
		if ce, isCast := err.(*stream.CastError); isCast {
			b.errs = append(b.errs, ce)
		}
		b.out.SetData(dst, nil)
		return
	}
	if !ok {
		b.out.SetData(dst, nil)
		return
	}
	b.out.SetData(dst, v)
}

// carryProvenance copies the landing tags onto the normalized row.
func (b *builder) carryProvenance() {
	for _, f := range []string{c.FieldExtractedAt, c.FieldBatchedAt, c.FieldSchemaVersion} {
		if v, ok := b.in.GetDataOk(f); ok {
			b.out.SetData(f, v)
		}
	}
}

func (b *builder) row() (stream.Record, []*stream.CastError, error) {
	return b.out, b.errs, nil
}

// dropRow rejects the input row, reporting it against the given key field.
func dropRow(keyField string, in stream.Record) (stream.Record, []*stream.CastError, error) {
	v, _ := in.GetDataOk(keyField)
	return stream.NewNilRecord(), []*stream.CastError{{Field: keyField, Value: v, Want: "required natural key"}}, nil
}
