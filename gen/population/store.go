package population

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	jsoniter "github.com/json-iterator/go"
)

// storeJSON keeps map keys sorted so repeated writes of the same population
// are byte-identical.
var storeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var storeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.BinaryTypes.String},
	{Name: "kind", Type: arrow.BinaryTypes.String},
	{Name: "role", Type: arrow.BinaryTypes.String},
	{Name: "service_profile", Type: arrow.BinaryTypes.String},
	{Name: "service_pattern", Type: arrow.BinaryTypes.String},
	{Name: "events_per_hour", Type: arrow.PrimitiveTypes.Float64},
	{Name: "error_rate", Type: arrow.PrimitiveTypes.Float64},
	{Name: "account_id", Type: arrow.BinaryTypes.String},
	{Name: "identity_type", Type: arrow.BinaryTypes.String},
	{Name: "principal_id", Type: arrow.BinaryTypes.String},
	{Name: "arn", Type: arrow.BinaryTypes.String},
	{Name: "access_key_id", Type: arrow.BinaryTypes.String},
	{Name: "user_name", Type: arrow.BinaryTypes.String},
	{Name: "user_agents", Type: arrow.BinaryTypes.String},
	{Name: "source_ips", Type: arrow.BinaryTypes.String},
	{Name: "active_start_hour", Type: arrow.PrimitiveTypes.Int32},
	{Name: "active_hours", Type: arrow.PrimitiveTypes.Int32},
	{Name: "timezone_offset", Type: arrow.PrimitiveTypes.Int32},
	{Name: "timezone_fixed", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "weekend_active", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "tags", Type: arrow.BinaryTypes.String},
	{Name: "event_bias", Type: arrow.BinaryTypes.String},
}, nil)

// WriteFile persists the population as a single-row-group Parquet file, so a
// build can be reused across runs (and across sources) without re-sampling.
func WriteFile(path string, p *Population) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("population store: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("population store: %w", cerr)
		}
	}()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Zstd))
	w, err := pqarrow.NewFileWriter(storeSchema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("population store: %w", err)
	}

	b := array.NewRecordBuilder(memory.DefaultAllocator, storeSchema)
	defer b.Release()
	for _, a := range p.Actors {
		if err := appendActor(b, a); err != nil {
			return err
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	if err := w.Write(rec); err != nil {
		return fmt.Errorf("population store: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("population store: %w", err)
	}
	return nil
}

func appendActor(b *array.RecordBuilder, a *Actor) error {
	agents, err := storeJSON.MarshalToString(a.UserAgents)
	if err != nil {
		return fmt.Errorf("population store: actor %s: %w", a.ID, err)
	}
	ips, err := storeJSON.MarshalToString(a.SourceIPs)
	if err != nil {
		return fmt.Errorf("population store: actor %s: %w", a.ID, err)
	}
	tags, err := storeJSON.MarshalToString(a.Tags)
	if err != nil {
		return fmt.Errorf("population store: actor %s: %w", a.ID, err)
	}
	bias, err := storeJSON.MarshalToString(a.EventBias)
	if err != nil {
		return fmt.Errorf("population store: actor %s: %w", a.ID, err)
	}

	b.Field(0).(*array.StringBuilder).Append(a.ID)
	b.Field(1).(*array.StringBuilder).Append(string(a.Kind))
	b.Field(2).(*array.StringBuilder).Append(a.Role)
	b.Field(3).(*array.StringBuilder).Append(a.ServiceProfile)
	b.Field(4).(*array.StringBuilder).Append(string(a.ServicePattern))
	b.Field(5).(*array.Float64Builder).Append(a.EventsPerHour)
	b.Field(6).(*array.Float64Builder).Append(a.ErrorRate)
	b.Field(7).(*array.StringBuilder).Append(a.AccountID)
	b.Field(8).(*array.StringBuilder).Append(a.IdentityType)
	b.Field(9).(*array.StringBuilder).Append(a.PrincipalID)
	b.Field(10).(*array.StringBuilder).Append(a.ARN)
	b.Field(11).(*array.StringBuilder).Append(a.AccessKeyID)
	b.Field(12).(*array.StringBuilder).Append(a.UserName)
	b.Field(13).(*array.StringBuilder).Append(agents)
	b.Field(14).(*array.StringBuilder).Append(ips)
	b.Field(15).(*array.Int32Builder).Append(int32(a.ActiveStartHour))
	b.Field(16).(*array.Int32Builder).Append(int32(a.ActiveHours))
	b.Field(17).(*array.Int32Builder).Append(int32(a.TimezoneOffset))
	b.Field(18).(*array.BooleanBuilder).Append(a.TimezoneFixed)
	b.Field(19).(*array.BooleanBuilder).Append(a.WeekendActive)
	b.Field(20).(*array.StringBuilder).Append(tags)
	b.Field(21).(*array.StringBuilder).Append(bias)
	return nil
}

// ReadFile loads a population previously written by WriteFile.
func ReadFile(ctx context.Context, path string) (*Population, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("population store: %w", err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 1024}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("population store: %w", err)
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("population store: %w", err)
	}
	defer rr.Release()

	var actors []*Actor
	for rr.Next() {
		rec := rr.Record()
		for row := 0; row < int(rec.NumRows()); row++ {
			a, err := decodeActor(rec, row)
			if err != nil {
				return nil, err
			}
			actors = append(actors, a)
		}
	}
	if err := rr.Err(); err != nil {
		return nil, fmt.Errorf("population store: %w", err)
	}
	return NewPopulation(actors), nil
}

func decodeActor(rec arrow.Record, row int) (*Actor, error) {
	str := func(col int) string { return rec.Column(col).(*array.String).Value(row) }
	i32 := func(col int) int { return int(rec.Column(col).(*array.Int32).Value(row)) }

	a := &Actor{
		ID:              str(0),
		Kind:            Kind(str(1)),
		Role:            str(2),
		ServiceProfile:  str(3),
		ServicePattern:  Pattern(str(4)),
		EventsPerHour:   rec.Column(5).(*array.Float64).Value(row),
		ErrorRate:       rec.Column(6).(*array.Float64).Value(row),
		AccountID:       str(7),
		IdentityType:    str(8),
		PrincipalID:     str(9),
		ARN:             str(10),
		AccessKeyID:     str(11),
		UserName:        str(12),
		ActiveStartHour: i32(15),
		ActiveHours:     i32(16),
		TimezoneOffset:  i32(17),
		TimezoneFixed:   rec.Column(18).(*array.Boolean).Value(row),
		WeekendActive:   rec.Column(19).(*array.Boolean).Value(row),
	}
	for _, dec := range []struct {
		col  int
		dest any
	}{
		{13, &a.UserAgents},
		{14, &a.SourceIPs},
		{20, &a.Tags},
		{21, &a.EventBias},
	} {
		raw := str(dec.col)
		if raw == "" || raw == "null" {
			continue
		}
		if err := storeJSON.UnmarshalFromString(raw, dec.dest); err != nil {
			return nil, fmt.Errorf("population store: actor %s: %w", a.ID, err)
		}
	}
	return a, nil
}
