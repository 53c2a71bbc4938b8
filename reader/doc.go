// Package reader loads team data files into memory.
//
// CSV and parquet files are read into a Table of raw values. Coerce then
// converts the raw values to the column types a team declares:
//
//	raw, err := reader.ReadFile("data/sales_a.csv", "", reader.CSVOptions{})
//	if err != nil {
//	    return err
//	}
//	table, err := reader.Coerce(raw, sch)
//
// ReadParquet also accepts a glob pattern. Rows read that way carry a
// "_file" column naming their source file.
//
// ExtractSchemaInfo and SuggestColumns inspect a parquet file and propose
// data_format column declarations for it.
package reader
