package reader

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/vegasq/calcrule/schema"
)

// SchemaInfo describes one leaf column of a parquet file and the column
// type it maps to in a team's data_format
type SchemaInfo struct {
	Name         string            `json:"name"`
	Type         schema.ColumnType `json:"type,omitempty"` // empty when the column cannot be used
	PhysicalType string            `json:"physical_type"`
	LogicalType  string            `json:"logical_type"`
	Required     bool              `json:"required"`
	Repeated     bool              `json:"repeated"`
}

// ExtractSchemaInfo lists the columns of a parquet file. Nested fields use
// dot notation ("address.street") and, like repeated fields, get no type:
// the engine only works on flat rows.
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var infos []SchemaInfo
	for _, field := range r.Schema().Fields() {
		infos = append(infos, extractFieldInfo(field, "", false)...)
	}
	return infos, nil
}

// SuggestColumns turns parquet schema information into data_format column
// declarations, skipping columns with no usable type
func SuggestColumns(infos []SchemaInfo) []schema.Column {
	cols := make([]schema.Column, 0, len(infos))
	for _, info := range infos {
		if info.Type == "" {
			continue
		}
		cols = append(cols, schema.Column{Name: info.Name, Type: info.Type, Required: info.Required})
	}
	return cols
}

// extractFieldInfo walks a field, tracking whether any parent is repeated
func extractFieldInfo(field parquet.Field, prefix string, parentRepeated bool) []SchemaInfo {
	name := field.Name()
	if prefix != "" {
		name = prefix + "." + name
	}
	repeated := parentRepeated || field.Repeated()

	if children := field.Fields(); len(children) > 0 {
		var infos []SchemaInfo
		for _, child := range children {
			infos = append(infos, extractFieldInfo(child, name, repeated)...)
		}
		return infos
	}

	info := SchemaInfo{
		Name:         name,
		PhysicalType: physicalType(field),
		LogicalType:  logicalType(field),
		Required:     field.Required(),
		Repeated:     repeated,
	}
	if prefix == "" && !repeated {
		info.Type = columnType(field)
	}
	return []SchemaInfo{info}
}

func physicalType(field parquet.Field) string {
	if field.Type() == nil {
		return "GROUP"
	}
	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", field.Type().Kind())
	}
}

func logicalType(field parquet.Field) string {
	if field.Type() == nil || field.Type().LogicalType() == nil {
		return ""
	}
	return field.Type().LogicalType().String()
}

// columnType maps parquet physical and logical types to a column type
func columnType(field parquet.Field) schema.ColumnType {
	if field.Type() == nil {
		return ""
	}

	lt := logicalType(field)
	for _, prefix := range []string{"DATE", "TIMESTAMP"} {
		if strings.HasPrefix(lt, prefix) {
			return schema.TypeDatetime
		}
	}
	for _, prefix := range []string{"STRING", "UTF8", "ENUM", "UUID", "JSON"} {
		if strings.HasPrefix(lt, prefix) {
			return schema.TypeString
		}
	}
	if strings.HasPrefix(lt, "DECIMAL") {
		return schema.TypeFloat
	}

	switch field.Type().Kind() {
	case parquet.Boolean:
		return schema.TypeBool
	case parquet.Int32, parquet.Int64:
		return schema.TypeInt
	case parquet.Float, parquet.Double:
		return schema.TypeFloat
	case parquet.Int96:
		return schema.TypeDatetime
	case parquet.ByteArray:
		return schema.TypeString
	default:
		return ""
	}
}
