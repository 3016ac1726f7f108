package model

import "github.com/go-openapi/inflect"

// Column returns the table column backing a field name ("ServerDatePublished" -> "server_date_published").
func Column(field string) string {
	return inflect.Underscore(field)
}

// FieldName returns the field name for a column ("server_date_published" -> "ServerDatePublished").
func FieldName(column string) string {
	return inflect.Camelize(column)
}
