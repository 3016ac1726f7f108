// Package model provides declarative domain models.
//
// A [Field] holds one or more values and tracks whether they changed. An [Abstract] model is an
// ordered set of fields kept in memory. An [Entity] adds persistence: a [Schema] registered with a
// [Registry] maps the entity's internal fields onto the columns of its primary table row and its
// external fields onto dependent models (one-to-many, rows carrying a parent column) or link models
// (many-to-many, rows pointing at an independent model).
//
// External fields can be loaded lazily. They are fetched the first time they are touched through
// Field, Get, Set, Add, ToArray or ToXML and never more than once.
//
//	reg := model.NewRegistry(adapter, logger)
//	reg.MustRegister(titleSchema, documentSchema)
//	doc, _ := reg.New("Document")
//	title, _ := doc.Add("TitleMain", nil)
//	title.(model.Model).Set("Value", "Ein Titel")
//	id, err := doc.Store()
package model
