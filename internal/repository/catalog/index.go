package catalog

import "github.com/kailas-cloud/shopsight/internal/db"

// textFields are the TEXT fields keyword search runs against.
var textFields = []string{fieldTitle, fieldDescription}

// buildIndex returns the catalog FT index: weighted TEXT over title and description, TAG over
// category and type, NUMERIC price. Drivers without TEXT support drop the TEXT fields.
func (r *Repo) buildIndex() *db.IndexDefinition {
	return db.NewIndex(r.indexName()).
		Prefix(r.productPrefix()).
		Language(r.language).
		WeightedText(fieldTitle, 2).
		Text(fieldDescription).
		Tag(fieldCategory).
		Tag(fieldType).
		Numeric(fieldPrice).
		MustBuild()
}

func (r *Repo) indexName() string     { return r.keyPrefix + "catalog:idx" }
func (r *Repo) productPrefix() string { return r.keyPrefix + "product:" }
func (r *Repo) productKey(id string) string {
	return r.productPrefix() + id
}
