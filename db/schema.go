// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation for the document store and id sequences
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	public_id INTEGER NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, public_id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at);

-- Locations are looked up by the object they place and by their parent.
CREATE INDEX IF NOT EXISTS idx_documents_location_object
	ON documents(json_extract(body, '$.object_id')) WHERE collection = 'locations';
CREATE INDEX IF NOT EXISTS idx_documents_location_parent
	ON documents(json_extract(body, '$.parent')) WHERE collection = 'locations';
CREATE INDEX IF NOT EXISTS idx_documents_object_type
	ON documents(json_extract(body, '$.type_id')) WHERE collection = 'objects';

CREATE TABLE IF NOT EXISTS sequences (
	collection TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
