// Package checkpoint persists training state in a sqlite database: field
// snapshots (gob+gzip grid blobs with their configuration), backbone weight
// blobs, and scalar training metrics. The schema is versioned through
// embedded golang-migrate migrations applied on Open.
//
// checkpoint may depend on field, never on model or viz.
package checkpoint
