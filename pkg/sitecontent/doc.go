// Package sitecontent provides a content store for the editable parts of a
// website: one record per (page, key) pair with a fixed set of optional
// text, image and link fields.
//
// Writes are partial upserts. A field present in a Patch overwrites the
// stored value, a field that is not mentioned keeps its value, and a slot is
// created on its first write. Reads never fail for an unknown pair; they
// return a nil slot.
//
// Repository implementations (memory, Postgres, SQLite) and asset stores
// for uploaded images (memory, filesystem, S3) live in subpackages. The
// section package holds the consumer-side encodings of the description
// field, and the cache package a TTL read-through cache.
package sitecontent
