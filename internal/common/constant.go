package common

// FieldKeyName is the metadata entry holding the field encryption key.
const FieldKeyName = "field_encryption_key"

// Lengths, in bytes, of generated identifiers before hex encoding.
const (
	RandomIDBytes    = 16
	RandomTokenBytes = 32
)
