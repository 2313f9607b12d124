// Package forms validates submitted forms against declarative
// descriptors.
//
// A descriptor is a YAML list of fields with a type and optional
// constraints. Each field is turned into a JSON Schema, compiled once and
// cached, and submitted values are coerced from their form encoding
// before being checked. Failures come back as a *ValidationError listing
// messages per field. Descriptors are data only and are never executed.
package forms
