// Package catalog defines the unit-of-work data model and the enumerator
// contract that supplies it. Source-specific field variations are normalized
// here so downstream components see exactly one entry shape.
package catalog
