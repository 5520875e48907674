// Package catalog defines the record model, target parsing, and the
// interfaces shared by the capture pipeline's subsystems.
package catalog
