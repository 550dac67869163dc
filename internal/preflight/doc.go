// Package preflight provides readiness checks for the paths, devices and
// graphics backend texshare depends on.
//
// The doctor command renders RunAll as a table. Each check is independent
// and reports a Result instead of failing, so one missing piece does not hide
// the state of the others.
package preflight
