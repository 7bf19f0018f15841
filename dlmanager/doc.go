// Package dlmanager runs HTTP downloads to disk in the background and keeps a
// queryable record of each job, modelled on a platform download manager.
//
// Jobs are identified by a monotonically increasing [ID]. Every job that
// reaches a terminal status is announced once on [Manager.Completions].
// Failures carry a numeric [Reason]: HTTP error statuses verbatim, or one of
// the Reason constants for transport and storage failures.
package dlmanager
