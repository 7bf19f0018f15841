// Package dispatch turns download requests reported by the web view into
// jobs on a download facility, keeps the set of jobs it is waiting on, and
// on completion notifies the user and offers to open the file.
//
// A request goes through three steps: the file name is resolved with
// [filename.Resolve], the job is enqueued with the page's User-Agent and
// cookies, and its ID joins the pending set. Completions for IDs outside
// the pending set are ignored.
package dispatch
