// Package domain contains the core types exchanged with the technology lookup
// service. The shape of a result record is owned by the remote API, so records
// keep their raw JSON and only the fields the client needs are extracted.
package domain
