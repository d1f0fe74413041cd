// Package triage turns inbound support email into routed, answered-or-escalated
// records, and sweeps unresolved records against the reply SLA.
package triage
