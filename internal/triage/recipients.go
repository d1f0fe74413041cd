package triage

import "strings"

// JoinRecipients builds a comma-joined recipient list from the given
// addresses, preserving first-seen order, dropping empties and duplicates.
// Both the send path and the escalation path use it.
func JoinRecipients(addrs ...string) string {
	var out []string
	seen := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return strings.Join(out, ",")
}
