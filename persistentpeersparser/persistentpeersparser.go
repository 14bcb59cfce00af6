// Package persistentpeersparser reads Tendermint persistent_peers lists that
// may carry an explicit transport, e.g. "id@ygg://[200:abcd::1]:4224".
package persistentpeersparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type ParsedEntry struct {
	ID      string
	Proto   string
	Address string
	Port    *int // nil when absent
}

var entryPattern = regexp.MustCompile(`^([a-fA-F0-9]+)@((?:[a-zA-Z]+://)?(?:\[[^\]]+\]|[^:]+))(?:[:](\d+))?$`)

func ParseEntries(input string) ([]ParsedEntry, error) {
	var result []ParsedEntry

	for _, entry := range strings.Split(input, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		matches := entryPattern.FindStringSubmatch(entry)
		if matches == nil {
			return nil, fmt.Errorf("invalid entry: %s", entry)
		}

		id := matches[1]
		rawAddr := matches[2]
		portStr := matches[3]

		proto := ""
		address := rawAddr
		if before, after, ok := strings.Cut(rawAddr, "://"); ok {
			proto = before
			address = after
		}
		address = strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")

		var port *int
		if portStr != "" {
			p, err := strconv.Atoi(portStr)
			if err != nil || p > 65535 {
				return nil, fmt.Errorf("invalid port in entry: %s", entry)
			}
			port = &p
		}

		result = append(result, ParsedEntry{
			ID:      id,
			Proto:   proto,
			Address: address,
			Port:    port,
		})
	}
	return result, nil
}

// String renders the entry back in persistent_peers notation.
func (e ParsedEntry) String() string {
	var b strings.Builder
	b.WriteString(e.ID)
	b.WriteByte('@')
	if e.Proto != "" {
		b.WriteString(e.Proto)
		b.WriteString("://")
	}
	if strings.Contains(e.Address, ":") {
		b.WriteString("[" + e.Address + "]")
	} else {
		b.WriteString(e.Address)
	}
	if e.Port != nil {
		b.WriteString(":" + strconv.Itoa(*e.Port))
	}
	return b.String()
}
