package config

// HasChanged reports whether b differs from a in any field that requires a
// dispatcher restart, comparing every field explicitly rather than by
// reflection — the same approach the teacher's own HasChanged takes, because
// DNSConfig embeds a slice and cannot be compared with ==.
func HasChanged(a, b *Config) bool {
	if a == nil || b == nil {
		return a != b
	}

	if a.ListenAddress != b.ListenAddress ||
		a.MaxWorkers != b.MaxWorkers ||
		a.WorkQueueSize != b.WorkQueueSize ||
		a.BlocklistFile != b.BlocklistFile ||
		a.BlocklistPatternsFile != b.BlocklistPatternsFile {
		return true
	}

	if a.Cache != b.Cache {
		return true
	}

	if a.Statistics != b.Statistics {
		return true
	}

	if !dnsConfigEqual(a.DNS, b.DNS) {
		return true
	}

	return false
}

func dnsConfigEqual(a, b DNSConfig) bool {
	if a.Enabled != b.Enabled {
		return false
	}
	if len(a.Servers) != len(b.Servers) {
		return false
	}
	for i := range a.Servers {
		if a.Servers[i] != b.Servers[i] {
			return false
		}
	}
	return true
}
