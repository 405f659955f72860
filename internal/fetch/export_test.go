package fetch

// SetExistsProbe replaces the post-download existence check.
func SetExistsProbe(f *Fetcher, probe func(string) bool) {
	f.exists = probe
}
