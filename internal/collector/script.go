package collector

import _ "embed"

// probeScript is the Python probe executed inside the project environment.
// Its stdout contract (a single JSON document) is the only coupling between
// the script and this package.
//
//go:embed scripts/django_collector.py
var probeScript []byte
