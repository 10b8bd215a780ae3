//go:build production

package integrity

// Enabled reports whether snapshot sealing is compiled in.
const Enabled = false
